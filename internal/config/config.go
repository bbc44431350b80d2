package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all daemon configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Backend  BackendConfig
	Session  SessionConfig
	Realtime RealtimeConfig
	Cache    CacheConfig
	Archive  ArchiveConfig
}

// ServerConfig holds settings for the local status API server.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8090"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"hothour-sync"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// BackendConfig holds the HotHour backend endpoints.
type BackendConfig struct {
	APIBaseURL     string        `envconfig:"HOTHOUR_API_URL" default:"http://127.0.0.1:8000"`
	SocketURL      string        `envconfig:"HOTHOUR_SOCKET_URL" default:"ws://127.0.0.1:8000/ws"`
	RequestTimeout time.Duration `envconfig:"HOTHOUR_REQUEST_TIMEOUT" default:"15s"`
}

// SessionConfig holds the static session identity fed to the session
// collaborator. The sync core treats these as read-only.
type SessionConfig struct {
	Token  string `envconfig:"HOTHOUR_TOKEN" default:""`
	UserID int64  `envconfig:"HOTHOUR_USER_ID" default:"0"`
}

// RealtimeConfig holds the websocket reconnection policy.
// Fixed delay, bounded attempts, no backoff - matches the backend's
// expectations for client behavior.
type RealtimeConfig struct {
	ReconnectAttempts int           `envconfig:"REALTIME_RECONNECT_ATTEMPTS" default:"5"`
	ReconnectDelay    time.Duration `envconfig:"REALTIME_RECONNECT_DELAY" default:"2s"`
	WriteTimeout      time.Duration `envconfig:"REALTIME_WRITE_TIMEOUT" default:"10s"`
}

// CacheConfig holds snapshot cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ArchiveConfig holds the local archive database settings.
type ArchiveConfig struct {
	Type string `envconfig:"ARCHIVE_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"ARCHIVE_DB_PATH" default:"./data/archive.db"`
	// MySQL settings
	Host     string `envconfig:"ARCHIVE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"ARCHIVE_DB_PORT" default:"3306"`
	Name     string `envconfig:"ARCHIVE_DB_NAME" default:"hothour"`
	User     string `envconfig:"ARCHIVE_DB_USER" default:"root"`
	Password string `envconfig:"ARCHIVE_DB_PASS" default:""`
}

// Address returns the status server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name for the archive store.
func (a *ArchiveConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.User, a.Password, a.Host, a.Port, a.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
