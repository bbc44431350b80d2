package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hothour-sync/internal/cache"
	"hothour-sync/internal/client"
	"hothour-sync/internal/config"
	"hothour-sync/internal/handler"
	"hothour-sync/internal/realtime"
	"hothour-sync/internal/repository"
	"hothour-sync/internal/router"
	"hothour-sync/internal/service"
	"hothour-sync/internal/session"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting HotHour sync daemon...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Session identity (read-only collaborator)
	sess := session.NewStatic(cfg.Session.Token, cfg.Session.UserID)
	if !sess.IsAuthenticated() {
		log.Println("Warning: no session token configured, booking disabled")
	}

	// Initialize archive repository based on config
	var archive repository.ArchiveRepository
	switch cfg.Archive.Type {
	case "mysql":
		db, err := sql.Open("mysql", cfg.Archive.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			log.Printf("Warning: MySQL ping failed, archive disabled: %v", err)
			db.Close()
		} else {
			mysqlArchive, err := repository.NewMySQLArchive(db)
			if err != nil {
				log.Fatalf("Failed to initialize MySQL archive: %v", err)
			}
			archive = mysqlArchive
			log.Println("MySQL archive initialized")
		}
	default: // sqlite
		sqliteArchive, err := repository.NewSQLiteArchive(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite archive: %v", err)
		}
		archive = sqliteArchive
		log.Println("SQLite archive initialized")
	}
	if archive != nil {
		defer archive.Close()
	}

	// Initialize snapshot cache based on config
	var snapshotCache cache.SnapshotCache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, using memory cache: %v", err)
			snapshotCache = cache.NewMemoryCache()
		} else {
			snapshotCache = redisCache
			log.Println("Redis snapshot cache initialized")
		}
	default:
		snapshotCache = cache.NewMemoryCache()
		log.Println("Memory snapshot cache initialized")
	}
	defer snapshotCache.Close()

	// Core components
	store := repository.NewAuctionStore()
	restClient := client.New(cfg.Backend.APIBaseURL, cfg.Backend.RequestTimeout, sess)
	channel := realtime.NewChannel(realtime.Config{
		URL:               cfg.Backend.SocketURL,
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		WriteTimeout:      cfg.Realtime.WriteTimeout,
	})

	syncService := service.NewSyncService(restClient, channel, store, archive, snapshotCache, sess, cfg.Cache.TTL)
	bookingCoordinator := service.NewBookingCoordinator(restClient, store, archive, sess)

	// Connect the channel and load the initial snapshot
	if err := syncService.Start(); err != nil {
		log.Printf("Warning: realtime connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := syncService.RefreshAll(ctx); err != nil {
		log.Printf("Warning: initial snapshot load failed: %v", err)
	}
	cancel()

	// Watch every tracked auction so push events keep the view fresh.
	for _, a := range store.List() {
		syncService.Watch(a.ID)
	}
	log.Printf("Tracking %d auctions", store.Len())

	// Status API handlers
	statusHandler := handler.New(cfg.App.Version)
	auctionHandler := handler.NewAuctionHandler(store, archive, syncService)
	channelHandler := handler.NewChannelHandler(channel, syncService)
	bookingHandler := handler.NewBookingHandler(bookingCoordinator)

	r := router.New(router.Config{
		Handler:        statusHandler,
		AuctionHandler: auctionHandler,
		ChannelHandler: channelHandler,
		BookingHandler: bookingHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Status API listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	if err := syncService.Stop(); err != nil {
		log.Printf("Channel shutdown error: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Sync daemon stopped")
}
