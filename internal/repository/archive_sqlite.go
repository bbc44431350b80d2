package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"hothour-sync/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteArchive implements ArchiveRepository using a local SQLite file.
// The default archive backend: zero setup, good enough for a
// single-instance sync daemon.
type SQLiteArchive struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteArchive opens (or creates) the archive database at dbPath.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createArchiveTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteArchive] Initialized with database: %s", dbPath)
	return &SQLiteArchive{db: db}, nil
}

func createArchiveTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS price_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		auction_id INTEGER NOT NULL,
		price TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_price_auction ON price_points(auction_id, recorded_at);

	CREATE TABLE IF NOT EXISTS status_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		auction_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_status_auction ON status_changes(auction_id, recorded_at);

	CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reservation_id INTEGER DEFAULT 0,
		auction_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		booking_code TEXT NOT NULL,
		locked_price TEXT NOT NULL,
		status TEXT NOT NULL,
		reserved_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// RecordPrice stores one price observation.
func (r *SQLiteArchive) RecordPrice(ctx context.Context, auctionID int64, price decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO price_points (auction_id, price, recorded_at) VALUES (?, ?, ?)`,
		auctionID, price.String(), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record price: %w", err)
	}
	return nil
}

// RecordStatus stores one status transition.
func (r *SQLiteArchive) RecordStatus(ctx context.Context, auctionID int64, status model.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO status_changes (auction_id, status, recorded_at) VALUES (?, ?, ?)`,
		auctionID, string(status), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// RecordReservation stores a confirmed booking.
func (r *SQLiteArchive) RecordReservation(ctx context.Context, res model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (reservation_id, auction_id, user_id, booking_code, locked_price, status, reserved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.AuctionID, res.UserID, res.BookingCode, res.LockedPrice.String(), res.Status, res.ReservedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record reservation: %w", err)
	}
	return nil
}

// PriceHistory returns the most recent price points, newest first.
func (r *SQLiteArchive) PriceHistory(ctx context.Context, auctionID int64, limit int) ([]PricePoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT auction_id, price, recorded_at FROM price_points
		WHERE auction_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Stats returns row counts for the status API.
func (r *SQLiteArchive) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]interface{}{"backend": "sqlite"}
	for name, table := range map[string]string{
		"price_points":   "price_points",
		"status_changes": "status_changes",
		"reservations":   "reservations",
	} {
		var count int64
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[name] = count
	}
	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteArchive) Close() error {
	return r.db.Close()
}

// scanPricePoints reads price rows; shared with the MySQL backend.
func scanPricePoints(rows *sql.Rows) ([]PricePoint, error) {
	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		var priceStr string
		if err := rows.Scan(&p.AuctionID, &priceStr, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt price value %q: %w", priceStr, err)
		}
		p.Price = price
		points = append(points, p)
	}
	return points, rows.Err()
}
