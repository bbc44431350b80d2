package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"hothour-sync/internal/model"

	"github.com/shopspring/decimal"
)

// MySQLArchive implements ArchiveRepository using MySQL, for
// deployments where several sync daemons share one archive.
type MySQLArchive struct {
	db *sql.DB
}

// NewMySQLArchive creates the archive tables on an existing MySQL
// connection. The caller owns the *sql.DB pool settings.
func NewMySQLArchive(db *sql.DB) (*MySQLArchive, error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS price_points (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			auction_id BIGINT NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			recorded_at DATETIME(6) NOT NULL,
			INDEX idx_price_auction (auction_id, recorded_at)
		)`,
		`CREATE TABLE IF NOT EXISTS status_changes (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			auction_id BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			recorded_at DATETIME(6) NOT NULL,
			INDEX idx_status_auction (auction_id, recorded_at)
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			reservation_id BIGINT DEFAULT 0,
			auction_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			booking_code VARCHAR(64) NOT NULL,
			locked_price DECIMAL(12,2) NOT NULL,
			status VARCHAR(32) NOT NULL,
			reserved_at DATETIME(6) NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create archive tables: %w", err)
		}
	}

	log.Printf("[MySQLArchive] Initialized")
	return &MySQLArchive{db: db}, nil
}

// RecordPrice stores one price observation.
func (r *MySQLArchive) RecordPrice(ctx context.Context, auctionID int64, price decimal.Decimal, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO price_points (auction_id, price, recorded_at) VALUES (?, ?, ?)`,
		auctionID, price.String(), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record price: %w", err)
	}
	return nil
}

// RecordStatus stores one status transition.
func (r *MySQLArchive) RecordStatus(ctx context.Context, auctionID int64, status model.Status, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO status_changes (auction_id, status, recorded_at) VALUES (?, ?, ?)`,
		auctionID, string(status), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// RecordReservation stores a confirmed booking.
func (r *MySQLArchive) RecordReservation(ctx context.Context, res model.Reservation) error {
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
func (r *MySQLArchive) PriceHistory(ctx context.Context, auctionID int64, limit int) ([]PricePoint, error) {
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
func (r *MySQLArchive) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mysql"}
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
func (r *MySQLArchive) Close() error {
	return r.db.Close()
}
