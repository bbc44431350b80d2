package repository

import (
	"context"
	"time"

	"hothour-sync/internal/model"

	"github.com/shopspring/decimal"
)

// PricePoint is one archived price observation for an auction.
type PricePoint struct {
	AuctionID  int64           `json:"auction_id"`
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// StatusChange is one archived status transition for an auction.
type StatusChange struct {
	AuctionID  int64        `json:"auction_id"`
	Status     model.Status `json:"status"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// ArchiveRepository persists the event trail (price points, status
// transitions, reservations) for history queries. Writes happen
// best-effort off the hot path; the live store never waits on them.
type ArchiveRepository interface {
	// RecordPrice stores one price observation.
	RecordPrice(ctx context.Context, auctionID int64, price decimal.Decimal, at time.Time) error

	// RecordStatus stores one status transition.
	RecordStatus(ctx context.Context, auctionID int64, status model.Status, at time.Time) error

	// RecordReservation stores a confirmed booking.
	RecordReservation(ctx context.Context, res model.Reservation) error

	// PriceHistory returns the most recent price points for an auction,
	// newest first.
	PriceHistory(ctx context.Context, auctionID int64, limit int) ([]PricePoint, error)

	// Stats returns row counts for the status API.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the underlying connection.
	Close() error
}
