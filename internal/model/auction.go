package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the auction lifecycle state. Transitions are one-directional:
// ACTIVE may move to SOLD or CANCELLED; SOLD and CANCELLED are terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSold      Status = "SOLD"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusSold || s == StatusCancelled
}

// CanTransitionTo validates the one-directional status lattice.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	return next == StatusSold || next == StatusCancelled
}

// Auction is the canonical client-side view of a descending-price
// auction. Every record entering the repository is normalized into this
// shape first; no dual-spelling lookups happen past this point.
type Auction struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Instructor     string          `json:"instructor,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	StartPrice     decimal.Decimal `json:"start_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	FloorPrice     decimal.Decimal `json:"floor_price"`
	Status         Status          `json:"status"`
	TurboActive    bool            `json:"turbo_active"`
	TurboStartedAt *time.Time      `json:"turbo_started_at,omitempty"`
	NextDropTime   *time.Time      `json:"next_drop_time,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to readers outside the
// repository's writer lock.
func (a *Auction) Clone() Auction {
	out := *a
	if a.TurboStartedAt != nil {
		t := *a.TurboStartedAt
		out.TurboStartedAt = &t
	}
	if a.NextDropTime != nil {
		t := *a.NextDropTime
		out.NextDropTime = &t
	}
	return out
}

// Reservation is a confirmed booking returned by the backend.
type Reservation struct {
	ID          int64           `json:"id"`
	AuctionID   int64           `json:"auction_id"`
	UserID      int64           `json:"user_id"`
	BookingCode string          `json:"booking_code"`
	LockedPrice decimal.Decimal `json:"locked_price"`
	Status      string          `json:"status"`
	ReservedAt  time.Time       `json:"reserved_at"`
}
