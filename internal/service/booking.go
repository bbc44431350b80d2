package service

import (
	"context"
	"log"
	"sync"
	"time"

	"hothour-sync/internal/client"
	"hothour-sync/internal/model"
	"hothour-sync/internal/repository"
	"hothour-sync/internal/session"
	"hothour-sync/pkg/apierror"
)

// BookingCoordinator executes the user-initiated claim action: one
// optimistic mutation, one network call, and defined reconciliation of
// the outcome. Retrying is always the caller's decision.
type BookingCoordinator struct {
	client  *client.Client
	store   *repository.AuctionStore
	archive repository.ArchiveRepository
	session session.Provider

	mu      sync.Mutex
	loading bool
	lastErr error
}

// NewBookingCoordinator creates the coordinator. archive may be nil.
func NewBookingCoordinator(
	c *client.Client,
	store *repository.AuctionStore,
	archive repository.ArchiveRepository,
	sess session.Provider,
) *BookingCoordinator {
	return &BookingCoordinator{
		client:  c,
		store:   store,
		archive: archive,
		session: sess,
	}
}

// Loading reports whether a booking is in flight.
func (b *BookingCoordinator) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// LastError returns the outcome of the most recent booking attempt.
func (b *BookingCoordinator) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Book attempts to claim the auction for the current user. Exactly one
// network call per invocation.
//
// Success: the repository status flips to SOLD (the server has
// confirmed, so the optimistic write is immediately authoritative) and
// exactly one reservation is returned.
//
// Conflict (someone else won the race): the status is deliberately NOT
// reverted to ACTIVE - local ACTIVE is almost certainly stale by now -
// and the next authoritative push event settles it. Only the Conflict
// error surfaces.
//
// Any other failure: no status mutation, typed error returned.
func (b *BookingCoordinator) Book(ctx context.Context, auctionID int64) (model.Reservation, error) {
	if !b.session.IsAuthenticated() {
		return model.Reservation{}, apierror.Unauthenticated("You must be logged in to book a session.")
	}

	b.mu.Lock()
	b.loading = true
	b.lastErr = nil
	b.mu.Unlock()

	res, err := b.client.BookAuction(ctx, auctionID, b.session.UserID())

	b.mu.Lock()
	b.loading = false
	b.lastErr = err
	b.mu.Unlock()

	if err != nil {
		return model.Reservation{}, err
	}

	b.store.ApplyStatusUpdate(auctionID, model.StatusSold)

	if b.archive != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := b.archive.RecordReservation(ctx, res); err != nil {
				log.Printf("[BookingCoordinator] archive reservation failed: %v", err)
			}
		}()
	}

	return res, nil
}
