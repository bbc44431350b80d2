package repository

import (
	"log"
	"sync"
	"time"

	"hothour-sync/internal/model"
	"hothour-sync/pkg/uid"

	"github.com/shopspring/decimal"
)

// ChangeKind classifies a store mutation for notification listeners.
type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "loaded"
	ChangePrice   ChangeKind = "price"
	ChangeStatus  ChangeKind = "status"
	ChangeTurbo   ChangeKind = "turbo"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is delivered to listeners after a mutation. Auction is a copy;
// listeners never see the store's internal objects.
type Change struct {
	Kind    ChangeKind
	Auction model.Auction
}

type listener struct {
	auctionID int64 // 0 means all auctions
	fn        func(Change)
}

// SnapshotCursor marks the mutation sequence at snapshot-request time.
// Load uses it to skip fields a push event has already advanced past
// the snapshot's view. Best-effort only: a snapshot that started before
// an intervening push but read server state from after it can still
// regress - there is no vector clock to tell the two apart.
type SnapshotCursor uint64

// AuctionStore is the single in-memory store of auction entities and
// the sole mutation surface of the sync core. All mutations serialize
// through one mutex (single-writer); readers get copies and subscribe
// to change notifications instead of sharing references.
type AuctionStore struct {
	mu        sync.Mutex
	auctions  map[int64]*model.Auction
	listeners map[string]listener

	// seq counts push mutations; per-field-class marks record the seq
	// of the last push write so snapshot merges can detect supersession.
	seq       uint64
	priceSeq  map[int64]uint64
	statusSeq map[int64]uint64
	turboSeq  map[int64]uint64
}

// NewAuctionStore creates an empty store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions:  make(map[int64]*model.Auction),
		listeners: make(map[string]listener),
		priceSeq:  make(map[int64]uint64),
		statusSeq: make(map[int64]uint64),
		turboSeq:  make(map[int64]uint64),
	}
}

// Subscribe registers a listener for changes to one auction, or to all
// auctions when auctionID is 0. Returns a token for Unsubscribe.
func (s *AuctionStore) Subscribe(auctionID int64, fn func(Change)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uid.New()
	s.listeners[token] = listener{auctionID: auctionID, fn: fn}
	return token
}

// Unsubscribe removes a listener. Unknown tokens are ignored.
func (s *AuctionStore) Unsubscribe(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, token)
}

// notify collects the matching listener callbacks under the lock; the
// caller invokes them after unlocking so listeners may call back into
// the store.
func (s *AuctionStore) pendingNotify(change Change) []func(Change) {
	var fns []func(Change)
	for _, l := range s.listeners {
		if l.auctionID == 0 || l.auctionID == change.Auction.ID {
			fns = append(fns, l.fn)
		}
	}
	return fns
}

func dispatch(fns []func(Change), change Change) {
	for _, fn := range fns {
		fn(change)
	}
}

// Cursor captures the current mutation sequence. Take one immediately
// before issuing a snapshot request and pass it to Load with the
// response.
func (s *AuctionStore) Cursor() SnapshotCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SnapshotCursor(s.seq)
}

// Load merges a full or partial snapshot taken at cursor. New ids are
// inserted; existing entities have snapshot fields applied in place,
// except any field class a push event advanced after the cursor was
// taken. Ids missing from the snapshot are never deleted - partial
// snapshots say nothing about absent entities.
func (s *AuctionStore) Load(cursor SnapshotCursor, entities []model.Auction) {
	type pending struct {
		fns    []func(Change)
		change Change
	}
	var notifications []pending

	s.mu.Lock()
	for _, e := range entities {
		existing, ok := s.auctions[e.ID]
		if !ok {
			inserted := e.Clone()
			s.auctions[e.ID] = &inserted
			change := Change{Kind: ChangeLoaded, Auction: inserted.Clone()}
			notifications = append(notifications, pending{s.pendingNotify(change), change})
			continue
		}

		// Descriptive fields always follow the snapshot.
		existing.Title = e.Title
		existing.Description = e.Description
		existing.Instructor = e.Instructor
		existing.StartTime = e.StartTime
		existing.EndTime = e.EndTime
		existing.StartPrice = e.StartPrice
		existing.FloorPrice = e.FloorPrice
		existing.NextDropTime = e.NextDropTime
		existing.CreatedAt = e.CreatedAt
		existing.UpdatedAt = e.UpdatedAt

		if s.priceSeq[e.ID] <= uint64(cursor) {
			existing.CurrentPrice = e.CurrentPrice
		}
		if s.turboSeq[e.ID] <= uint64(cursor) {
			existing.TurboActive = e.TurboActive
			existing.TurboStartedAt = e.TurboStartedAt
		}
		if s.statusSeq[e.ID] <= uint64(cursor) {
			// The lattice still holds against snapshots: terminal
			// states never regress, whatever the snapshot claims.
			if existing.Status == e.Status || existing.Status.CanTransitionTo(e.Status) {
				existing.Status = e.Status
			} else {
				log.Printf("[AuctionStore] snapshot status %s for auction %d ignored (currently %s)",
					e.Status, e.ID, existing.Status)
			}
		}

		change := Change{Kind: ChangeLoaded, Auction: existing.Clone()}
		notifications = append(notifications, pending{s.pendingNotify(change), change})
	}
	s.mu.Unlock()

	for _, n := range notifications {
		dispatch(n.fns, n.change)
	}
}

// Get returns a copy of the entity, or ok=false for untracked ids.
func (s *AuctionStore) Get(id int64) (model.Auction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, false
	}
	return a.Clone(), true
}

// List returns copies of all tracked entities in no particular order.
// Listing order is the sort utility's job, not storage order.
func (s *AuctionStore) List() []model.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, a.Clone())
	}
	return out
}

// Len returns the number of tracked entities.
func (s *AuctionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.auctions)
}

// ApplyPriceUpdate applies a push price event, last-write-wins in
// arrival order. Events for untracked ids are dropped, not queued.
// Re-applying the same price is a no-op for listeners.
func (s *AuctionStore) ApplyPriceUpdate(id int64, price decimal.Decimal) bool {
	s.mu.Lock()
	a, ok := s.auctions[id]
	if !ok {
		s.mu.Unlock()
		log.Printf("[AuctionStore] price update for untracked auction %d dropped", id)
		return false
	}

	s.seq++
	s.priceSeq[id] = s.seq

	changed := !a.CurrentPrice.Equal(price)
	a.CurrentPrice = price

	var fns []func(Change)
	var change Change
	if changed {
		change = Change{Kind: ChangePrice, Auction: a.Clone()}
		fns = s.pendingNotify(change)
	}
	s.mu.Unlock()

	if changed {
		dispatch(fns, change)
	}
	return true
}

// ApplyStatusUpdate applies a push status event against the
// one-directional lattice. Backward or lateral transitions out of a
// terminal state are rejected silently: logged, state unchanged.
func (s *AuctionStore) ApplyStatusUpdate(id int64, status model.Status) bool {
	s.mu.Lock()
	a, ok := s.auctions[id]
	if !ok {
		s.mu.Unlock()
		log.Printf("[AuctionStore] status update for untracked auction %d dropped", id)
		return false
	}

	s.seq++
	s.statusSeq[id] = s.seq

	if a.Status == status {
		// Re-confirmation of the current state (e.g. an authoritative
		// SOLD after an optimistic flip) is a no-op.
		s.mu.Unlock()
		return true
	}
	if !a.Status.CanTransitionTo(status) {
		s.mu.Unlock()
		log.Printf("[AuctionStore] rejected status transition %s -> %s for auction %d",
			a.Status, status, id)
		return false
	}

	a.Status = status
	change := Change{Kind: ChangeStatus, Auction: a.Clone()}
	fns := s.pendingNotify(change)
	s.mu.Unlock()

	dispatch(fns, change)
	return true
}

// ApplyTurboActivation marks turbo mode active. It never touches the
// price: turbo's price effect arrives through subsequent price events.
func (s *AuctionStore) ApplyTurboActivation(id int64, startedAt time.Time) bool {
	s.mu.Lock()
	a, ok := s.auctions[id]
	if !ok {
		s.mu.Unlock()
		log.Printf("[AuctionStore] turbo activation for untracked auction %d dropped", id)
		return false
	}

	s.seq++
	s.turboSeq[id] = s.seq

	a.TurboActive = true
	a.TurboStartedAt = &startedAt
	change := Change{Kind: ChangeTurbo, Auction: a.Clone()}
	fns := s.pendingNotify(change)
	s.mu.Unlock()

	dispatch(fns, change)
	return true
}

// Delete removes an entity. Absence from a later snapshot never implies
// deletion; this is the only removal path.
func (s *AuctionStore) Delete(id int64) bool {
	s.mu.Lock()
	a, ok := s.auctions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	change := Change{Kind: ChangeDeleted, Auction: a.Clone()}
	delete(s.auctions, id)
	delete(s.priceSeq, id)
	delete(s.statusSeq, id)
	delete(s.turboSeq, id)
	fns := s.pendingNotify(change)
	s.mu.Unlock()

	dispatch(fns, change)
	return true
}
