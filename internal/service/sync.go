package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"hothour-sync/internal/cache"
	"hothour-sync/internal/client"
	"hothour-sync/internal/model"
	"hothour-sync/internal/realtime"
	"hothour-sync/internal/repository"
	"hothour-sync/internal/session"
)

// cachedSnapshot is what the snapshot cache stores: the normalized
// entities plus the store cursor taken when the snapshot was requested,
// so a cache-served load keeps the same supersede semantics as a fresh
// one.
type cachedSnapshot struct {
	Cursor   repository.SnapshotCursor `json:"cursor"`
	Auctions []model.Auction           `json:"auctions"`
}

// SyncService hosts the reconciliation wiring: snapshot loads through
// the cache and REST client into the store, push events from the
// realtime channel into the store's mutation calls, and the
// resubscribe-on-connect contract.
type SyncService struct {
	client   *client.Client
	channel  *realtime.Channel
	store    *repository.AuctionStore
	archive  repository.ArchiveRepository
	cache    cache.SnapshotCache
	session  session.Provider
	cacheTTL time.Duration

	mu           sync.Mutex
	watched      map[int64]bool
	loading      bool
	lastErr      error
	eventTokens  []string
	connectToken string
}

// NewSyncService creates the service. archive and snapshotCache may be
// nil; both are best-effort side channels, never load-bearing.
func NewSyncService(
	c *client.Client,
	channel *realtime.Channel,
	store *repository.AuctionStore,
	archive repository.ArchiveRepository,
	snapshotCache cache.SnapshotCache,
	sess session.Provider,
	cacheTTL time.Duration,
) *SyncService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &SyncService{
		client:   c,
		channel:  channel,
		store:    store,
		archive:  archive,
		cache:    snapshotCache,
		session:  sess,
		cacheTTL: cacheTTL,
		watched:  make(map[int64]bool),
	}
}

// Start registers the push-event handlers and the on-connect
// resubscribe hook, then connects the channel. Handlers are registered
// before Connect so no event of a fresh connection can be missed.
func (s *SyncService) Start() error {
	s.mu.Lock()
	s.eventTokens = []string{
		s.channel.On(realtime.EventPriceUpdate, s.handlePriceUpdate),
		s.channel.On(realtime.EventAuctionUpdated, s.handleAuctionUpdated),
		s.channel.On(realtime.EventAuctionBooked, s.handleAuctionBooked),
		s.channel.On(realtime.EventTurboTriggered, s.handleTurboTriggered),
		s.channel.On(realtime.EventBookingConfirmed, s.handleBookingConfirmed),
	}
	s.connectToken = s.channel.OnConnect(s.resubscribe)
	s.mu.Unlock()

	return s.channel.Connect()
}

// Stop removes the handlers and closes the channel.
func (s *SyncService) Stop() error {
	s.mu.Lock()
	for _, token := range s.eventTokens {
		s.channel.Off(token)
	}
	s.eventTokens = nil
	if s.connectToken != "" {
		s.channel.OffConnect(s.connectToken)
		s.connectToken = ""
	}
	s.mu.Unlock()

	return s.channel.Close()
}

// ChannelState exposes the realtime connection state for observers.
func (s *SyncService) ChannelState() realtime.State {
	return s.channel.State()
}

// Loading reports whether a snapshot load is in flight.
func (s *SyncService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the outcome of the most recent load, nil on
// success. Reset at the start of every load.
func (s *SyncService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *SyncService) beginLoad() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *SyncService) finishLoad(err error) {
	s.mu.Lock()
	s.loading = false
	s.lastErr = err
	s.mu.Unlock()
}

// RefreshAll loads the full collection snapshot into the store, served
// from the snapshot cache inside its TTL. There is no cancellation tied
// to consumers: a load that outlives every watcher still merges its
// response when it completes.
func (s *SyncService) RefreshAll(ctx context.Context) error {
	s.beginLoad()

	if snap, ok := s.cachedGet(ctx, cache.ListKey); ok {
		s.store.Load(snap.Cursor, snap.Auctions)
		s.finishLoad(nil)
		return nil
	}

	cursor := s.store.Cursor()
	auctions, err := s.client.ListAuctions(ctx)
	if err != nil {
		s.finishLoad(err)
		return err
	}

	s.store.Load(cursor, auctions)
	s.cachedSet(ctx, cache.ListKey, cachedSnapshot{Cursor: cursor, Auctions: auctions})
	s.finishLoad(nil)
	return nil
}

// Refresh loads a single-auction snapshot into the store.
func (s *SyncService) Refresh(ctx context.Context, auctionID int64) error {
	s.beginLoad()

	key := cache.AuctionKey(auctionID)
	if snap, ok := s.cachedGet(ctx, key); ok {
		s.store.Load(snap.Cursor, snap.Auctions)
		s.finishLoad(nil)
		return nil
	}

	cursor := s.store.Cursor()
	auction, err := s.client.GetAuction(ctx, auctionID)
	if err != nil {
		s.finishLoad(err)
		return err
	}

	entities := []model.Auction{auction}
	s.store.Load(cursor, entities)
	s.cachedSet(ctx, key, cachedSnapshot{Cursor: cursor, Auctions: entities})
	s.finishLoad(nil)
	return nil
}

// Watch subscribes the auction's room and remembers the interest so the
// subscription survives reconnects via the resubscribe hook.
func (s *SyncService) Watch(auctionID int64) {
	s.mu.Lock()
	s.watched[auctionID] = true
	s.mu.Unlock()

	if err := s.channel.SubscribeAuction(auctionID); err != nil {
		log.Printf("[SyncService] subscribe auction %d: %v", auctionID, err)
	}
}

// Unwatch unsubscribes the auction's room. In-flight snapshot loads for
// the auction are not cancelled; a late response still merges.
func (s *SyncService) Unwatch(auctionID int64) {
	s.mu.Lock()
	delete(s.watched, auctionID)
	s.mu.Unlock()

	if err := s.channel.UnsubscribeAuction(auctionID); err != nil {
		log.Printf("[SyncService] unsubscribe auction %d: %v", auctionID, err)
	}
}

// Watched returns the currently watched auction ids.
func (s *SyncService) Watched() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.watched))
	for id := range s.watched {
		out = append(out, id)
	}
	return out
}

// resubscribe runs on every successful connect, initial and re-connect.
// The server forgets room membership across reconnects, so every
// watched room and the personal user room are re-joined here.
func (s *SyncService) resubscribe() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.watched))
	for id := range s.watched {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.channel.SubscribeAuction(id); err != nil {
			log.Printf("[SyncService] resubscribe auction %d: %v", id, err)
		}
	}
	if userID := s.session.UserID(); userID != 0 {
		if err := s.channel.SubscribeUser(userID); err != nil {
			log.Printf("[SyncService] resubscribe user %d: %v", userID, err)
		}
	}
}

func (s *SyncService) handlePriceUpdate(data json.RawMessage) {
	raw, err := model.DecodeRaw(data)
	if err != nil {
		log.Printf("[SyncService] bad price_update payload: %v", err)
		return
	}

	if s.store.ApplyPriceUpdate(raw.ID(), raw.CurrentPrice()) {
		s.invalidateSnapshots(raw.ID())
		s.archivePrice(raw.ID(), raw)
	}
}

func (s *SyncService) handleAuctionUpdated(data json.RawMessage) {
	raw, err := model.DecodeRaw(data)
	if err != nil {
		log.Printf("[SyncService] bad auction_updated payload: %v", err)
		return
	}

	id := raw.ID()
	applied := false
	if status := raw.Status(); status != "" {
		if s.store.ApplyStatusUpdate(id, status) {
			applied = true
			s.archiveStatus(id, status)
		}
	}
	if hasAny(raw, "current_price", "currentPrice") {
		if s.store.ApplyPriceUpdate(id, raw.CurrentPrice()) {
			applied = true
			s.archivePrice(id, raw)
		}
	}
	if applied {
		s.invalidateSnapshots(id)
	}
}

func (s *SyncService) handleAuctionBooked(data json.RawMessage) {
	raw, err := model.DecodeRaw(data)
	if err != nil {
		log.Printf("[SyncService] bad auction_booked payload: %v", err)
		return
	}

	id := raw.ID()
	if s.store.ApplyStatusUpdate(id, model.StatusSold) {
		s.invalidateSnapshots(id)
		s.archiveStatus(id, model.StatusSold)
	}
}

func (s *SyncService) handleTurboTriggered(data json.RawMessage) {
	raw, err := model.DecodeRaw(data)
	if err != nil {
		log.Printf("[SyncService] bad turbo_triggered payload: %v", err)
		return
	}

	startedAt := time.Now().UTC()
	if t := raw.TurboStartedAt(); t != nil {
		startedAt = *t
	}
	if s.store.ApplyTurboActivation(raw.ID(), startedAt) {
		s.invalidateSnapshots(raw.ID())
	}
}

func (s *SyncService) handleBookingConfirmed(data json.RawMessage) {
	raw, err := model.DecodeRaw(data)
	if err != nil {
		log.Printf("[SyncService] bad booking_confirmed payload: %v", err)
		return
	}

	res := model.NormalizeReservation(raw)
	log.Printf("[SyncService] booking confirmed: auction %d code %s", res.AuctionID, res.BookingCode)
	if s.archive != nil {
		s.archiveAsync(func(ctx context.Context) error {
			return s.archive.RecordReservation(ctx, res)
		})
	}
}

func (s *SyncService) cachedGet(ctx context.Context, key string) (cachedSnapshot, bool) {
	if s.cache == nil {
		return cachedSnapshot{}, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			log.Printf("[SyncService] cache get %s: %v", key, err)
		}
		return cachedSnapshot{}, false
	}
	var snap cachedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[SyncService] corrupt cache entry %s: %v", key, err)
		return cachedSnapshot{}, false
	}
	return snap, true
}

func (s *SyncService) cachedSet(ctx context.Context, key string, snap cachedSnapshot) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		log.Printf("[SyncService] cache set %s: %v", key, err)
	}
}

// invalidateSnapshots drops cached snapshots made stale by a push
// mutation.
func (s *SyncService) invalidateSnapshots(auctionID int64) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.cache.Invalidate(ctx, cache.ListKey)
	_ = s.cache.Invalidate(ctx, cache.AuctionKey(auctionID))
}

func (s *SyncService) archivePrice(id int64, raw model.RawRecord) {
	if s.archive == nil {
		return
	}
	price := raw.CurrentPrice()
	s.archiveAsync(func(ctx context.Context) error {
		return s.archive.RecordPrice(ctx, id, price, time.Now().UTC())
	})
}

func (s *SyncService) archiveStatus(id int64, status model.Status) {
	if s.archive == nil {
		return
	}
	s.archiveAsync(func(ctx context.Context) error {
		return s.archive.RecordStatus(ctx, id, status, time.Now().UTC())
	})
}

// archiveAsync runs an archive write off the hot path; failures are
// logged, never propagated.
func (s *SyncService) archiveAsync(fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("[SyncService] archive write failed: %v", err)
		}
	}()
}

// hasAny reports whether the raw record carries any of the given keys.
// Used to distinguish "price present" from the accessor's fallback
// chain resolving a price out of other fields.
func hasAny(raw model.RawRecord, keys ...string) bool {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return true
		}
	}
	return false
}
