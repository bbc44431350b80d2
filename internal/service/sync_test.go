package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"hothour-sync/internal/cache"
	"hothour-sync/internal/client"
	"hothour-sync/internal/model"
	"hothour-sync/internal/realtime"
	"hothour-sync/internal/repository"
	"hothour-sync/internal/service"
	"hothour-sync/internal/session"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/gorilla/websocket"
)

// wsBackend is a minimal realtime endpoint: per-connection room
// membership that dies with the connection, plus room broadcasts.
type wsBackend struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]map[string]bool
	connects int
}

func newWsBackend() *wsBackend {
	b := &wsBackend{conns: make(map[*websocket.Conn]map[string]bool)}
	b.httpServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns[ws] = make(map[string]bool)
		b.connects++
		b.mu.Unlock()

		for {
			var env realtime.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				b.mu.Lock()
				delete(b.conns, ws)
				b.mu.Unlock()
				return
			}
			var payload struct {
				AuctionID int64 `json:"auction_id"`
				UserID    int64 `json:"user_id"`
			}
			_ = json.Unmarshal(env.Data, &payload)

			b.mu.Lock()
			switch env.Event {
			case realtime.MsgSubscribeAuction:
				b.conns[ws][fmt.Sprintf("auction:%d", payload.AuctionID)] = true
			case realtime.MsgUnsubscribeAuction:
				delete(b.conns[ws], fmt.Sprintf("auction:%d", payload.AuctionID))
			case realtime.MsgSubscribeUser:
				b.conns[ws][fmt.Sprintf("user:%d", payload.UserID)] = true
			}
			b.mu.Unlock()
		}
	}))
	return b
}

func (b *wsBackend) url() string {
	return "ws" + strings.TrimPrefix(b.httpServer.URL, "http")
}

func (b *wsBackend) connectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

func (b *wsBackend) subscribedCount(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, rooms := range b.conns {
		if rooms[room] {
			count++
		}
	}
	return count
}

func (b *wsBackend) broadcast(room, event string, payload interface{}) {
	data, _ := json.Marshal(payload)
	b.mu.Lock()
	defer b.mu.Unlock()
	for ws, rooms := range b.conns {
		if rooms[room] {
			_ = ws.WriteJSON(realtime.Envelope{Event: event, Data: data})
		}
	}
}

func (b *wsBackend) dropConnections() {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.conns))
	for ws := range b.conns {
		conns = append(conns, ws)
	}
	b.conns = make(map[*websocket.Conn]map[string]bool)
	b.mu.Unlock()

	for _, ws := range conns {
		_ = ws.Close()
	}
}

func (b *wsBackend) close() {
	b.dropConnections()
	b.httpServer.Close()
}

var _ = Describe("SyncService", func() {
	var restServer *httptest.Server
	var backend *wsBackend
	var listBody string
	var listRequests int
	var store *repository.AuctionStore
	var snapshotCache *cache.MemoryCache
	var svc *service.SyncService
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		listRequests = 0
		listBody = `[
			{"id": 1, "title": "Hot Yoga", "status": "ACTIVE", "current_price": "420.00", "start_price": "500.00"},
			{"id": 2, "title": "Spin Class", "status": "ACTIVE", "currentPrice": "310.00", "startPrice": "400.00"}
		]`

		mux := http.NewServeMux()
		mux.HandleFunc("/api/v1/auctions", func(w http.ResponseWriter, r *http.Request) {
			listRequests++
			_, _ = w.Write([]byte(listBody))
		})
		mux.HandleFunc("/api/v1/auctions/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id": 1, "title": "Hot Yoga", "status": "ACTIVE", "current_price": "415.00"}`))
		})
		restServer = httptest.NewServer(mux)

		backend = newWsBackend()
		store = repository.NewAuctionStore()
		snapshotCache = cache.NewMemoryCache()

		sess := session.NewStatic("tok", 9)
		restClient := client.New(restServer.URL, 5*time.Second, sess)
		channel := realtime.NewChannel(realtime.Config{
			URL:               backend.url(),
			ReconnectAttempts: 5,
			ReconnectDelay:    30 * time.Millisecond,
			WriteTimeout:      time.Second,
		})
		svc = service.NewSyncService(restClient, channel, store, nil, snapshotCache, sess, 30*time.Second)
	})

	AfterEach(func() {
		_ = svc.Stop()
		backend.close()
		restServer.Close()
		Expect(snapshotCache.Close()).To(Succeed())
	})

	Describe("snapshot loads", func() {
		It("loads the normalized collection into the repository", func() {
			Expect(svc.RefreshAll(ctx)).To(Succeed())

			Expect(store.Len()).To(Equal(2))
			a, ok := store.Get(2)
			Expect(ok).To(BeTrue())
			Expect(a.CurrentPrice.String()).To(Equal("310.00"))
			Expect(svc.Loading()).To(BeFalse())
			Expect(svc.LastError()).NotTo(HaveOccurred())
		})

		It("serves repeat loads from the snapshot cache inside the TTL", func() {
			Expect(svc.RefreshAll(ctx)).To(Succeed())
			Expect(svc.RefreshAll(ctx)).To(Succeed())

			Expect(listRequests).To(Equal(1))
		})

		It("loads a single-auction snapshot", func() {
			Expect(svc.Refresh(ctx, 1)).To(Succeed())

			a, ok := store.Get(1)
			Expect(ok).To(BeTrue())
			Expect(a.CurrentPrice.String()).To(Equal("415.00"))
		})

		It("records the failure when the backend is unreachable", func() {
			restServer.Close()

			Expect(svc.RefreshAll(ctx)).NotTo(Succeed())
			Expect(svc.LastError()).To(HaveOccurred())
			Expect(store.Len()).To(BeZero())
		})
	})

	Describe("push events", func() {
		BeforeEach(func() {
			Expect(svc.RefreshAll(ctx)).To(Succeed())
			Expect(svc.Start()).To(Succeed())
			Eventually(svc.ChannelState).Should(Equal(realtime.StateConnected))

			svc.Watch(1)
			Eventually(func() int { return backend.subscribedCount("auction:1") }).Should(Equal(1))
		})

		It("applies price updates to the repository", func() {
			backend.broadcast("auction:1", realtime.EventPriceUpdate,
				map[string]interface{}{"id": 1, "current_price": "400.00"})

			Eventually(func() string {
				a, _ := store.Get(1)
				return a.CurrentPrice.String()
			}).Should(Equal("400.00"))
		})

		It("invalidates the cached snapshot after a push mutation", func() {
			backend.broadcast("auction:1", realtime.EventPriceUpdate,
				map[string]interface{}{"id": 1, "current_price": "400.00"})
			Eventually(func() string {
				a, _ := store.Get(1)
				return a.CurrentPrice.String()
			}).Should(Equal("400.00"))

			// The stale list snapshot must be gone: the next load hits
			// the backend again.
			before := listRequests
			Eventually(func() error {
				_, err := snapshotCache.Get(ctx, cache.ListKey)
				return err
			}).Should(MatchError(cache.ErrCacheMiss))
			Expect(svc.RefreshAll(ctx)).To(Succeed())
			Expect(listRequests).To(Equal(before + 1))
		})

		It("marks the auction SOLD when a booked event arrives", func() {
			backend.broadcast("auction:1", realtime.EventAuctionBooked,
				map[string]interface{}{"id": 1})

			Eventually(func() model.Status {
				a, _ := store.Get(1)
				return a.Status
			}).Should(Equal(model.StatusSold))
		})

		It("activates turbo without touching the price", func() {
			backend.broadcast("auction:1", realtime.EventTurboTriggered,
				map[string]interface{}{"id": 1, "turbo_started_at": "2026-08-28T10:00:00Z"})

			Eventually(func() bool {
				a, _ := store.Get(1)
				return a.TurboActive
			}).Should(BeTrue())
			a, _ := store.Get(1)
			Expect(a.CurrentPrice.String()).To(Equal("420.00"))
		})

		It("applies status from auction_updated without inventing a price", func() {
			backend.broadcast("auction:1", realtime.EventAuctionUpdated,
				map[string]interface{}{"id": 1, "status": "CANCELLED"})

			Eventually(func() model.Status {
				a, _ := store.Get(1)
				return a.Status
			}).Should(Equal(model.StatusCancelled))
			a, _ := store.Get(1)
			Expect(a.CurrentPrice.String()).To(Equal("420.00"))
		})
	})

	Describe("resubscribe on connect", func() {
		It("re-joins every watched room and the user room after a reconnect", func() {
			Expect(svc.Start()).To(Succeed())
			Eventually(svc.ChannelState).Should(Equal(realtime.StateConnected))
			Eventually(func() int { return backend.subscribedCount("user:9") }).Should(Equal(1))

			svc.Watch(1)
			svc.Watch(2)
			Eventually(func() int { return backend.subscribedCount("auction:1") }).Should(Equal(1))
			Eventually(func() int { return backend.subscribedCount("auction:2") }).Should(Equal(1))

			backend.dropConnections()

			Eventually(backend.connectCount, time.Second).Should(Equal(2))
			Eventually(func() int { return backend.subscribedCount("auction:1") }).Should(Equal(1))
			Eventually(func() int { return backend.subscribedCount("auction:2") }).Should(Equal(1))
			Eventually(func() int { return backend.subscribedCount("user:9") }).Should(Equal(1))
		})

		It("does not re-join rooms that were unwatched before the reconnect", func() {
			Expect(svc.Start()).To(Succeed())
			Eventually(svc.ChannelState).Should(Equal(realtime.StateConnected))

			svc.Watch(1)
			Eventually(func() int { return backend.subscribedCount("auction:1") }).Should(Equal(1))
			svc.Unwatch(1)
			Eventually(func() int { return backend.subscribedCount("auction:1") }).Should(BeZero())

			backend.dropConnections()
			Eventually(backend.connectCount, time.Second).Should(Equal(2))

			Consistently(func() int { return backend.subscribedCount("auction:1") }, 200*time.Millisecond).Should(BeZero())
			Expect(svc.Watched()).To(BeEmpty())
		})
	})
})
