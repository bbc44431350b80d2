package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"hothour-sync/internal/client"
	"hothour-sync/internal/session"
	"hothour-sync/pkg/apierror"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var server *httptest.Server
	var handler http.HandlerFunc
	var ctx context.Context

	newClient := func(sess session.Provider) *client.Client {
		return client.New(server.URL, 5*time.Second, sess)
	}

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("listing auctions", func() {
		It("normalizes mixed field spellings at the boundary", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/auctions"))
				Expect(r.URL.Query().Get("include_computed")).To(Equal("true"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[
					{"id": 1, "title": "Hot Yoga", "status": "ACTIVE", "current_price": "420.00", "start_price": "500.00"},
					{"id": 2, "title": "Spin Class", "status": "ACTIVE", "currentPrice": "310.00", "startPrice": "400.00"},
					{"id": 3, "title": "Boxing", "status": "ACTIVE", "computedPrice": "250.00", "start_price": "300.00"}
				]`))
			}

			auctions, err := newClient(session.NewStatic("", 0)).ListAuctions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(auctions).To(HaveLen(3))
			Expect(auctions[0].CurrentPrice.String()).To(Equal("420.00"))
			Expect(auctions[1].CurrentPrice.String()).To(Equal("310.00"))
			Expect(auctions[2].CurrentPrice.String()).To(Equal("250.00"))
		})

		It("skips malformed records instead of failing the whole snapshot", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[
					{"title": "no id here"},
					{"id": 7, "title": "Pilates", "status": "ACTIVE", "current_price": "100.00"}
				]`))
			}

			auctions, err := newClient(session.NewStatic("", 0)).ListAuctions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(auctions).To(HaveLen(1))
			Expect(auctions[0].ID).To(Equal(int64(7)))
		})
	})

	Describe("error mapping", func() {
		It("maps a 409 to the conflict kind with the race message", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"detail": "already booked"}`))
			}

			_, err := newClient(session.NewStatic("tok", 9)).BookAuction(ctx, 1, 9)
			Expect(apierror.IsKind(err, apierror.KindConflict)).To(BeTrue())
		})

		It("maps a 401 to the unauthenticated kind", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}

			_, err := newClient(session.NewStatic("expired", 9)).BookAuction(ctx, 1, 9)
			Expect(apierror.IsKind(err, apierror.KindUnauthenticated)).To(BeTrue())
		})

		It("maps a 404 to the not-found kind", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}

			_, err := newClient(session.NewStatic("", 0)).GetAuction(ctx, 99)
			Expect(apierror.IsKind(err, apierror.KindNotFound)).To(BeTrue())
		})

		It("surfaces the backend detail for a 422", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"detail": "floor_price must be below start_price"}`))
			}

			_, err := newClient(session.NewStatic("tok", 9)).CreateAuction(ctx, client.AuctionDraft{Title: "x"})
			Expect(apierror.IsKind(err, apierror.KindValidation)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("floor_price must be below start_price"))
		})

		It("maps an unreachable backend to the network-failure kind", func() {
			c := client.New("http://127.0.0.1:1", time.Second, session.NewStatic("", 0))
			_, err := c.ListAuctions(ctx)
			Expect(apierror.IsKind(err, apierror.KindNetwork)).To(BeTrue())
		})
	})

	Describe("authentication", func() {
		It("sends the bearer token on privileged calls", func() {
			var gotAuth string
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				_, _ = w.Write([]byte(`{"id": 1, "auction_id": 1, "user_id": 9, "booking_code": "HH-0001", "status": "CONFIRMED"}`))
			}

			_, err := newClient(session.NewStatic("secret-token", 9)).BookAuction(ctx, 1, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotAuth).To(Equal("Bearer secret-token"))
		})

		It("refuses privileged calls without a token before touching the network", func() {
			var requests int
			handler = func(w http.ResponseWriter, r *http.Request) { requests++ }

			_, err := newClient(session.NewStatic("", 0)).BookAuction(ctx, 1, 9)
			Expect(apierror.IsKind(err, apierror.KindUnauthenticated)).To(BeTrue())
			Expect(requests).To(BeZero())
		})

		It("tags every request with a request id", func() {
			var gotID string
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotID = r.Header.Get("X-Request-ID")
				_, _ = w.Write([]byte(`[]`))
			}

			_, err := newClient(session.NewStatic("", 0)).ListAuctions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotID).NotTo(BeEmpty())
		})
	})
})
