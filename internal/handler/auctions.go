package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hothour-sync/internal/model"
	"hothour-sync/internal/repository"
	"hothour-sync/internal/service"
	"hothour-sync/pkg/response"
)

// AuctionHandler serves the tracked auction view from the live store
// and history from the archive.
type AuctionHandler struct {
	store   *repository.AuctionStore
	archive repository.ArchiveRepository
	sync    *service.SyncService
}

// NewAuctionHandler creates an auction handler. archive may be nil.
func NewAuctionHandler(store *repository.AuctionStore, archive repository.ArchiveRepository, sync *service.SyncService) *AuctionHandler {
	return &AuctionHandler{store: store, archive: archive, sync: sync}
}

// List handles GET /api/v1/auctions - the tracked entities sorted
// newest first.
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	auctions := model.SortAuctionsByNewest(h.store.List())
	response.OK(w, auctions)
}

// Get handles GET /api/v1/auctions/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		response.NotFound(w, "invalid auction id")
		return
	}

	auction, ok := h.store.Get(id)
	if !ok {
		response.NotFound(w, "auction not tracked")
		return
	}
	response.OK(w, auction)
}

// History handles GET /api/v1/auctions/{id}/history - the archived
// price trail, newest first.
func (h *AuctionHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		response.NotFound(w, "archive disabled")
		return
	}

	id, ok := auctionIDParam(r)
	if !ok {
		response.NotFound(w, "invalid auction id")
		return
	}

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	points, err := h.archive.PriceHistory(ctx, id, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, points)
}

// Refresh handles POST /api/v1/auctions/refresh - forces a full
// snapshot load.
func (h *AuctionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.RefreshAll(r.Context()); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"tracked": h.store.Len()})
}
