package handler

import (
	"net/http"

	"hothour-sync/internal/realtime"
	"hothour-sync/internal/service"
	"hothour-sync/pkg/response"
)

// ChannelHandler exposes realtime connection state and the manual
// reconnect affordance. Permanent disconnection is observable state,
// never a thrown failure, so consumers poll this endpoint.
type ChannelHandler struct {
	channel *realtime.Channel
	sync    *service.SyncService
}

// NewChannelHandler creates a channel handler.
func NewChannelHandler(channel *realtime.Channel, sync *service.SyncService) *ChannelHandler {
	return &ChannelHandler{channel: channel, sync: sync}
}

// ChannelStateResponse reports the realtime channel's health.
type ChannelStateResponse struct {
	State   realtime.State `json:"state"`
	Watched []int64        `json:"watched_auctions"`
}

// State handles GET /api/v1/channel
func (h *ChannelHandler) State(w http.ResponseWriter, r *http.Request) {
	response.OK(w, ChannelStateResponse{
		State:   h.channel.State(),
		Watched: h.sync.Watched(),
	})
}

// Reconnect handles POST /api/v1/channel/reconnect - the manual retry
// offered once the bounded reconnect budget is exhausted.
func (h *ChannelHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.channel.Reconnect(); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"state": h.channel.State()})
}

// Watch handles POST /api/v1/channel/watch/{id} via the sync service.
func (h *ChannelHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		response.NotFound(w, "invalid auction id")
		return
	}
	h.sync.Watch(id)
	response.OK(w, map[string]interface{}{"watching": id})
}

// Unwatch handles POST /api/v1/channel/unwatch/{id}.
func (h *ChannelHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		response.NotFound(w, "invalid auction id")
		return
	}
	h.sync.Unwatch(id)
	response.OK(w, map[string]interface{}{"watching": false})
}
