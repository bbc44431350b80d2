package handler

import (
	"net/http"

	"hothour-sync/internal/service"
	"hothour-sync/pkg/response"
)

// BookingHandler exposes the claim action on the local API.
type BookingHandler struct {
	coordinator *service.BookingCoordinator
}

// NewBookingHandler creates a booking handler.
func NewBookingHandler(coordinator *service.BookingCoordinator) *BookingHandler {
	return &BookingHandler{coordinator: coordinator}
}

// Book handles POST /api/v1/book/{id}. Conflicts surface with their
// race-specific message and a 409, distinct from generic failures.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionIDParam(r)
	if !ok {
		response.NotFound(w, "invalid auction id")
		return
	}

	reservation, err := h.coordinator.Book(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, reservation)
}
