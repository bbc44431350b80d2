package model

import "sort"

// SortAuctionsByNewest returns a copy sorted strictly descending by the
// resolved freshness timestamp, ties broken by descending numeric id.
// Storage order carries no meaning; listing order always comes from
// this utility.
func SortAuctionsByNewest(auctions []Auction) []Auction {
	out := make([]Auction, len(auctions))
	copy(out, auctions)

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].UpdatedAt, out[j].UpdatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// SortReservationsByNewest sorts reservations descending by reservation
// time, ties broken by descending id.
func SortReservationsByNewest(reservations []Reservation) []Reservation {
	out := make([]Reservation, len(reservations))
	copy(out, reservations)

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].ReservedAt, out[j].ReservedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
