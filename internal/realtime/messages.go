package realtime

import "encoding/json"

// Envelope is the wire format in both directions: a named event plus an
// opaque JSON payload. The channel never interprets payloads; that is
// the listeners' job.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server subscription messages. All fire-and-forget: the
// server's "subscribed"/"unsubscribed" acks are relayed to listeners
// like any other event but never awaited.
const (
	MsgSubscribeAuction   = "subscribe_auction"
	MsgUnsubscribeAuction = "unsubscribe_auction"
	MsgSubscribeUser      = "subscribe_user"
)

// Server -> client event names the sync layer understands. Anything
// else is still relayed to whoever registered for it.
const (
	EventPriceUpdate      = "price_update"
	EventAuctionUpdated   = "auction_updated"
	EventAuctionBooked    = "auction_booked"
	EventTurboTriggered   = "turbo_triggered"
	EventBookingConfirmed = "booking_confirmed"
)

type auctionRoomPayload struct {
	AuctionID int64 `json:"auction_id"`
}

type userRoomPayload struct {
	UserID int64 `json:"user_id"`
}
