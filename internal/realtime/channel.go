package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"hothour-sync/pkg/apierror"
	"hothour-sync/pkg/uid"

	"github.com/gorilla/websocket"
)

// State is the observable connection state. Permanent disconnection
// (retry budget exhausted) is state, not an error delivered to
// listeners; consumers poll or observe it and offer a manual reconnect.
type State string

const (
	StateIdle         State = "idle"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// EventHandler receives the raw payload of one named event.
type EventHandler func(data json.RawMessage)

// Config holds the channel's endpoint and reconnection policy: bounded
// attempts with a fixed delay, no backoff, no jitter.
type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	WriteTimeout      time.Duration
}

type eventListener struct {
	event string
	fn    EventHandler
}

// Channel owns the persistent websocket connection and the room-based
// subscription lifecycle.
//
// Correctness contract: the server does not persist room membership
// across reconnects, and messages sent while disconnected are lost.
// The channel therefore does NOT replay subscriptions itself; it
// invokes every OnConnect callback on each successful connect (initial
// and re-connect), and subscribers must re-issue their subscribe calls
// there. Subscribing once on mount and relying on an automatic resume
// silently stops event delivery after the first reconnect.
type Channel struct {
	cfg    Config
	dialer *websocket.Dialer

	mu              sync.Mutex
	conn            *websocket.Conn
	state           State
	closed          bool
	reconnecting    bool
	eventListeners  map[string]eventListener
	connectHandlers map[string]func()
}

// NewChannel creates a channel. Connect must be called to establish the
// connection.
func NewChannel(cfg Config) *Channel {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Channel{
		cfg:             cfg,
		dialer:          &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:           StateIdle,
		eventListeners:  make(map[string]eventListener),
		connectHandlers: make(map[string]func()),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers a handler for a named server event. Handlers for the
// same event run in registration order on the single reader goroutine,
// so same-event delivery order is preserved end to end. Returns a token
// for Off.
func (c *Channel) On(event string, fn EventHandler) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := uid.New()
	c.eventListeners[token] = eventListener{event: event, fn: fn}
	return token
}

// Off removes an event handler. Unknown tokens are ignored.
func (c *Channel) Off(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.eventListeners, token)
}

// OnConnect registers a callback invoked after every successful
// connect, including reconnects. Subscribers re-issue their room
// subscriptions here. Returns a token for OffConnect.
func (c *Channel) OnConnect(fn func()) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := uid.New()
	c.connectHandlers[token] = fn
	return token
}

// OffConnect removes a connect callback.
func (c *Channel) OffConnect(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.connectHandlers, token)
}

// Connect establishes the connection. Idempotent while connected or
// already reconnecting. An initial dial failure consumes the same
// bounded retry budget as a dropped connection; Connect itself returns
// immediately and the attempts continue in the background, mirroring
// the transport's async connect semantics.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apierror.TransportDisconnected("channel is closed")
	}
	if c.state == StateConnected || c.reconnecting {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		log.Printf("[RealtimeChannel] initial connect failed: %v", err)
		c.startReconnect()
		return nil
	}

	c.established(conn)
	return nil
}

// Reconnect resets a permanently disconnected channel and tries again
// with a fresh retry budget. This is the manual affordance consumers
// offer once State reports StateDisconnected.
func (c *Channel) Reconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apierror.TransportDisconnected("channel is closed")
	}
	if c.state == StateDisconnected {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return c.Connect()
}

// Close tears the connection down permanently.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// SubscribeAuction joins the auction-scoped room. Fire-and-forget.
func (c *Channel) SubscribeAuction(auctionID int64) error {
	return c.send(MsgSubscribeAuction, auctionRoomPayload{AuctionID: auctionID})
}

// UnsubscribeAuction leaves the auction-scoped room. Fire-and-forget.
func (c *Channel) UnsubscribeAuction(auctionID int64) error {
	return c.send(MsgUnsubscribeAuction, auctionRoomPayload{AuctionID: auctionID})
}

// SubscribeUser joins the user-scoped room for personal notifications.
func (c *Channel) SubscribeUser(userID int64) error {
	return c.send(MsgSubscribeUser, userRoomPayload{UserID: userID})
}

// send writes one envelope. Messages attempted while disconnected are
// lost by design; the error exists so callers can log.
func (c *Channel) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return apierror.TransportDisconnected("cannot send " + event + ": not connected")
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(Envelope{Event: event, Data: payload})
}

// established installs a live connection, starts the reader, and fires
// the connect callbacks.
func (c *Channel) established(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.reconnecting = false
	handlers := make([]func(), 0, len(c.connectHandlers))
	for _, fn := range c.connectHandlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	log.Printf("[RealtimeChannel] connected to %s", c.cfg.URL)
	go c.readPump(conn)

	for _, fn := range handlers {
		fn()
	}
}

// readPump is the single reader goroutine. Dispatching events from one
// goroutine preserves transport order for same-event streams and
// serializes every repository mutation the handlers perform.
func (c *Channel) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			current := c.conn == conn
			if current {
				c.conn = nil
			}
			c.mu.Unlock()

			if closed || !current {
				return
			}
			log.Printf("[RealtimeChannel] connection lost: %v", err)
			c.startReconnect()
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			log.Printf("[RealtimeChannel] dropping malformed frame: %s", data)
			continue
		}

		c.mu.Lock()
		fns := make([]EventHandler, 0)
		for _, l := range c.eventListeners {
			if l.event == env.Event {
				fns = append(fns, l.fn)
			}
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn(env.Data)
		}
	}
}

// startReconnect runs the bounded retry loop: fixed delay, fixed
// attempt count. After exhaustion the channel stays permanently
// disconnected until Reconnect is called.
func (c *Channel) startReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.state = StateReconnecting
	c.mu.Unlock()

	go func() {
		for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
			time.Sleep(c.cfg.ReconnectDelay)

			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

			conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
			if err == nil {
				c.established(conn)
				return
			}
			log.Printf("[RealtimeChannel] reconnect attempt %d/%d failed: %v",
				attempt, c.cfg.ReconnectAttempts, err)
		}

		c.mu.Lock()
		c.reconnecting = false
		c.state = StateDisconnected
		c.mu.Unlock()
		log.Printf("[RealtimeChannel] retry budget exhausted, staying disconnected")
	}()
}
