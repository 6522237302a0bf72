package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/feastline/feastline/pkg/types"
)

// Defaults applied by New when the corresponding Option is zero.
const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultHistoryLimit   = 50
	DefaultDedupWindow    = 256
	DefaultEventBuffer    = 16

	writeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Send operations while the agent has no live
// connection to the hub.
var ErrNotConnected = errors.New("client: not connected")

// Options configures a Client. Endpoint is required; everything else has a
// usable default.
type Options struct {
	// Endpoint is the hub WebSocket URL, e.g. "ws://localhost:8080/ws".
	Endpoint string

	// Rooms are joined after every successful connect. The hub drops all
	// membership when a connection closes, so the agent re-joins each time.
	Rooms []types.RoomKey

	// UserID is carried in join messages for server-side logging.
	UserID int64

	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay time.Duration

	// HistoryLimit caps the most-recent-first event history.
	HistoryLimit int

	// DedupWindow caps how many event keys are remembered for duplicate
	// suppression.
	DedupWindow int

	// EventBuffer is the depth of the Events channel. When the consumer
	// falls behind, the oldest buffered event is evicted to make room.
	EventBuffer int

	// OnEvent, if set, is called synchronously for every fresh event before
	// it is placed on the Events channel. Side effects such as playing a
	// sound or raising a native notification belong to the consumer and are
	// gated by its own permission state.
	OnEvent func(types.Event)
}

// dialFunc opens a WebSocket connection to endpoint.
// Abstracted so tests can point the agent at an httptest server.
type dialFunc func(ctx context.Context, endpoint string) (*websocket.Conn, error)

// Client consumes notification events from a feastline hub.
// Create with New, then call Run in a goroutine and range over Events.
type Client struct {
	opts   Options
	dialFn dialFunc

	events    chan types.Event
	connected atomic.Bool

	mu       sync.Mutex
	sock     *websocket.Conn // nil while disconnected
	history  []types.Event   // most-recent-first, capped at HistoryLimit
	seen     map[string]struct{}
	seenFifo []string // insertion order, for window eviction
}

// New creates a Client with defaults filled in. It does not connect;
// call Run to start the dial/reconnect loop.
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	return &Client{
		opts:   opts,
		dialFn: defaultDial,
		events: make(chan types.Event, opts.EventBuffer),
		seen:   make(map[string]struct{}),
	}
}

// Events returns the channel of deduplicated notification events.
// It is closed when Run returns.
func (c *Client) Events() <-chan types.Event {
	return c.events
}

// Connected reports whether the agent currently holds a live connection.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// History returns a copy of the retained events, most recent first.
func (c *Client) History() []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Event, len(c.history))
	copy(out, c.history)
	return out
}

// SendLocation reports a driver position to the hub over the current
// connection. Used by driver apps; returns ErrNotConnected while offline.
func (c *Client) SendLocation(driverID int64, loc types.LatLng) error {
	frame, err := json.Marshal(map[string]any{
		"type":     types.MsgUpdateLocation,
		"driverId": driverID,
		"location": loc,
	})
	if err != nil {
		return fmt.Errorf("client: marshal location: %w", err)
	}
	return c.write(frame)
}

// Run connects to the hub and consumes events until ctx is cancelled,
// reconnecting with a fixed delay whenever the connection drops.
// The Events channel is closed before Run returns.
func (c *Client) Run(ctx context.Context) {
	defer close(c.events)

	for {
		if ctx.Err() != nil {
			return
		}

		sock, err := c.dialFn(ctx, c.opts.Endpoint)
		if err != nil {
			slog.Warn("client: dial failed, will retry",
				"endpoint", c.opts.Endpoint,
				"err", err,
				"retry_in", c.opts.ReconnectDelay)
			if !sleep(ctx, c.opts.ReconnectDelay) {
				return
			}
			continue
		}

		slog.Info("client: connected", "endpoint", c.opts.Endpoint, "rooms", len(c.opts.Rooms))
		err = c.session(ctx, sock)

		if ctx.Err() != nil {
			return
		}

		slog.Warn("client: connection lost, will reconnect",
			"endpoint", c.opts.Endpoint,
			"err", err,
			"retry_in", c.opts.ReconnectDelay)
		if !sleep(ctx, c.opts.ReconnectDelay) {
			return
		}
	}
}

// --- internal ---

// session runs one connection's lifetime: join rooms, then read frames until
// the connection fails or ctx is cancelled.
func (c *Client) session(ctx context.Context, sock *websocket.Conn) error {
	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
	c.connected.Store(true)

	defer func() {
		c.connected.Store(false)
		c.mu.Lock()
		c.sock = nil
		c.mu.Unlock()
		sock.Close() //nolint:errcheck
	}()

	// Unblock the read loop when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sock.Close() //nolint:errcheck
		case <-done:
		}
	}()

	if err := c.joinAll(); err != nil {
		return err
	}

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return fmt.Errorf("client: read: %w", err)
		}

		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("client: dropping malformed frame", "err", err)
			continue
		}
		if msg.Type != types.MsgNotification {
			continue
		}
		c.accept(msg.Data)
	}
}

// joinAll re-sends one join message per configured room.
func (c *Client) joinAll() error {
	for _, room := range c.opts.Rooms {
		frame, err := joinFrame(room, c.opts.UserID)
		if err != nil {
			return err
		}
		if err := c.write(frame); err != nil {
			return fmt.Errorf("client: join %s: %w", room, err)
		}
	}
	return nil
}

// accept records one pushed event: duplicate suppression, history, hook,
// then the Events channel.
func (c *Client) accept(ev types.Event) {
	c.mu.Lock()
	key := ev.Key()
	if _, dup := c.seen[key]; dup {
		c.mu.Unlock()
		slog.Debug("client: suppressed duplicate event", "key", key)
		return
	}
	c.remember(key)

	c.history = append([]types.Event{ev}, c.history...)
	if len(c.history) > c.opts.HistoryLimit {
		c.history = c.history[:c.opts.HistoryLimit]
	}
	c.mu.Unlock()

	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev)
	}

	select {
	case c.events <- ev:
	default:
		// Consumer is behind — evict the oldest buffered event.
		select {
		case <-c.events:
			slog.Warn("client: events buffer full, evicted oldest event",
				"buffer_cap", cap(c.events))
		default:
		}
		c.events <- ev
	}
}

// remember adds key to the dedup set, evicting the oldest key once the
// window is full. Caller holds c.mu.
func (c *Client) remember(key string) {
	if len(c.seenFifo) >= c.opts.DedupWindow {
		delete(c.seen, c.seenFifo[0])
		c.seenFifo = c.seenFifo[1:]
	}
	c.seen[key] = struct{}{}
	c.seenFifo = append(c.seenFifo, key)
}

// write sends one frame on the current connection.
func (c *Client) write(frame []byte) error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return ErrNotConnected
	}
	sock.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	return sock.WriteMessage(websocket.TextMessage, frame)
}

// joinFrame builds the wire join message for one room.
func joinFrame(room types.RoomKey, userID int64) ([]byte, error) {
	var msgType, idField string
	switch room.Role {
	case types.RoleCustomer:
		msgType, idField = types.MsgJoinCustomer, "customerId"
	case types.RoleRestaurant:
		msgType, idField = types.MsgJoinRestaurant, "restaurantId"
	case types.RoleDriver:
		msgType, idField = types.MsgJoinDriver, "driverId"
	default:
		return nil, fmt.Errorf("client: unknown room role %q", room.Role)
	}
	return json.Marshal(map[string]any{
		"type":   msgType,
		idField:  room.ID,
		"userId": userID,
	})
}

// defaultDial opens a WebSocket connection using the gorilla default dialer.
func defaultDial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	sock, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("client: dial %s: %w", endpoint, err)
	}
	return sock, nil
}

// sleep waits for d or until ctx is cancelled; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
