package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/feastline/feastline/server/internal/hub"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// maxMessageSize bounds inbound frames. Join and location messages are
	// tiny; anything larger is a misbehaving client.
	maxMessageSize = 1024
)

// Tuning holds the liveness and backpressure parameters captured by each
// connection at upgrade time. Changing the handler's tuning affects
// connections accepted afterwards, never in-flight ones.
type Tuning struct {
	// HeartbeatInterval is how often the server pings the client.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long to wait for a pong before treating the
	// connection as dead. At least twice the interval.
	HeartbeatTimeout time.Duration

	// SendBuffer is the outbound message buffer depth. Overflow classifies
	// the connection unhealthy.
	SendBuffer int
}

// connState tracks the connection lifecycle.
type connState int32

const (
	stateOpen connState = iota
	stateClosing
	stateClosed
)

// conn wraps one client's WebSocket and implements hub.Conn. The socket is
// owned exclusively by the read and write pumps; the hub only ever touches
// the send buffer.
type conn struct {
	id     string
	sock   *websocket.Conn
	tuning Tuning

	mu    sync.Mutex // guards state and the send-channel close
	state connState
	send  chan []byte

	lastHeartbeat atomic.Int64 // unix nanos of the last pong received
}

func newConn(id string, sock *websocket.Conn, tuning Tuning) *conn {
	c := &conn{
		id:     id,
		sock:   sock,
		tuning: tuning,
		send:   make(chan []byte, tuning.SendBuffer),
	}
	c.lastHeartbeat.Store(time.Now().UnixNano())
	return c
}

func (c *conn) ID() string { return c.id }

// Send enqueues data without blocking. A full buffer or a closing connection
// is an error — the caller treats either as the connection being dead.
func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateOpen {
		return hub.ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return hub.ErrBufferFull
	}
}

// Close moves the connection to Closing and closes the send channel, which
// makes the write pump send a close frame and drop the socket. Idempotent.
func (c *conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateOpen {
		return
	}
	c.state = stateClosing
	close(c.send)
}

// markClosed records the terminal state once a pump has observed the
// transport gone.
func (c *conn) markClosed() {
	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()
}

// lastHeartbeatAt returns the time of the most recent pong.
func (c *conn) lastHeartbeatAt() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// writePump drains the send buffer and forwards messages to the socket,
// interleaving ping frames every heartbeat interval. Runs in its own
// goroutine per connection and owns all writes to the socket.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.tuning.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Send channel was closed (hub shutdown or removal).
				c.sock.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the socket, feeding each to onMessage, and
// detects disconnects. A pong inside the heartbeat timeout extends the read
// deadline; a missed pong fails the next read. Blocks until the connection
// closes.
func (c *conn) readPump(onMessage func(data []byte)) {
	defer func() {
		c.markClosed()
		c.sock.Close()
	}()

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(c.tuning.HeartbeatTimeout))
	c.sock.SetPongHandler(func(string) error {
		c.lastHeartbeat.Store(time.Now().UnixNano())
		c.sock.SetReadDeadline(time.Now().Add(c.tuning.HeartbeatTimeout))
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		onMessage(data)
	}
}
