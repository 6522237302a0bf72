package hub

import "errors"

// Send errors a Conn implementation may return. Any error from Send marks
// the connection unhealthy; these two are distinguished only in logs.
var (
	// ErrBufferFull means the connection's outbound buffer is at capacity.
	ErrBufferFull = errors.New("outbound buffer full")

	// ErrConnClosed means the connection is already closing or closed.
	ErrConnClosed = errors.New("connection closed")
)

// Conn is the hub's view of one client connection. The transport
// implementation (server/internal/ws) owns the socket; the hub only needs
// identity, a non-blocking send, and a way to tear the connection down.
type Conn interface {
	// ID returns the server-assigned opaque connection id.
	ID() string

	// Send enqueues one serialized message without blocking. An error means
	// the connection is unhealthy and will be removed from the registry.
	Send(data []byte) error

	// Close tears down the transport. Idempotent.
	Close()
}
