package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/feastline/feastline/pkg/types"
	"github.com/feastline/feastline/server/internal/hub"
	"github.com/feastline/feastline/server/internal/track"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP connections on the single /ws endpoint and serves
// them for their lifetime. Every role connects here; which rooms a client
// belongs to is decided by its join messages, not the URL.
type Handler struct {
	hub       *hub.Hub
	locations *track.Store
	tuning    atomic.Pointer[Tuning]
}

// NewHandler creates a Handler that registers connections with h and records
// driver positions in locations.
func NewHandler(h *hub.Hub, locations *track.Store, tuning Tuning) *Handler {
	hd := &Handler{hub: h, locations: locations}
	hd.tuning.Store(&tuning)
	return hd
}

// SetTuning replaces the liveness/backpressure parameters applied to
// connections accepted after this call. Used by config hot-reload.
func (h *Handler) SetTuning(tuning Tuning) {
	h.tuning.Store(&tuning)
}

// ServeHTTP upgrades the connection and serves it until it closes. The
// connection is registered immediately so broadcasts reach it even before
// its first join message.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := newConn(uuid.NewString(), sock, *h.tuning.Load())
	reg := h.hub.Registry()
	reg.Register(c)
	slog.Info("ws: client connected", "conn", c.ID(), "remote", r.RemoteAddr)

	defer func() {
		reg.Remove(c)
		c.Close()
		slog.Info("ws: client disconnected",
			"conn", c.ID(),
			"last_heartbeat", c.lastHeartbeatAt(),
		)
	}()

	go c.writePump()
	c.readPump(func(data []byte) {
		h.dispatch(c, data)
	})
}

// dispatch handles one inbound frame. Malformed frames are dropped and the
// connection stays open.
func (h *Handler) dispatch(c *conn, data []byte) {
	msg, err := types.DecodeInbound(data)
	if err != nil {
		slog.Debug("ws: dropping malformed message", "conn", c.ID(), "err", err)
		return
	}

	switch m := msg.(type) {
	case types.JoinMessage:
		h.hub.Registry().Join(c, m.Room)
		slog.Info("ws: client joined room",
			"conn", c.ID(), "room", m.Room.String(), "user", m.UserID)

	case types.LocationMessage:
		h.locations.Put(m.DriverID, m.Location)

		// Re-emit to the driver's room so trackers (e.g. the customer app
		// following an active order) see the position live.
		payload, err := json.Marshal(m.Location)
		if err != nil {
			return
		}
		h.hub.Emit(types.Event{
			Type:     types.EventDriverLocationUpdate,
			DriverID: m.DriverID,
			Data:     payload,
		}, types.TargetRooms(types.DriverRoom(m.DriverID)))
	}
}
