package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/feastline/feastline/pkg/types"
)

// statsInterval controls how often Run logs a connection summary.
const statsInterval = time.Minute

// EventSink receives a copy of every event routed through Emit. Sinks must
// not block: delivery to external systems (webhooks) happens on the sink's
// own goroutines.
type EventSink interface {
	Deliver(ev types.Event)
}

// Hub is the explicitly constructed notification core: one Registry, one
// Router, and the Emit entry point handed to collaborators. There is no
// process-global hub — everything that needs Emit receives the *Hub.
type Hub struct {
	reg    *Registry
	router *Router
	sinks  []EventSink
	now    func() time.Time // injectable for deterministic tests
}

// New creates a Hub. Sinks are optional secondary consumers of every
// emitted event.
func New(sinks ...EventSink) *Hub {
	reg := NewRegistry()
	return &Hub{
		reg:    reg,
		router: NewRouter(reg),
		sinks:  sinks,
		now:    time.Now,
	}
}

// Registry exposes the room registry to the transport layer for
// join/leave/remove. Collaborators emitting events never touch it.
func (h *Hub) Registry() *Registry { return h.reg }

// Emit routes ev to the connections selected by target and hands a copy to
// every sink. The sole entry point for order-processing collaborators.
//
// Events with an unknown type are dropped. A zero Timestamp is stamped with
// the current time so the client-side deduplication key is always populated.
func (h *Hub) Emit(ev types.Event, target types.Target) Delivery {
	if !ev.Type.Valid() {
		slog.Warn("hub: unknown event type — dropped", "type", ev.Type)
		return Delivery{}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now().UTC()
	}

	d := h.router.Route(ev, target)
	for _, s := range h.sinks {
		s.Deliver(ev)
	}
	return d
}

// Run blocks until ctx is cancelled, logging a periodic connection summary,
// then closes every registered connection.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(statsInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			events, deliveries, failures := h.router.Counters()
			slog.Debug("hub: status",
				"connections", h.reg.ConnCount(),
				"rooms", h.reg.RoomCount(),
				"events_routed", events,
				"deliveries", deliveries,
				"send_failures", failures,
			)
		}
	}
}

// closeAll tears down every registered connection during shutdown.
func (h *Hub) closeAll() {
	conns := h.reg.Conns()
	slog.Info("hub: shutting down", "connections", len(conns))
	for _, c := range conns {
		h.reg.Remove(c)
		c.Close()
	}
}

// Stats is a point-in-time summary of hub state for the stats endpoint and
// the Prometheus exposition.
type Stats struct {
	Connections  int
	Rooms        int
	RoomSizes    map[string]int
	EventsRouted uint64
	Deliveries   uint64
	SendFailures uint64
}

// Snapshot returns current hub statistics.
func (h *Hub) Snapshot() Stats {
	events, deliveries, failures := h.router.Counters()
	return Stats{
		Connections:  h.reg.ConnCount(),
		Rooms:        h.reg.RoomCount(),
		RoomSizes:    h.reg.RoomSizes(),
		EventsRouted: events,
		Deliveries:   deliveries,
		SendFailures: failures,
	}
}
