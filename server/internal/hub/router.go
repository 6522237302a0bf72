package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/feastline/feastline/pkg/types"
)

// Delivery reports how one fan-out pass went. Counts are diagnostics only —
// push delivery is fire-and-forget and callers must not treat Delivered as a
// confirmation.
type Delivery struct {
	Attempted int
	Delivered int
}

// Router resolves an event's target selector against the Registry and pushes
// the serialized payload to each resolved connection.
//
// Fan-out passes are serialized: two events routed to the same room are
// enqueued on every member in the order Route was called. The router mutex
// covers target resolution and buffer enqueue only — the actual network
// write happens in each connection's write pump.
type Router struct {
	reg *Registry
	mu  sync.Mutex

	eventsRouted atomic.Uint64
	deliveries   atomic.Uint64
	sendFailures atomic.Uint64
}

// NewRouter creates a Router reading targets from reg.
func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// Route delivers ev to every connection selected by target. A send failure
// on one connection never affects the others: the failing connection is
// logged, closed, and removed from the registry.
//
// A targeted event whose resolved set is empty is not an error — nobody is
// connected for those rooms and the event is simply dropped.
func (r *Router) Route(ev types.Event, target types.Target) Delivery {
	data, err := json.Marshal(types.Notification(ev))
	if err != nil {
		// Event payloads are caller-built json.RawMessage; a marshal failure
		// means the raw payload is invalid JSON.
		slog.Warn("router: event not serializable — dropped",
			"type", ev.Type, "order_id", ev.OrderID, "err", err)
		return Delivery{}
	}

	r.mu.Lock()
	conns := r.resolve(target)
	d := Delivery{Attempted: len(conns)}

	var failed []Conn
	for _, c := range conns {
		if err := c.Send(data); err != nil {
			slog.Warn("router: send failed — removing connection",
				"conn", c.ID(), "type", ev.Type, "err", err)
			failed = append(failed, c)
			continue
		}
		d.Delivered++
	}
	r.mu.Unlock()

	r.eventsRouted.Add(1)
	r.deliveries.Add(uint64(d.Delivered))
	r.sendFailures.Add(uint64(len(failed)))

	// Tear down unhealthy connections outside the router lock. Close wakes
	// the connection's pumps, which call Registry.Remove on their way out,
	// but remove eagerly here so the next pass doesn't target them again.
	for _, c := range failed {
		r.reg.Remove(c)
		c.Close()
	}

	slog.Debug("router: event routed",
		"type", ev.Type,
		"order_id", ev.OrderID,
		"attempted", d.Attempted,
		"delivered", d.Delivered,
	)
	return d
}

// resolve returns the deduplicated delivery set for target. A connection
// joined to two of the target rooms appears once. Caller holds r.mu.
func (r *Router) resolve(target types.Target) []Conn {
	if target.Broadcast {
		return r.reg.Conns()
	}

	seen := make(map[Conn]struct{})
	var out []Conn
	for _, room := range target.Rooms {
		for _, c := range r.reg.MembersOf(room) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Counters returns the router's lifetime totals: events routed, successful
// deliveries, and send failures.
func (r *Router) Counters() (events, deliveries, failures uint64) {
	return r.eventsRouted.Load(), r.deliveries.Load(), r.sendFailures.Load()
}
