// Package hub implements the connection registry and event-routing core of
// feastline-hub.
//
// Registry is the authoritative bidirectional index between rooms
// (customer:N, restaurant:N, driver:N) and live connections. Router resolves
// a notification event's target selector against the Registry and pushes the
// serialized payload to every resolved connection, isolating per-connection
// send failures. Hub ties the two together behind the single Emit entry
// point used by order-processing collaborators, and owns shutdown.
//
// Delivery is fire-and-forget: Emit returns attempted/delivered counts for
// diagnostics only. Events emitted while a client is disconnected are not
// queued or replayed.
package hub
