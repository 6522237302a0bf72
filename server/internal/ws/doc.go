// Package ws implements the WebSocket transport for feastline-hub.
//
// Handler upgrades HTTP connections at the single /ws endpoint, registers
// each connection with the hub, and dispatches inbound join and
// driver-location messages. Each connection runs the usual pump pair: the
// read pump enforces the heartbeat deadline (pings answered within
// heartbeat_interval × multiplier), the write pump drains the bounded send
// buffer and emits ping frames.
//
// A connection whose send buffer overflows, whose socket errors, or whose
// pong goes missing is closed and removed from the hub's registry. Clients
// are expected to reconnect and re-join their rooms; events emitted in
// between are not replayed.
package ws
