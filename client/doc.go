// Package client is the feastline notification agent: a WebSocket consumer
// that joins one or more rooms on the hub and surfaces the typed event stream.
//
// The agent owns the dial/reconnect loop. After every successful connect it
// re-sends its join messages — the hub keeps no membership across reconnects —
// and then reads notification frames until the connection drops. Events are
// deduplicated by (type, orderId, timestamp), recorded in a capped
// most-recent-first history, and delivered on the Events channel plus an
// optional OnEvent hook. Events emitted while the agent was disconnected are
// gone; there is no replay.
package client
