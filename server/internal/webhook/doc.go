// Package webhook forwards notification events to external HTTP targets
// (Slack channels, restaurant POS endpoints). It is a secondary consumer of
// the hub's event stream: delivery is asynchronous, best-effort, and
// independent of WebSocket fan-out.
package webhook
