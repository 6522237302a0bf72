// Package types defines the shared event model used by both the hub server
// and the client notification agent: notification events, room keys, delivery
// targets, and the WebSocket wire messages exchanged between the two.
package types
