// Package auth provides API key authentication middleware for the
// collaborator-facing notify API. WebSocket clients are not authenticated
// here; their identity travels in the join message.
package auth
