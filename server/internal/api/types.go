package api

import "encoding/json"

// NotifyRequest is the body for POST /api/v1/notify — the out-of-process
// form of the hub's Emit entry point, used by the order/restaurant/driver
// CRUD services.
//
// Exactly one of Broadcast or a non-empty Rooms list must be set. Rooms use
// the canonical "role:id" form, e.g. "customer:42".
type NotifyRequest struct {
	Type         string          `json:"type"`
	OrderID      int64           `json:"orderId,omitempty"`
	RestaurantID int64           `json:"restaurantId,omitempty"`
	DriverID     int64           `json:"driverId,omitempty"`
	Message      string          `json:"message,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	PlaySound    bool            `json:"playSound,omitempty"`
	Broadcast    bool            `json:"broadcast,omitempty"`
	Rooms        []string        `json:"rooms,omitempty"`
}

// NotifyResponse reports the best-effort delivery counts for one notify call.
// Callers must not treat Delivered as a confirmation — push is fire-and-forget.
type NotifyResponse struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// StatsResponse is the payload for GET /api/v1/stats.
type StatsResponse struct {
	Connections  int            `json:"connections"`
	Rooms        int            `json:"rooms"`
	RoomSizes    map[string]int `json:"room_sizes"`
	EventsRouted uint64         `json:"events_routed"`
	Deliveries   uint64         `json:"deliveries"`
	SendFailures uint64         `json:"send_failures"`
}

// DriverLocationResponse is the payload for GET /api/v1/drivers/{id}/location.
type DriverLocationResponse struct {
	DriverID  int64   `json:"driverId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	UpdatedAt string  `json:"updated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
