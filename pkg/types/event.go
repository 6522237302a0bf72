package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType is the closed set of notification kinds the hub routes.
type EventType string

const (
	EventNewOrder             EventType = "new_order"
	EventDriverAssignment     EventType = "driver_assignment"
	EventOrderStatusUpdate    EventType = "order_status_update"
	EventPaymentReceived      EventType = "payment_received"
	EventDriverLocationUpdate EventType = "driver_location_update"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventNewOrder, EventDriverAssignment, EventOrderStatusUpdate,
		EventPaymentReceived, EventDriverLocationUpdate:
		return true
	}
	return false
}

// Event is one notification as pushed to clients. Immutable once built —
// the router serializes it exactly once per fan-out.
//
// Timestamp doubles as part of the client-side deduplication key, so emitters
// should set it at construction time and never reuse an Event value.
type Event struct {
	Type         EventType       `json:"type"`
	OrderID      int64           `json:"orderId,omitempty"`
	RestaurantID int64           `json:"restaurantId,omitempty"`
	DriverID     int64           `json:"driverId,omitempty"`
	Message      string          `json:"message,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	PlaySound    bool            `json:"playSound,omitempty"`
}

// Key returns the deduplication key: identical (type, orderId, timestamp)
// triples are the same logical event regardless of which room delivered them.
func (e Event) Key() string {
	return string(e.Type) + ":" +
		strconv.FormatInt(e.OrderID, 10) + ":" +
		strconv.FormatInt(e.Timestamp.UnixNano(), 10)
}
