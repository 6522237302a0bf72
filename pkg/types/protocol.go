package types

import (
	"encoding/json"
	"fmt"
)

// Wire message type strings.
const (
	MsgJoinCustomer   = "join_customer"
	MsgJoinRestaurant = "join_restaurant"
	MsgJoinDriver     = "join_driver"
	MsgUpdateLocation = "update_driver_location"
	MsgNotification   = "notification"
)

// LatLng is a geographic position reported by a driver client.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ServerMessage is the envelope for every server → client push.
type ServerMessage struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Notification wraps ev in the push envelope.
func Notification(ev Event) ServerMessage {
	return ServerMessage{Type: MsgNotification, Data: ev}
}

// Inbound is the closed set of client → server messages. Decoding produces
// exactly one of JoinMessage or LocationMessage; handlers switch on the
// concrete type, so an unhandled variant is a compile-time hole, not a
// silently ignored string.
type Inbound interface {
	inbound()
}

// JoinMessage asks the hub to add the connection to one room.
type JoinMessage struct {
	Room   RoomKey
	UserID int64
}

// LocationMessage carries a driver position update.
type LocationMessage struct {
	DriverID int64
	Location LatLng
}

func (JoinMessage) inbound()     {}
func (LocationMessage) inbound() {}

// clientEnvelope is the raw JSON shape shared by all inbound messages.
type clientEnvelope struct {
	Type         string  `json:"type"`
	CustomerID   *int64  `json:"customerId"`
	RestaurantID *int64  `json:"restaurantId"`
	DriverID     *int64  `json:"driverId"`
	UserID       int64   `json:"userId"`
	Location     *LatLng `json:"location"`
}

// DecodeInbound parses one client frame into its tagged variant.
// Unknown types, missing ids, and malformed JSON are all errors — the caller
// drops the frame and keeps the connection open.
func DecodeInbound(data []byte) (Inbound, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}

	switch env.Type {
	case MsgJoinCustomer:
		if env.CustomerID == nil {
			return nil, fmt.Errorf("%s: missing customerId", env.Type)
		}
		return JoinMessage{Room: CustomerRoom(*env.CustomerID), UserID: env.UserID}, nil

	case MsgJoinRestaurant:
		if env.RestaurantID == nil {
			return nil, fmt.Errorf("%s: missing restaurantId", env.Type)
		}
		return JoinMessage{Room: RestaurantRoom(*env.RestaurantID), UserID: env.UserID}, nil

	case MsgJoinDriver:
		if env.DriverID == nil {
			return nil, fmt.Errorf("%s: missing driverId", env.Type)
		}
		return JoinMessage{Room: DriverRoom(*env.DriverID), UserID: env.UserID}, nil

	case MsgUpdateLocation:
		if env.DriverID == nil {
			return nil, fmt.Errorf("%s: missing driverId", env.Type)
		}
		if env.Location == nil {
			return nil, fmt.Errorf("%s: missing location", env.Type)
		}
		return LocationMessage{DriverID: *env.DriverID, Location: *env.Location}, nil

	default:
		return nil, fmt.Errorf("unknown client message type %q", env.Type)
	}
}
