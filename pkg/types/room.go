package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Role identifies which side of the marketplace a room belongs to.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "driver"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurant, RoleDriver:
		return true
	}
	return false
}

// RoomKey identifies one logical broadcast group: all connections acting for
// a given entity. Value equality is identity — two keys with the same role
// and id name the same room.
type RoomKey struct {
	Role Role
	ID   int64
}

// CustomerRoom returns the room key for customer id.
func CustomerRoom(id int64) RoomKey { return RoomKey{Role: RoleCustomer, ID: id} }

// RestaurantRoom returns the room key for restaurant id.
func RestaurantRoom(id int64) RoomKey { return RoomKey{Role: RoleRestaurant, ID: id} }

// DriverRoom returns the room key for driver id.
func DriverRoom(id int64) RoomKey { return RoomKey{Role: RoleDriver, ID: id} }

// String renders the key in its canonical "role:id" form.
func (k RoomKey) String() string {
	return string(k.Role) + ":" + strconv.FormatInt(k.ID, 10)
}

// ParseRoomKey parses the canonical "role:id" form.
func ParseRoomKey(s string) (RoomKey, error) {
	role, idStr, ok := strings.Cut(s, ":")
	if !ok {
		return RoomKey{}, fmt.Errorf("room key %q: missing ':'", s)
	}
	r := Role(role)
	if !r.Valid() {
		return RoomKey{}, fmt.Errorf("room key %q: unknown role %q", s, role)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return RoomKey{}, fmt.Errorf("room key %q: bad id: %w", s, err)
	}
	return RoomKey{Role: r, ID: id}, nil
}

// Target selects the delivery set for one event: either an explicit list of
// rooms or every registered connection. The broadcast sentinel is a separate
// flag rather than a magic room key so an empty room list can never be
// mistaken for "everyone".
type Target struct {
	Broadcast bool
	Rooms     []RoomKey
}

// TargetRooms builds a targeted selector from an explicit room list.
func TargetRooms(rooms ...RoomKey) Target { return Target{Rooms: rooms} }

// TargetAll builds the broadcast selector.
func TargetAll() Target { return Target{Broadcast: true} }
