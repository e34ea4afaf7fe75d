package routes

import (
	"time"

	"github.com/google/uuid"
)

// StopType says which actions a stop allows.
type StopType string

const (
	StopPickup        StopType = "pickup"
	StopDropOff       StopType = "dropoff"
	StopPickupDropOff StopType = "pickup_dropoff"
)

// Valid reports whether t is a known stop type.
func (t StopType) Valid() bool {
	switch t {
	case StopPickup, StopDropOff, StopPickupDropOff:
		return true
	}
	return false
}

// AllowsPickup reports whether riders may board here.
func (t StopType) AllowsPickup() bool {
	return t == StopPickup || t == StopPickupDropOff
}

// AllowsDropOff reports whether riders may alight here.
func (t StopType) AllowsDropOff() bool {
	return t == StopDropOff || t == StopPickupDropOff
}

// Route is a fixed line served by scheduled trips.
type Route struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	GTFSRouteID *string   `json:"gtfs_route_id,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RouteStop is one ordered stop of a route. Sequence is unique per route and
// increases along the direction of travel.
type RouteStop struct {
	ID         uuid.UUID `json:"id"`
	RouteID    uuid.UUID `json:"route_id"`
	Sequence   int       `json:"sequence"`
	Type       StopType  `json:"type"`
	Name       string    `json:"name"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	GTFSStopID *string   `json:"gtfs_stop_id,omitempty"`
}

// Leg is a validated pickup/drop-off pair on one route.
type Leg struct {
	RouteID uuid.UUID
	Pickup  RouteStop
	DropOff RouteStop
}

// NearbyStop is a stop with its distance from a query point.
type NearbyStop struct {
	RouteStop
	DistanceMeters float64 `json:"distance_meters"`
}

// NearestQuery is the query string of GET /stops/nearest.
type NearestQuery struct {
	Latitude  *float64 `form:"lat" binding:"required,latitude"`
	Longitude *float64 `form:"lng" binding:"required,longitude"`
	Limit     int      `form:"limit" binding:"omitempty,min=1,max=50"`
}
