// Package seatmap resolves the ordered seat identifiers of a vehicle.
// A SeatMap is immutable once built and safe for concurrent use.
package seatmap

import (
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleActive           VehicleStatus = "active"
	VehicleInactive         VehicleStatus = "inactive"
	VehicleUnderMaintenance VehicleStatus = "under_maintenance"
)

// VehicleType describes a model of vehicle and its seat layout.
type VehicleType struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	PassengerCapacity     int       `json:"passenger_capacity"`
	SimpleSeatIdentifiers []string  `json:"simple_seat_identifiers"`
}

// Vehicle is a concrete vehicle. ActualPassengerCapacity overrides the type's capacity.
type Vehicle struct {
	ID                      uuid.UUID     `json:"id"`
	VehicleTypeID           uuid.UUID     `json:"vehicle_type_id"`
	RegistrationNumber      string        `json:"registration_number"`
	ActualPassengerCapacity *int          `json:"actual_passenger_capacity,omitempty"`
	Status                  VehicleStatus `json:"status"`
}

// EffectiveCapacity is actualPassengerCapacity ?? vehicleType.passengerCapacity.
func EffectiveCapacity(vt VehicleType, v Vehicle) int {
	if v.ActualPassengerCapacity != nil {
		return *v.ActualPassengerCapacity
	}
	return vt.PassengerCapacity
}

// SeatMap is the ordered list of seat ids for one vehicle.
type SeatMap struct {
	seats []string
	index map[string]int
}

// New builds a seat map from ordered identifiers. Duplicates keep their first position.
func New(ids []string) SeatMap {
	m := SeatMap{
		seats: make([]string, 0, len(ids)),
		index: make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		if _, dup := m.index[id]; dup || id == "" {
			continue
		}
		m.index[id] = len(m.seats)
		m.seats = append(m.seats, id)
	}
	return m
}

// Numbered returns a map labelled "1".."n".
func Numbered(n int) SeatMap {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	return New(ids)
}

// ForVehicle uses the type's identifiers when they cover the effective capacity
// (truncated to it), and numbered seats otherwise.
func ForVehicle(vt VehicleType, v Vehicle) SeatMap {
	capacity := EffectiveCapacity(vt, v)
	if capacity <= 0 {
		return New(nil)
	}
	if len(vt.SimpleSeatIdentifiers) >= capacity {
		m := New(vt.SimpleSeatIdentifiers[:capacity])
		if m.Len() == capacity {
			return m
		}
	}
	return Numbered(capacity)
}

// Len is the number of seats.
func (m SeatMap) Len() int { return len(m.seats) }

// Seats returns a copy of the ordered seat ids.
func (m SeatMap) Seats() []string {
	out := make([]string, len(m.seats))
	copy(out, m.seats)
	return out
}

// Contains reports whether id is a seat of this map.
func (m SeatMap) Contains(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Index returns the seat's position, or -1.
func (m SeatMap) Index(id string) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// Free returns the seats not in held, in map order.
func (m SeatMap) Free(held map[string]struct{}) []string {
	free := make([]string, 0, len(m.seats))
	for _, id := range m.seats {
		if _, taken := held[id]; !taken {
			free = append(free, id)
		}
	}
	return free
}

// LowestFree returns the n lowest-ordered free seats, or false when fewer are free.
func (m SeatMap) LowestFree(held map[string]struct{}, n int) ([]string, bool) {
	if n <= 0 {
		return nil, false
	}
	out := make([]string, 0, n)
	for _, id := range m.seats {
		if _, taken := held[id]; taken {
			continue
		}
		out = append(out, id)
		if len(out) == n {
			return out, true
		}
	}
	return nil, false
}

// Sort orders ids by their seat map position; unknown ids go last, lexically.
func (m SeatMap) Sort(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := m.Index(ids[i]), m.Index(ids[j])
		switch {
		case a < 0 && b < 0:
			return ids[i] < ids[j]
		case a < 0:
			return false
		case b < 0:
			return true
		}
		return a < b
	})
}

// HeldSet converts seat id slices into a lookup set.
func HeldSet(groups ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, g := range groups {
		for _, id := range g {
			set[id] = struct{}{}
		}
	}
	return set
}
