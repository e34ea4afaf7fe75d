package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/internal/seatmap"
	"github.com/richxcame/ride-booking/internal/subscriptions"
)

type memState struct {
	trips        map[uuid.UUID]*inventory.ScheduledTrip
	seatMaps     map[uuid.UUID]seatmap.SeatMap
	stops        map[uuid.UUID][]routes.RouteStop
	bookings     map[uuid.UUID]*booking.Booking
	subs         map[uuid.UUID]*subscriptions.UserSubscription
	consumptions map[uuid.UUID]*subscriptions.RideConsumption
}

func newMemState() *memState {
	return &memState{
		trips:        make(map[uuid.UUID]*inventory.ScheduledTrip),
		seatMaps:     make(map[uuid.UUID]seatmap.SeatMap),
		stops:        make(map[uuid.UUID][]routes.RouteStop),
		bookings:     make(map[uuid.UUID]*booking.Booking),
		subs:         make(map[uuid.UUID]*subscriptions.UserSubscription),
		consumptions: make(map[uuid.UUID]*subscriptions.RideConsumption),
	}
}

func copyTrip(t *inventory.ScheduledTrip) *inventory.ScheduledTrip {
	cp := *t
	if t.StatusBeforeFull != nil {
		s := *t.StatusBeforeFull
		cp.StatusBeforeFull = &s
	}
	return &cp
}

func copyBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	cp.BookedSeatIDs = append([]string(nil), b.BookedSeatIDs...)
	if b.Payment != nil {
		p := *b.Payment
		cp.Payment = &p
	}
	cp.BoardingCode = ""
	return &cp
}

func copySub(s *subscriptions.UserSubscription) *subscriptions.UserSubscription {
	cp := *s
	if s.RemainingRides != nil {
		n := *s.RemainingRides
		cp.RemainingRides = &n
	}
	return &cp
}

func (s *memState) clone() *memState {
	out := newMemState()
	for id, t := range s.trips {
		out.trips[id] = copyTrip(t)
	}
	for id, m := range s.seatMaps {
		out.seatMaps[id] = m
	}
	for id, stops := range s.stops {
		out.stops[id] = append([]routes.RouteStop(nil), stops...)
	}
	for id, b := range s.bookings {
		out.bookings[id] = copyBooking(b)
	}
	for id, sub := range s.subs {
		out.subs[id] = copySub(sub)
	}
	for id, c := range s.consumptions {
		cp := *c
		out.consumptions[id] = &cp
	}
	return out
}

// MemStore is an in-memory booking.Store. Transactions run one at a time on a
// copy of the state that replaces it on commit, so a failed transaction leaves
// nothing behind.
type MemStore struct {
	mu    sync.Mutex
	state *memState

	// Commits counts successful transactions.
	Commits int
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

// AddTrip stores a trip and the seat map of its vehicle.
func (s *MemStore) AddTrip(trip *inventory.ScheduledTrip, seats seatmap.SeatMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.trips[trip.ID] = copyTrip(trip)
	s.state.seatMaps[trip.VehicleID] = seats
}

// AddRoute stores the ordered stops of a route.
func (s *MemStore) AddRoute(routeID uuid.UUID, stops []routes.RouteStop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.stops[routeID] = append([]routes.RouteStop(nil), stops...)
}

// AddSubscription stores a subscription.
func (s *MemStore) AddSubscription(sub *subscriptions.UserSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.subs[sub.ID] = copySub(sub)
}

// PutBooking stores b as is, bypassing the service.
func (s *MemStore) PutBooking(b *booking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.bookings[b.ID] = copyBooking(b)
}

// Trip returns the committed trip.
func (s *MemStore) Trip(id uuid.UUID) inventory.ScheduledTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state.trips[id]
}

// Subscription returns the committed subscription.
func (s *MemStore) Subscription(id uuid.UUID) subscriptions.UserSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *copySub(s.state.subs[id])
}

// Consumption returns the committed consumption of a booking, or nil.
func (s *MemStore) Consumption(bookingID uuid.UUID) *subscriptions.RideConsumption {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.consumptions[bookingID]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Bookings returns every committed booking of a trip.
func (s *MemStore) Bookings(tripID uuid.UUID) []*booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range s.state.bookings {
		if b.ScheduledTripID == tripID {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// BookingCount returns the number of committed bookings.
func (s *MemStore) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.bookings)
}

// InTx implements booking.Store.
func (s *MemStore) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	s.Commits++
	return nil
}

// GetBooking implements booking.Store.
func (s *MemStore) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.state}).GetBookingForUpdate(ctx, id)
}

// ListBookingsForUser implements booking.Store.
func (s *MemStore) ListBookingsForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*booking.Booking, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*booking.Booking
	for _, b := range s.state.bookings {
		if b.UserID == userID {
			all = append(all, copyBooking(b))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if offset >= len(all) {
		return []*booking.Booking{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// GetTrip implements inventory.TripReader.
func (s *MemStore) GetTrip(ctx context.Context, tripID uuid.UUID) (*inventory.ScheduledTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.state}).GetTripForUpdate(ctx, tripID)
}

// GetSeatMap implements inventory.TripReader.
func (s *MemStore) GetSeatMap(ctx context.Context, vehicleID uuid.UUID) (seatmap.SeatMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.state}).GetSeatMap(ctx, vehicleID)
}

// HeldSeats implements inventory.TripReader.
func (s *MemStore) HeldSeats(ctx context.Context, tripID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.state}).HeldSeats(ctx, tripID)
}

// LapsedHoldSeats implements inventory.TripReader.
func (s *MemStore) LapsedHoldSeats(_ context.Context, tripID uuid.UUID, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seats []string
	for _, b := range s.state.bookings {
		if b.ScheduledTripID == tripID && b.Status == booking.StatusPendingPayment &&
			b.HoldExpiresAt != nil && !b.HoldExpiresAt.After(now) {
			seats = append(seats, b.BookedSeatIDs...)
		}
	}
	return seats, nil
}

// memTx works on a private copy of the state; it needs no locking.
type memTx struct {
	st *memState
}

func (t *memTx) GetTripForUpdate(_ context.Context, tripID uuid.UUID) (*inventory.ScheduledTrip, error) {
	trip, ok := t.st.trips[tripID]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	return copyTrip(trip), nil
}

func (t *memTx) GetSeatMap(_ context.Context, vehicleID uuid.UUID) (seatmap.SeatMap, error) {
	m, ok := t.st.seatMaps[vehicleID]
	if !ok {
		return seatmap.SeatMap{}, fmt.Errorf("vehicle %s not found", vehicleID)
	}
	return m, nil
}

func (t *memTx) HeldSeats(_ context.Context, tripID uuid.UUID) ([]string, error) {
	var seats []string
	for _, b := range t.st.bookings {
		if b.ScheduledTripID == tripID && b.Status.HoldsSeats() {
			seats = append(seats, b.BookedSeatIDs...)
		}
	}
	return seats, nil
}

func (t *memTx) UpdateTripInventory(_ context.Context, trip *inventory.ScheduledTrip) error {
	if _, ok := t.st.trips[trip.ID]; !ok {
		return domain.ErrTripNotFound
	}
	t.st.trips[trip.ID] = copyTrip(trip)
	return nil
}

func (t *memTx) GetSubscription(_ context.Context, id uuid.UUID) (*subscriptions.UserSubscription, error) {
	sub, ok := t.st.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return copySub(sub), nil
}

func (t *memTx) GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*subscriptions.UserSubscription, error) {
	return t.GetSubscription(ctx, id)
}

func (t *memTx) GetConsumption(_ context.Context, bookingID uuid.UUID) (*subscriptions.RideConsumption, error) {
	c, ok := t.st.consumptions[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (t *memTx) InsertConsumption(_ context.Context, c *subscriptions.RideConsumption) error {
	if _, ok := t.st.consumptions[c.BookingID]; ok {
		return fmt.Errorf("consumption for booking %s already exists", c.BookingID)
	}
	cp := *c
	t.st.consumptions[c.BookingID] = &cp
	return nil
}

func (t *memTx) MarkConsumptionRestored(_ context.Context, bookingID uuid.UUID, at time.Time) error {
	if c, ok := t.st.consumptions[bookingID]; ok && c.RestoredAt == nil {
		c.RestoredAt = &at
	}
	return nil
}

func (t *memTx) UpdateRemainingRides(_ context.Context, subscriptionID uuid.UUID, remaining *int) error {
	sub, ok := t.st.subs[subscriptionID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	if remaining == nil {
		sub.RemainingRides = nil
		return nil
	}
	n := *remaining
	sub.RemainingRides = &n
	return nil
}

func (t *memTx) ListStops(_ context.Context, routeID uuid.UUID) ([]routes.RouteStop, error) {
	return append([]routes.RouteStop(nil), t.st.stops[routeID]...), nil
}

func (t *memTx) InsertBooking(_ context.Context, b *booking.Booking) error {
	if _, ok := t.st.bookings[b.ID]; ok {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	for _, other := range t.st.bookings {
		if other.CRN == b.CRN {
			return fmt.Errorf("booking reference %s already exists", b.CRN)
		}
	}
	t.st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (t *memTx) GetBookingForUpdate(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (t *memTx) UpdateBooking(_ context.Context, b *booking.Booking) error {
	if _, ok := t.st.bookings[b.ID]; !ok {
		return domain.ErrBookingNotFound
	}
	t.st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (t *memTx) ListExpiredHoldsForUpdate(_ context.Context, tripID uuid.UUID, now time.Time) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range t.st.bookings {
		if b.ScheduledTripID != tripID || b.Status != booking.StatusPendingPayment || b.HoldExpiresAt == nil {
			continue
		}
		if !b.HoldExpiresAt.After(now) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) SeatsBoarded(_ context.Context, tripID uuid.UUID, seats []string, exclude uuid.UUID) (bool, error) {
	want := seatmap.HeldSet(seats)
	for _, b := range t.st.bookings {
		if b.ID == exclude || b.ScheduledTripID != tripID || b.Status != booking.StatusOngoing {
			continue
		}
		for _, id := range b.BookedSeatIDs {
			if _, ok := want[id]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}
