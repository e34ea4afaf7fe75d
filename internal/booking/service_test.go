package booking_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/boarding"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/internal/seatmap"
	"github.com/richxcame/ride-booking/internal/subscriptions"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var base = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *mocks.MemStore
	events   *mocks.RecordingPublisher
	verifier *boarding.Verifier
	svc      *booking.Service
	now      time.Time
	userID   uuid.UUID
	routeID  uuid.UUID
	stops    []routes.RouteStop
}

func newFixture(t *testing.T, payments booking.PaymentConfirmer) *fixture {
	t.Helper()
	if payments == nil {
		payments = mocks.ApprovingConfirmer{}
	}

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    mocks.NewMemStore(),
		events:   &mocks.RecordingPublisher{},
		verifier: boarding.NewVerifier(15*time.Minute, boarding.WithHashCost(bcrypt.MinCost)),
		now:      base,
		userID:   uuid.New(),
		routeID:  uuid.New(),
	}
	f.stops = []routes.RouteStop{
		{ID: uuid.New(), RouteID: f.routeID, Sequence: 1, Type: routes.StopPickup, Name: "Depot"},
		{ID: uuid.New(), RouteID: f.routeID, Sequence: 2, Type: routes.StopPickupDropOff, Name: "Market"},
		{ID: uuid.New(), RouteID: f.routeID, Sequence: 3, Type: routes.StopDropOff, Name: "Campus"},
	}
	f.store.AddRoute(f.routeID, f.stops)

	f.svc = booking.NewService(
		f.store,
		inventory.NewManager(inventory.NewLocalLocker(), time.Second),
		subscriptions.NewTracker(time.UTC, 12),
		f.verifier,
		payments,
		f.events,
		booking.Policy{HoldWindow: 10 * time.Minute, CancellationCutoff: 30 * time.Minute, TaxRateBps: 1000},
	)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addTrip(capacity int, departure time.Time) *inventory.ScheduledTrip {
	trip := &inventory.ScheduledTrip{
		ID:                    uuid.New(),
		RouteID:               f.routeID,
		VehicleID:             uuid.New(),
		DepartureAt:           departure,
		EstimatedArrivalAt:    departure.Add(45 * time.Minute),
		Status:                inventory.TripScheduled,
		InitialAvailableSeats: capacity,
		CurrentAvailableSeats: capacity,
		PricePerSeatCents:     1500,
		Currency:              "USD",
	}
	f.store.AddTrip(trip, seatmap.Numbered(capacity))
	return trip
}

func (f *fixture) request(tripID uuid.UUID, seats int) *booking.CreateRequest {
	return &booking.CreateRequest{
		UserID:          f.userID,
		ScheduledTripID: tripID,
		PickupStopID:    f.stops[0].ID,
		DropOffStopID:   f.stops[2].ID,
		SeatCount:       seats,
	}
}

func (f *fixture) create(req *booking.CreateRequest) *booking.Booking {
	f.t.Helper()
	b, err := f.svc.Create(f.ctx, req)
	require.NoError(f.t, err)
	return b
}

func payment(b *booking.Booking) booking.PaymentResult {
	return booking.PaymentResult{Provider: "manual", Reference: "pay-" + b.CRN, AmountPaidCents: b.DueFareCents()}
}

func (f *fixture) confirm(b *booking.Booking) *booking.Booking {
	f.t.Helper()
	confirmed, err := f.svc.Confirm(f.ctx, b.ID, payment(b))
	require.NoError(f.t, err)
	return confirmed
}

func (f *fixture) stored(id uuid.UUID) *booking.Booking {
	f.t.Helper()
	b, err := f.store.GetBooking(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) addSubscription(remaining *int) *subscriptions.UserSubscription {
	sub := &subscriptions.UserSubscription{
		ID:             uuid.New(),
		UserID:         f.userID,
		PlanID:         uuid.New(),
		StartDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:         subscriptions.StatusActive,
		RemainingRides: remaining,
	}
	f.store.AddSubscription(sub)
	return sub
}

func intPtr(n int) *int { return &n }

func TestScenarioA_FullTripRejectsMoreSeats(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))

	first := f.create(f.request(trip.ID, 2))
	assert.Equal(t, booking.StatusPendingPayment, first.Status)
	assert.ElementsMatch(t, []string{"1", "2"}, first.BookedSeatIDs)
	assert.Regexp(t, `^RB-`, first.CRN)

	stored := f.store.Trip(trip.ID)
	assert.Equal(t, inventory.TripFull, stored.Status)
	assert.Equal(t, 0, stored.CurrentAvailableSeats)

	_, err := f.svc.Create(f.ctx, f.request(trip.ID, 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
	assert.Equal(t, 1, f.store.BookingCount())
}

func TestScenarioB_CancelPendingRevertsFullTrip(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 2))
	f.events.Reset()

	cancelled, err := f.svc.Cancel(f.ctx, b.ID, booking.ActorUser, f.userID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelledByUser, cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	stored := f.store.Trip(trip.ID)
	assert.Equal(t, inventory.TripScheduled, stored.Status)
	assert.Equal(t, 2, stored.CurrentAvailableSeats)
	assert.Equal(t, []string{eventbus.TypeBookingCancelled, eventbus.TypeTripAvailability}, f.events.Types())

	again, err := f.svc.Cancel(f.ctx, b.ID, booking.ActorUser, f.userID, "")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelledByUser, again.Status)
	assert.Equal(t, 2, f.store.Trip(trip.ID).CurrentAvailableSeats)
	assert.Len(t, f.events.Types(), 2)
}

func TestScenarioC_SubscriptionRunsOutOfRides(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	sub := f.addSubscription(intPtr(1))

	req := f.request(trip.ID, 1)
	req.SubscriptionID = &sub.ID
	b := f.create(req)
	assert.Equal(t, int64(1500), b.DiscountAmountCents)
	assert.Equal(t, int64(0), b.DueFareCents())

	confirmed := f.confirm(b)
	assert.True(t, confirmed.EntitlementConsumed)
	assert.Equal(t, 0, *f.store.Subscription(sub.ID).RemainingRides)
	require.NotNil(t, f.store.Consumption(b.ID))

	second := f.request(trip.ID, 1)
	second.SubscriptionID = &sub.ID
	_, err := f.svc.Create(f.ctx, second)
	assert.ErrorIs(t, err, domain.ErrEntitlementExhausted)
	assert.Equal(t, 3, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestScenarioD_ExpiredBoardingCodeKeepsBookingConfirmed(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	confirmed := f.confirm(f.create(f.request(trip.ID, 1)))

	require.Len(t, confirmed.BoardingCode, boarding.CodeLength)
	require.NotNil(t, confirmed.BoardingOTPExpiresAt)
	assert.Equal(t, base.Add(15*time.Minute), *confirmed.BoardingOTPExpiresAt)

	f.now = base.Add(16 * time.Minute)
	_, err := f.svc.VerifyBoarding(f.ctx, confirmed.ID, confirmed.BoardingCode)
	assert.ErrorIs(t, err, domain.ErrOtpExpired)
	assert.Equal(t, booking.StatusConfirmed, f.stored(confirmed.ID).Status)
}

func TestVerifyBoarding_IsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	confirmed := f.confirm(f.create(f.request(trip.ID, 1)))
	f.events.Reset()

	first, err := f.svc.VerifyBoarding(f.ctx, confirmed.ID, confirmed.BoardingCode)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusOngoing, first.Status)
	require.NotNil(t, first.BoardedAt)

	f.now = f.now.Add(time.Minute)
	second, err := f.svc.VerifyBoarding(f.ctx, confirmed.ID, confirmed.BoardingCode)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusOngoing, second.Status)
	assert.Equal(t, *first.BoardedAt, *second.BoardedAt)
	assert.Equal(t, []string{eventbus.TypeBookingBoarded}, f.events.Types())
}

func TestVerifyBoarding_Failures(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))

	pending := f.create(f.request(trip.ID, 1))
	_, err := f.svc.VerifyBoarding(f.ctx, pending.ID, "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	confirmed := f.confirm(f.create(f.request(trip.ID, 1)))
	wrong := "000000"
	if confirmed.BoardingCode == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyBoarding(f.ctx, confirmed.ID, wrong)
	assert.ErrorIs(t, err, domain.ErrOtpMismatch)
	assert.Equal(t, booking.StatusConfirmed, f.stored(confirmed.ID).Status)
}

func TestVerifyBoarding_SeatAlreadyBoarded(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	boarded := f.confirm(f.create(f.request(trip.ID, 1)))
	_, err := f.svc.VerifyBoarding(f.ctx, boarded.ID, boarded.BoardingCode)
	require.NoError(t, err)

	code, err := f.verifier.Issue(f.now, trip.DepartureAt)
	require.NoError(t, err)
	duplicate := &booking.Booking{
		ID:                   uuid.New(),
		CRN:                  "RB-DUPL1CAT",
		UserID:               uuid.New(),
		ScheduledTripID:      trip.ID,
		NumberOfSeatsBooked:  1,
		BookedSeatIDs:        boarded.BookedSeatIDs,
		Status:               booking.StatusConfirmed,
		BoardingOTPHash:      code.Hash,
		BoardingOTPExpiresAt: &code.ExpiresAt,
		TripDepartureAt:      trip.DepartureAt,
		CreatedAt:            f.now,
		UpdatedAt:            f.now,
	}
	f.store.PutBooking(duplicate)

	_, err = f.svc.VerifyBoarding(f.ctx, duplicate.ID, code.Plain)
	assert.ErrorIs(t, err, domain.ErrAlreadyBoarded)
	assert.Equal(t, booking.StatusConfirmed, f.stored(duplicate.ID).Status)
}

func TestConfirm_FareMismatchSkipsPayment(t *testing.T) {
	payments := &mocks.MockPaymentConfirmer{}
	f := newFixture(t, payments)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 2))

	result := payment(b)
	result.AmountPaidCents--
	_, err := f.svc.Confirm(f.ctx, b.ID, result)

	assert.ErrorIs(t, err, domain.ErrFareMismatch)
	assert.True(t, domain.IsPermanent(err))
	payments.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, booking.StatusPendingPayment, f.stored(b.ID).Status)
}

func TestConfirm_TipIsNotPartOfTheFare(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 2))

	result := payment(b)
	result.TipCents = 250
	result.AmountPaidCents += 250
	confirmed, err := f.svc.Confirm(f.ctx, b.ID, result)
	require.NoError(t, err)

	assert.Equal(t, b.DueFareCents(), confirmed.TotalFarePaidCents)
	assert.Equal(t, int64(250), confirmed.TipAmountCents)
	require.NotNil(t, confirmed.Payment)
	assert.Equal(t, result.Reference, confirmed.Payment.Reference)
	assert.Nil(t, confirmed.HoldExpiresAt)
}

func TestConfirm_DeclinedPaymentKeepsHold(t *testing.T) {
	payments := &mocks.MockPaymentConfirmer{}
	f := newFixture(t, payments)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))

	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
	_, err := f.svc.Confirm(f.ctx, b.ID, payment(b))
	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
	assert.Equal(t, booking.StatusPendingPayment, f.stored(b.ID).Status)
	assert.Equal(t, 1, f.store.Trip(trip.ID).CurrentAvailableSeats)

	gatewayDown := errors.New("gateway unavailable")
	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).Return(false, gatewayDown).Once()
	_, err = f.svc.Confirm(f.ctx, b.ID, payment(b))
	assert.ErrorIs(t, err, gatewayDown)

	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()
	confirmed, err := f.svc.Confirm(f.ctx, b.ID, payment(b))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	payments.AssertExpectations(t)
}

func TestConfirm_StaleHold(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))

	f.now = base.Add(10 * time.Minute)
	_, err := f.svc.Confirm(f.ctx, b.ID, payment(b))
	assert.ErrorIs(t, err, domain.ErrStaleHoldExpired)
	assert.Equal(t, booking.StatusPendingPayment, f.stored(b.ID).Status)
}

func TestConfirm_ReplayWithSameReference(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))
	f.confirm(b)
	f.events.Reset()

	again, err := f.svc.Confirm(f.ctx, b.ID, payment(b))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, again.Status)
	assert.Empty(t, again.BoardingCode)
	assert.Empty(t, f.events.Types())

	other := payment(b)
	other.Reference = "pay-other"
	_, err = f.svc.Confirm(f.ctx, b.ID, other)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConfirm_PublishesBoardingCode(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	confirmed := f.confirm(f.create(f.request(trip.ID, 1)))

	event := f.events.Last(eventbus.TypeBookingConfirmed)
	require.NotNil(t, event)
	var data eventbus.BookingEventData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, confirmed.BoardingCode, data.BoardingCode)
	assert.Equal(t, string(booking.StatusPendingPayment), data.PreviousStatus)
	assert.Equal(t, confirmed.CRN, data.CRN)
}

func TestCancel_WindowClosed(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.confirm(f.create(f.request(trip.ID, 1)))

	f.now = trip.DepartureAt.Add(-30 * time.Minute)
	_, err := f.svc.Cancel(f.ctx, b.ID, booking.ActorUser, f.userID, "")
	assert.ErrorIs(t, err, domain.ErrCancellationWindowClosed)

	_, err = f.svc.Cancel(f.ctx, b.ID, booking.ActorAdmin, uuid.Nil, "")
	assert.ErrorIs(t, err, domain.ErrCancellationWindowClosed)
	assert.Equal(t, booking.StatusConfirmed, f.stored(b.ID).Status)
	assert.Equal(t, 1, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestCancel_RestoresEntitlementOnce(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	sub := f.addSubscription(intPtr(2))

	req := f.request(trip.ID, 1)
	req.SubscriptionID = &sub.ID
	b := f.confirm(f.create(req))
	assert.Equal(t, 1, *f.store.Subscription(sub.ID).RemainingRides)

	cancelled, err := f.svc.Cancel(f.ctx, b.ID, booking.ActorAdmin, uuid.Nil, "vehicle breakdown")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelledByAdmin, cancelled.Status)
	assert.False(t, cancelled.EntitlementConsumed)
	assert.Equal(t, 2, *f.store.Subscription(sub.ID).RemainingRides)
	require.NotNil(t, f.store.Consumption(b.ID).RestoredAt)

	_, err = f.svc.Cancel(f.ctx, b.ID, booking.ActorAdmin, uuid.Nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, *f.store.Subscription(sub.ID).RemainingRides)
	assert.Equal(t, 4, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestCancel_RejectsOtherUsersAndClosedBookings(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))

	_, err := f.svc.Cancel(f.ctx, b.ID, booking.ActorUser, uuid.New(), "")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	confirmed := f.confirm(f.create(f.request(trip.ID, 1)))
	_, err = f.svc.VerifyBoarding(f.ctx, confirmed.ID, confirmed.BoardingCode)
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, confirmed.ID, booking.ActorUser, f.userID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestExpireHold(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 2))

	_, err := f.svc.ExpireHold(f.ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrHoldStillActive)

	f.now = base.Add(10 * time.Minute)
	f.events.Reset()
	expired, err := f.svc.ExpireHold(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelledByAdmin, expired.Status)
	assert.Equal(t, booking.ReasonHoldExpired, expired.CancellationReason)
	assert.Equal(t, inventory.TripScheduled, f.store.Trip(trip.ID).Status)
	assert.Equal(t, 2, f.store.Trip(trip.ID).CurrentAvailableSeats)
	assert.Equal(t, []string{eventbus.TypeBookingHoldExpired, eventbus.TypeTripAvailability}, f.events.Types())

	again, err := f.svc.ExpireHold(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelledByAdmin, again.Status)
}

func TestExpireHold_IgnoresConfirmedBookings(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.confirm(f.create(f.request(trip.ID, 1)))

	f.now = base.Add(time.Hour)
	got, err := f.svc.ExpireHold(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.Equal(t, 1, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestCreate_ReclaimsLapsedHolds(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(1, base.Add(2*time.Hour))
	stale := f.create(f.request(trip.ID, 1))

	f.now = base.Add(11 * time.Minute)
	other := f.request(trip.ID, 1)
	other.UserID = uuid.New()
	fresh := f.create(other)

	assert.Equal(t, stale.BookedSeatIDs, fresh.BookedSeatIDs)
	reclaimed := f.stored(stale.ID)
	assert.Equal(t, booking.StatusCancelledByAdmin, reclaimed.Status)
	assert.Equal(t, booking.ReasonHoldExpired, reclaimed.CancellationReason)
	assert.Equal(t, 0, f.store.Trip(trip.ID).CurrentAvailableSeats)
	assert.NotNil(t, f.events.Last(eventbus.TypeBookingHoldExpired))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))

	reversed := f.request(trip.ID, 1)
	reversed.PickupStopID, reversed.DropOffStopID = f.stops[2].ID, f.stops[0].ID
	_, err := f.svc.Create(f.ctx, reversed)
	assert.ErrorIs(t, err, domain.ErrInvalidStopOrder)

	unknown := f.request(trip.ID, 1)
	unknown.DropOffStopID = uuid.New()
	_, err = f.svc.Create(f.ctx, unknown)
	assert.ErrorIs(t, err, domain.ErrStopNotOnRoute)

	_, err = f.svc.Create(f.ctx, f.request(uuid.New(), 1))
	assert.ErrorIs(t, err, domain.ErrTripNotFound)

	departed := f.addTrip(4, base.Add(-time.Minute))
	_, err = f.svc.Create(f.ctx, f.request(departed.ID, 1))
	assert.ErrorIs(t, err, domain.ErrTripNotBookable)

	sub := f.addSubscription(nil)
	eligible := f.request(trip.ID, 1)
	eligible.SubscriptionID = &sub.ID
	eligible.UserID = uuid.New()
	_, err = f.svc.Create(f.ctx, eligible)
	assert.ErrorIs(t, err, domain.ErrNotEligible)

	assert.Equal(t, 0, f.store.BookingCount())
	assert.Equal(t, 4, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestCreate_RequestedSeats(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))

	req := f.request(trip.ID, 1)
	req.SeatIDs = []string{"3"}
	b := f.create(req)
	assert.Equal(t, []string{"3"}, b.BookedSeatIDs)

	_, err := f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrSeatConflict)

	auto := f.create(f.request(trip.ID, 3))
	assert.Equal(t, []string{"1", "2", "4"}, auto.BookedSeatIDs)
}

func TestCreate_HoldEndsAtDeparture(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(5*time.Minute))
	b := f.create(f.request(trip.ID, 1))

	require.NotNil(t, b.HoldExpiresAt)
	assert.Equal(t, trip.DepartureAt, *b.HoldExpiresAt)
	assert.Equal(t, trip.DepartureAt, b.TripDepartureAt)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(5, base.Add(2*time.Hour))

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := f.request(trip.ID, 1)
			req.UserID = uuid.New()
			_, err := f.svc.Create(f.ctx, req)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInsufficientCapacity) || errors.Is(err, domain.ErrCapacityBusy), err)
	}
	assert.Equal(t, 5, succeeded)

	held := make(map[string]bool)
	for _, b := range f.store.Bookings(trip.ID) {
		for _, seat := range b.BookedSeatIDs {
			assert.False(t, held[seat], "seat %s sold twice", seat)
			held[seat] = true
		}
	}
	stored := f.store.Trip(trip.ID)
	assert.Equal(t, 0, stored.CurrentAvailableSeats)
	assert.Equal(t, stored.InitialAvailableSeats, stored.CurrentAvailableSeats+len(held))
}

func TestCreateLinked(t *testing.T) {
	f := newFixture(t, nil)
	outbound := f.addTrip(2, base.Add(2*time.Hour))
	inbound := f.addTrip(2, base.Add(8*time.Hour))

	legs, err := f.svc.CreateLinked(f.ctx, []*booking.CreateRequest{f.request(outbound.ID, 1), f.request(inbound.ID, 1)})
	require.NoError(t, err)
	require.Len(t, legs, 2)
	require.NotNil(t, legs[0].RoundTripID)
	require.NotNil(t, legs[1].RoundTripID)
	assert.Equal(t, legs[1].ID, *legs[0].RoundTripID)
	assert.Equal(t, legs[0].ID, *legs[1].RoundTripID)

	_, err = f.svc.Cancel(f.ctx, legs[1].ID, booking.ActorUser, f.userID, "")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPendingPayment, f.stored(legs[0].ID).Status)
}

func TestCreateLinked_FailingLegRollsBackBoth(t *testing.T) {
	f := newFixture(t, nil)
	outbound := f.addTrip(2, base.Add(2*time.Hour))
	inbound := f.addTrip(1, base.Add(8*time.Hour))
	f.create(f.request(inbound.ID, 1))
	f.events.Reset()

	_, err := f.svc.CreateLinked(f.ctx, []*booking.CreateRequest{f.request(outbound.ID, 1), f.request(inbound.ID, 1)})
	assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)

	assert.Empty(t, f.store.Bookings(outbound.ID))
	assert.Equal(t, 2, f.store.Trip(outbound.ID).CurrentAvailableSeats)
	assert.Equal(t, inventory.TripScheduled, f.store.Trip(outbound.ID).Status)
	assert.Empty(t, f.events.Types())
}

func TestMarkNoShowAndComplete(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	noShow := f.confirm(f.create(f.request(trip.ID, 1)))
	rider := f.confirm(f.create(f.request(trip.ID, 1)))

	_, err := f.svc.MarkNoShow(f.ctx, noShow.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Complete(f.ctx, rider.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.VerifyBoarding(f.ctx, rider.ID, rider.BoardingCode)
	require.NoError(t, err)

	f.now = trip.DepartureAt.Add(time.Minute)
	marked, err := f.svc.MarkNoShow(f.ctx, noShow.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusNoShow, marked.Status)

	completed, err := f.svc.Complete(f.ctx, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = f.svc.MarkNoShow(f.ctx, rider.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 2, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestReissueBoardingCode(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(4, base.Add(2*time.Hour))
	confirmed := f.confirm(f.create(f.request(trip.ID, 1)))

	_, err := f.svc.ReissueBoardingCode(f.ctx, confirmed.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	var reissued *booking.Booking
	for i := 0; i < 5; i++ {
		reissued, err = f.svc.ReissueBoardingCode(f.ctx, confirmed.ID, f.userID)
		require.NoError(t, err)
		if reissued.BoardingCode != confirmed.BoardingCode {
			break
		}
	}
	require.NotEqual(t, confirmed.BoardingCode, reissued.BoardingCode)

	_, err = f.svc.VerifyBoarding(f.ctx, confirmed.ID, confirmed.BoardingCode)
	assert.ErrorIs(t, err, domain.ErrOtpMismatch)
	boarded, err := f.svc.VerifyBoarding(f.ctx, confirmed.ID, reissued.BoardingCode)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusOngoing, boarded.Status)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(10, base.Add(2*time.Hour))
	for i := 0; i < 3; i++ {
		f.now = base.Add(time.Duration(i) * time.Minute)
		f.create(f.request(trip.ID, 1))
	}

	page, total, err := f.svc.ListForUser(f.ctx, f.userID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), fmt.Sprint(page[0].CreatedAt, page[1].CreatedAt))

	avail, err := f.svc.Availability(f.ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, avail.CurrentAvailableSeats)
	assert.Len(t, avail.FreeSeatIDs, 7)
}

// stallingPublisher blocks the first Publish after arm until proceed is closed,
// like a broker that is slow to acknowledge.
type stallingPublisher struct {
	mu      sync.Mutex
	armed   bool
	stalled chan struct{}
	proceed chan struct{}
}

func newStallingPublisher() *stallingPublisher {
	return &stallingPublisher{stalled: make(chan struct{}), proceed: make(chan struct{})}
}

func (p *stallingPublisher) arm() {
	p.mu.Lock()
	p.armed = true
	p.mu.Unlock()
}

func (p *stallingPublisher) Publish(ctx context.Context, _ string, _ *eventbus.Event) error {
	p.mu.Lock()
	stall := p.armed
	p.armed = false
	p.mu.Unlock()
	if !stall {
		return nil
	}
	close(p.stalled)
	select {
	case <-p.proceed:
	case <-ctx.Done():
	}
	return nil
}

func TestSlowPublishDoesNotHoldTripLock(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(10, base.Add(2*time.Hour))
	first := f.create(f.request(trip.ID, 1))

	withPublisher := func(events eventbus.Publisher) *booking.Service {
		svc := booking.NewService(
			f.store,
			inventory.NewManager(inventory.NewLocalLocker(), 200*time.Millisecond),
			subscriptions.NewTracker(time.UTC, 12),
			f.verifier,
			mocks.ApprovingConfirmer{},
			events,
			booking.Policy{HoldWindow: 10 * time.Minute, CancellationCutoff: 30 * time.Minute},
		)
		svc.SetClock(func() time.Time { return f.now })
		return svc
	}

	cases := []struct {
		name string
		op   func(svc *booking.Service) error
	}{
		{"create", func(svc *booking.Service) error {
			_, err := svc.Create(f.ctx, f.request(trip.ID, 1))
			return err
		}},
		{"cancel", func(svc *booking.Service) error {
			_, err := svc.Cancel(f.ctx, first.ID, booking.ActorUser, f.userID, "")
			return err
		}},
	}

	for _, tc := range cases {
		events := newStallingPublisher()
		svc := withPublisher(events)
		events.arm()

		done := make(chan error, 1)
		go func() { done <- tc.op(svc) }()

		select {
		case <-events.stalled:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never published", tc.name)
		}

		// The stalled operation has committed; its trip must already be free.
		_, err := svc.Create(f.ctx, f.request(trip.ID, 1))
		assert.NoError(t, err, "create while %s is publishing", tc.name)

		close(events.proceed)
		require.NoError(t, <-done, tc.name)
	}

	assert.Equal(t, 7, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestConfirm_PaymentCheckDoesNotLockBooking(t *testing.T) {
	payments := &mocks.MockPaymentConfirmer{}
	f := newFixture(t, payments)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))

	var cancelErr error
	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, cancelErr = f.svc.Cancel(f.ctx, b.ID, booking.ActorUser, f.userID, "changed my mind")
		}).
		Return(true, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Confirm(f.ctx, b.ID, payment(b))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, cancelErr)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel waited on the confirming transaction")
	}

	assert.Equal(t, booking.StatusCancelledByUser, f.stored(b.ID).Status)
	assert.Nil(t, f.stored(b.ID).Payment)
	assert.Equal(t, 2, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestConfirm_ReleasedHoldIsStale(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))

	f.now = base.Add(11 * time.Minute)
	_, err := f.svc.ExpireHold(f.ctx, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(f.ctx, b.ID, payment(b))
	assert.ErrorIs(t, err, domain.ErrStaleHoldExpired)
}
