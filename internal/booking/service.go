// Package booking is the booking state machine. Every transition that touches
// seats runs under the trip's lock and inside one store transaction, so seat
// accounting, entitlement credits and booking status commit or roll back together.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/boarding"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/internal/routes"
	"github.com/richxcame/ride-booking/internal/subscriptions"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Defaults used when the corresponding setting is not positive.
const (
	DefaultHoldWindow         = 10 * time.Minute
	DefaultCancellationCutoff = 30 * time.Minute
)

// Policy holds the booking rules that are configurable.
type Policy struct {
	HoldWindow         time.Duration
	CancellationCutoff time.Duration
	TaxRateBps         int
}

// PolicyFromConfig reads the policy from the booking config section.
func PolicyFromConfig(cfg config.BookingConfig) Policy {
	return Policy{
		HoldWindow:         cfg.HoldWindow,
		CancellationCutoff: cfg.CancellationCutoff,
		TaxRateBps:         cfg.TaxRateBps,
	}
}

// Service drives bookings through their lifecycle.
type Service struct {
	store     Store
	inventory *inventory.Manager
	tracker   *subscriptions.Tracker
	verifier  *boarding.Verifier
	payments  PaymentConfirmer
	events    eventbus.Publisher
	policy    Policy
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a booking service. A nil publisher discards events.
func NewService(
	store Store,
	manager *inventory.Manager,
	tracker *subscriptions.Tracker,
	verifier *boarding.Verifier,
	payments PaymentConfirmer,
	events eventbus.Publisher,
	policy Policy,
) *Service {
	if events == nil {
		events = eventbus.NopPublisher{}
	}
	if policy.HoldWindow <= 0 {
		policy.HoldWindow = DefaultHoldWindow
	}
	if policy.CancellationCutoff < 0 {
		policy.CancellationCutoff = DefaultCancellationCutoff
	}
	return &Service{
		store:     store,
		inventory: manager,
		tracker:   tracker,
		verifier:  verifier,
		payments:  payments,
		events:    events,
		policy:    policy,
		tracer:    tracing.Tracer("booking"),
		now:       time.Now,
	}
}

// SetClock replaces the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "booking."+name, trace.WithAttributes(attrs...))
}

func (s *Service) endSpan(span trace.Span, operation string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		operationErrorsTotal.WithLabelValues(operation, reasonOf(err)).Inc()
	}
	span.End()
}

func reasonOf(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Reason != "" {
		return appErr.Reason
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CONTEXT"
	}
	return "INTERNAL"
}

func invalidTransition(from, to Status) error {
	return domain.ErrInvalidTransition.WithMessage("booking cannot move from %s to %s", from, to)
}

// Create reserves seats for a single leg.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Create", attribute.String("trip_id", req.ScheduledTripID.String()))
	defer func() { s.endSpan(span, "create", err) }()

	legs, err := s.createLegs(ctx, []*CreateRequest{req})
	if err != nil {
		return nil, err
	}
	bookingsCreatedTotal.WithLabelValues("single").Inc()
	return legs[0], nil
}

// CreateLinked reserves every leg under all of their trips' locks in one
// transaction. Any failing leg rolls back all of them. Two legs are linked to
// each other through RoundTripID.
func (s *Service) CreateLinked(ctx context.Context, reqs []*CreateRequest) (legs []*Booking, err error) {
	ctx, span := s.startSpan(ctx, "CreateLinked", attribute.Int("legs", len(reqs)))
	defer func() { s.endSpan(span, "create_linked", err) }()

	legs, err = s.createLegs(ctx, reqs)
	if err != nil {
		return nil, err
	}
	bookingsCreatedTotal.WithLabelValues("linked").Inc()
	return legs, nil
}

func (s *Service) createLegs(ctx context.Context, reqs []*CreateRequest) ([]*Booking, error) {
	if len(reqs) == 0 {
		return nil, common.NewBadRequestError("no booking legs requested", nil)
	}

	tripIDs := make([]uuid.UUID, len(reqs))
	ids := make([]uuid.UUID, len(reqs))
	for i, req := range reqs {
		tripIDs[i] = req.ScheduledTripID
		ids[i] = uuid.New()
	}

	release, err := s.inventory.Acquire(ctx, tripIDs...)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	var created, reclaimed []*Booking
	touched := make(map[uuid.UUID]*inventory.ScheduledTrip)

	err = s.store.InTx(ctx, func(tx Tx) error {
		created, reclaimed = nil, nil
		swept := make(map[uuid.UUID]bool)

		for i, req := range reqs {
			if !swept[req.ScheduledTripID] {
				expired, trip, err := s.reclaimExpiredHolds(ctx, tx, req.ScheduledTripID, now)
				if err != nil {
					return err
				}
				swept[req.ScheduledTripID] = true
				reclaimed = append(reclaimed, expired...)
				if trip != nil {
					touched[trip.ID] = trip
				}
			}

			var linkTo *uuid.UUID
			if len(reqs) == 2 {
				other := ids[1-i]
				linkTo = &other
			}

			b, trip, err := s.reserveLeg(ctx, tx, req, ids[i], linkTo, now)
			if err != nil {
				return err
			}
			touched[trip.ID] = trip
			created = append(created, b)
		}
		return nil
	})
	// Events go out after the trips are unlocked.
	release()
	if err != nil {
		return nil, err
	}

	for _, b := range reclaimed {
		recordTransition(StatusPendingPayment, b.Status)
		s.publishBooking(ctx, eventbus.TypeBookingHoldExpired, b, StatusPendingPayment)
	}
	for _, b := range created {
		logger.WithContext(ctx).Info("booking reserved",
			zap.String("booking_id", b.ID.String()),
			zap.String("crn", b.CRN),
			zap.String("trip_id", b.ScheduledTripID.String()),
			zap.Strings("seats", b.BookedSeatIDs))
		s.publishBooking(ctx, eventbus.TypeBookingReserved, b, "")
	}
	for _, trip := range touched {
		s.publishAvailability(ctx, trip)
	}
	return created, nil
}

// reclaimExpiredHolds cancels the trip's pending bookings whose hold ran out so
// their seats can be sold again. The caller holds the trip lock.
func (s *Service) reclaimExpiredHolds(ctx context.Context, tx Tx, tripID uuid.UUID, now time.Time) ([]*Booking, *inventory.ScheduledTrip, error) {
	holds, err := tx.ListExpiredHoldsForUpdate(ctx, tripID, now)
	if err != nil {
		return nil, nil, err
	}

	var trip *inventory.ScheduledTrip
	for _, b := range holds {
		trip, err = s.releaseBooking(ctx, tx, b, StatusCancelledByAdmin, ReasonHoldExpired, now)
		if err != nil {
			return nil, nil, err
		}
	}
	return holds, trip, nil
}

func (s *Service) reserveLeg(ctx context.Context, tx Tx, req *CreateRequest, id uuid.UUID, linkTo *uuid.UUID, now time.Time) (*Booking, *inventory.ScheduledTrip, error) {
	trip, err := tx.GetTripForUpdate(ctx, req.ScheduledTripID)
	if err != nil {
		return nil, nil, err
	}
	if !now.Before(trip.DepartureAt) {
		return nil, nil, domain.ErrTripNotBookable.WithMessage("trip departed at %s", trip.DepartureAt.Format(time.RFC3339))
	}

	if _, err := routes.ValidateLeg(ctx, tx, trip.RouteID, req.PickupStopID, req.DropOffStopID); err != nil {
		return nil, nil, err
	}

	if req.SubscriptionID != nil {
		err := s.tracker.CheckEligible(ctx, tx, *req.SubscriptionID, subscriptions.TripContext{
			UserID:        req.UserID,
			PickupStopID:  req.PickupStopID,
			DropOffStopID: req.DropOffStopID,
			DepartureAt:   trip.DepartureAt,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	res, err := s.inventory.ReserveSeats(ctx, tx, trip.ID, req.SeatCount, req.SeatIDs)
	if err != nil {
		return nil, nil, err
	}

	crn, err := NewCRN()
	if err != nil {
		return nil, nil, err
	}

	hold := now.Add(s.policy.HoldWindow)
	if res.Trip.DepartureAt.Before(hold) {
		hold = res.Trip.DepartureAt
	}

	fare := ComputeFare(res.Trip.PricePerSeatCents, req.SeatCount, req.SubscriptionID != nil, s.policy.TaxRateBps)
	b := &Booking{
		ID:                  id,
		CRN:                 crn,
		UserID:              req.UserID,
		ScheduledTripID:     trip.ID,
		PickupStopID:        req.PickupStopID,
		DropOffStopID:       req.DropOffStopID,
		NumberOfSeatsBooked: req.SeatCount,
		BookedSeatIDs:       res.Seats,
		RoundTripID:         linkTo,
		SubscriptionID:      req.SubscriptionID,
		BaseFareCents:       fare.BaseCents,
		DiscountAmountCents: fare.DiscountCents,
		TaxAmountCents:      fare.TaxCents,
		Currency:            res.Trip.Currency,
		Status:              StatusPendingPayment,
		TripDepartureAt:     res.Trip.DepartureAt,
		HoldExpiresAt:       &hold,
		ContactPhone:        req.ContactPhone,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := tx.InsertBooking(ctx, b); err != nil {
		return nil, nil, err
	}
	return b, res.Trip, nil
}

// releaseBooking returns the booking's seats and entitlement credit and moves
// it to a cancelled status. The caller holds the trip lock.
func (s *Service) releaseBooking(ctx context.Context, tx Tx, b *Booking, to Status, reason string, now time.Time) (*inventory.ScheduledTrip, error) {
	trip, err := s.inventory.ReleaseSeats(ctx, tx, b.ScheduledTripID, b.BookedSeatIDs)
	if err != nil {
		return nil, err
	}
	restored, err := s.tracker.Restore(ctx, tx, b.ID)
	if err != nil {
		return nil, err
	}
	if restored {
		b.EntitlementConsumed = false
	}

	b.Status = to
	b.CancellationReason = reason
	b.CancelledAt = &now
	b.HoldExpiresAt = nil
	b.UpdatedAt = now
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return nil, err
	}
	return trip, nil
}

// Confirm records a settled payment, draws the subscription credit and issues
// the boarding code. Failures leave the seat hold in place. Repeating a
// successful confirmation with the same payment reference returns the booking.
// The payment collaborator is asked before any row is locked; the booking is
// re-checked under lock afterwards.
func (s *Service) Confirm(ctx context.Context, bookingID uuid.UUID, result PaymentResult) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Confirm", attribute.String("booking_id", bookingID.String()))
	defer func() { s.endSpan(span, "confirm", err) }()

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	checkedAt := s.now().UTC()
	replay, err := confirmable(current, result, checkedAt)
	if err != nil {
		return nil, err
	}
	if replay {
		return current, nil
	}

	ok, err := s.payments.ConfirmPayment(ctx, current, result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrPaymentDeclined.WithMessage("payment %s was not settled", result.Reference)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		// The hold is judged at the time the payment was checked.
		replay, err = confirmable(b, result, checkedAt)
		if err != nil || replay {
			return err
		}

		now := s.now().UTC()
		paid := result.AmountPaidCents - result.TipCents

		if b.SubscriptionID != nil {
			err := s.tracker.Consume(ctx, tx, *b.SubscriptionID, b.ID, subscriptions.TripContext{
				UserID:        b.UserID,
				PickupStopID:  b.PickupStopID,
				DropOffStopID: b.DropOffStopID,
				DepartureAt:   b.TripDepartureAt,
			})
			if err != nil {
				return err
			}
			b.EntitlementConsumed = true
		}

		code, err := s.verifier.Issue(now, b.TripDepartureAt)
		if err != nil {
			return err
		}

		b.Status = StatusConfirmed
		b.TipAmountCents = result.TipCents
		b.TotalFarePaidCents = paid
		b.Payment = &PaymentDetails{
			Provider:        result.Provider,
			Reference:       result.Reference,
			AmountPaidCents: result.AmountPaidCents,
			TipCents:        result.TipCents,
			Currency:        b.Currency,
			ConfirmedAt:     now,
		}
		b.BoardingOTPHash = code.Hash
		b.BoardingOTPExpiresAt = &code.ExpiresAt
		b.HoldExpiresAt = nil
		b.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		b.BoardingCode = code.Plain
		return nil
	})
	if err != nil {
		logger.WithContext(ctx).Warn("settled payment not applied to booking",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_reference", result.Reference),
			zap.Error(err))
		return nil, err
	}
	if replay {
		return b, nil
	}

	recordTransition(StatusPendingPayment, StatusConfirmed)
	logger.WithContext(ctx).Info("booking confirmed",
		zap.String("booking_id", b.ID.String()),
		zap.String("crn", b.CRN),
		zap.Int64("total_fare_paid_cents", b.TotalFarePaidCents))
	s.publishBooking(ctx, eventbus.TypeBookingConfirmed, b, StatusPendingPayment)
	return b, nil
}

// confirmable reports whether result may confirm b at now. replay is true when
// b was already confirmed with the same payment reference.
func confirmable(b *Booking, result PaymentResult, now time.Time) (replay bool, err error) {
	if b.Status == StatusConfirmed && b.Payment != nil && b.Payment.Reference == result.Reference {
		return true, nil
	}
	if b.Status.Cancelled() && b.CancellationReason == ReasonHoldExpired {
		return false, domain.ErrStaleHoldExpired.WithMessage("seat hold of %s was released", b.CRN)
	}
	if !CanTransition(b.Status, StatusConfirmed) {
		return false, invalidTransition(b.Status, StatusConfirmed)
	}
	if b.HoldExpiresAt != nil && !now.Before(*b.HoldExpiresAt) {
		return false, domain.ErrStaleHoldExpired.WithMessage("seat hold of %s expired at %s", b.CRN, b.HoldExpiresAt.Format(time.RFC3339))
	}
	if paid := result.AmountPaidCents - result.TipCents; paid != b.DueFareCents() {
		return false, domain.ErrFareMismatch.WithMessage("paid %d, due %d", paid, b.DueFareCents())
	}
	return false, nil
}

// Cancel cancels a pending or confirmed booking strictly before the
// cancellation cutoff. Users may only cancel their own bookings. Cancelling an
// already cancelled booking returns it unchanged.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, actor Actor, userID uuid.UUID, reason string) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Cancel",
		attribute.String("booking_id", bookingID.String()),
		attribute.String("actor", string(actor)))
	defer func() { s.endSpan(span, "cancel", err) }()

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor == ActorUser && current.UserID != userID {
		return nil, domain.ErrBookingNotFound
	}
	if current.Status.Cancelled() {
		return current, nil
	}
	to := actor.CancelledStatus()
	if !CanTransition(current.Status, to) {
		return nil, invalidTransition(current.Status, to)
	}

	release, err := s.inventory.Acquire(ctx, current.ScheduledTripID)
	if err != nil {
		return nil, err
	}
	defer release()

	var prev Status
	var trip *inventory.ScheduledTrip
	var unchanged bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		// Trip row before booking row, the same order reservations use.
		if _, err := tx.GetTripForUpdate(ctx, current.ScheduledTripID); err != nil {
			return err
		}
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		prev = b.Status
		if b.Status.Cancelled() {
			unchanged = true
			return nil
		}
		if !CanTransition(b.Status, to) {
			return invalidTransition(b.Status, to)
		}

		now := s.now().UTC()
		cutoff := b.TripDepartureAt.Add(-s.policy.CancellationCutoff)
		if !now.Before(cutoff) {
			return domain.ErrCancellationWindowClosed.WithMessage("cancellation closed at %s", cutoff.Format(time.RFC3339))
		}

		trip, err = s.releaseBooking(ctx, tx, b, to, reason, now)
		return err
	})
	release()
	if err != nil {
		return nil, err
	}
	if unchanged {
		return b, nil
	}

	recordTransition(prev, b.Status)
	logger.WithContext(ctx).Info("booking cancelled",
		zap.String("booking_id", b.ID.String()),
		zap.String("actor", string(actor)),
		zap.String("previous_status", string(prev)))
	s.publishBooking(ctx, eventbus.TypeBookingCancelled, b, prev)
	s.publishAvailability(ctx, trip)
	return b, nil
}

// ExpireHold cancels a pending booking whose hold window has passed. Bookings
// that are no longer pending are returned unchanged.
func (s *Service) ExpireHold(ctx context.Context, bookingID uuid.UUID) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "ExpireHold", attribute.String("booking_id", bookingID.String()))
	defer func() { s.endSpan(span, "expire_hold", err) }()

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPendingPayment {
		return current, nil
	}
	if current.HoldExpiresAt != nil && s.now().Before(*current.HoldExpiresAt) {
		return nil, domain.ErrHoldStillActive.WithMessage("hold of %s runs until %s", current.CRN, current.HoldExpiresAt.Format(time.RFC3339))
	}

	release, err := s.inventory.Acquire(ctx, current.ScheduledTripID)
	if err != nil {
		return nil, err
	}
	defer release()

	var trip *inventory.ScheduledTrip
	var unchanged bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetTripForUpdate(ctx, current.ScheduledTripID); err != nil {
			return err
		}
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusPendingPayment {
			unchanged = true
			return nil
		}

		now := s.now().UTC()
		if b.HoldExpiresAt != nil && now.Before(*b.HoldExpiresAt) {
			return domain.ErrHoldStillActive
		}
		trip, err = s.releaseBooking(ctx, tx, b, StatusCancelledByAdmin, ReasonHoldExpired, now)
		return err
	})
	release()
	if err != nil {
		return nil, err
	}
	if unchanged {
		return b, nil
	}

	recordTransition(StatusPendingPayment, b.Status)
	logger.WithContext(ctx).Info("booking hold expired",
		zap.String("booking_id", b.ID.String()),
		zap.Strings("seats", b.BookedSeatIDs))
	s.publishBooking(ctx, eventbus.TypeBookingHoldExpired, b, StatusPendingPayment)
	s.publishAvailability(ctx, trip)
	return b, nil
}

// MarkNoShow closes a confirmed booking whose rider never boarded. Seats are not
// released: the trip has departed.
func (s *Service) MarkNoShow(ctx context.Context, bookingID uuid.UUID) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "MarkNoShow", attribute.String("booking_id", bookingID.String()))
	defer func() { s.endSpan(span, "no_show", err) }()

	var unchanged bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == StatusNoShow {
			unchanged = true
			return nil
		}
		if !CanTransition(b.Status, StatusNoShow) {
			return invalidTransition(b.Status, StatusNoShow)
		}

		now := s.now().UTC()
		if now.Before(b.TripDepartureAt) {
			return domain.ErrInvalidTransition.WithMessage("trip has not departed yet")
		}
		b.Status = StatusNoShow
		b.UpdatedAt = now
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if unchanged {
		return b, nil
	}

	recordTransition(StatusConfirmed, StatusNoShow)
	s.publishBooking(ctx, eventbus.TypeBookingNoShow, b, StatusConfirmed)
	return b, nil
}

// Complete closes an ongoing booking. Seat accounting is untouched.
func (s *Service) Complete(ctx context.Context, bookingID uuid.UUID) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "Complete", attribute.String("booking_id", bookingID.String()))
	defer func() { s.endSpan(span, "complete", err) }()

	var unchanged bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == StatusCompleted {
			unchanged = true
			return nil
		}
		if !CanTransition(b.Status, StatusCompleted) {
			return invalidTransition(b.Status, StatusCompleted)
		}

		now := s.now().UTC()
		b.Status = StatusCompleted
		b.CompletedAt = &now
		b.UpdatedAt = now
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if unchanged {
		return b, nil
	}

	recordTransition(StatusOngoing, StatusCompleted)
	s.publishBooking(ctx, eventbus.TypeBookingCompleted, b, StatusOngoing)
	return b, nil
}

// VerifyBoarding checks the rider's code and moves the booking to ongoing.
// A booking that is already ongoing verifies successfully without change.
func (s *Service) VerifyBoarding(ctx context.Context, bookingID uuid.UUID, code string) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "VerifyBoarding", attribute.String("booking_id", bookingID.String()))
	defer func() { s.endSpan(span, "verify_boarding", err) }()

	var unchanged bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == StatusOngoing {
			unchanged = true
			return nil
		}
		if b.Status != StatusConfirmed {
			return invalidTransition(b.Status, StatusOngoing)
		}

		now := s.now().UTC()
		if err := s.verifier.Check(b.BoardingOTPHash, b.BoardingOTPExpiresAt, code, now); err != nil {
			return err
		}

		boarded, err := tx.SeatsBoarded(ctx, b.ScheduledTripID, b.BookedSeatIDs, b.ID)
		if err != nil {
			return err
		}
		if boarded {
			return domain.ErrAlreadyBoarded.WithMessage("a seat of %s is already taken by a boarded rider", b.CRN)
		}

		b.Status = StatusOngoing
		b.BoardedAt = &now
		b.UpdatedAt = now
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if unchanged {
		return b, nil
	}

	recordTransition(StatusConfirmed, StatusOngoing)
	logger.WithContext(ctx).Info("rider boarded",
		zap.String("booking_id", b.ID.String()),
		zap.String("trip_id", b.ScheduledTripID.String()))
	s.publishBooking(ctx, eventbus.TypeBookingBoarded, b, StatusConfirmed)
	return b, nil
}

// ReissueBoardingCode replaces the boarding code of the user's confirmed booking.
func (s *Service) ReissueBoardingCode(ctx context.Context, bookingID, userID uuid.UUID) (b *Booking, err error) {
	ctx, span := s.startSpan(ctx, "ReissueBoardingCode", attribute.String("booking_id", bookingID.String()))
	defer func() { s.endSpan(span, "reissue_boarding_code", err) }()

	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err = tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return domain.ErrBookingNotFound
		}
		if b.Status != StatusConfirmed {
			return domain.ErrInvalidTransition.WithMessage("boarding codes are only issued for confirmed bookings")
		}

		now := s.now().UTC()
		if !now.Before(b.TripDepartureAt) {
			return domain.ErrInvalidTransition.WithMessage("trip has already departed")
		}
		code, err := s.verifier.Issue(now, b.TripDepartureAt)
		if err != nil {
			return err
		}
		b.BoardingOTPHash = code.Hash
		b.BoardingOTPExpiresAt = &code.ExpiresAt
		b.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		b.BoardingCode = code.Plain
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishBooking(ctx, eventbus.TypeBoardingCodeReissued, b, "")
	return b, nil
}

// Get returns a booking.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

// ListForUser returns a page of the user's bookings, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Booking, int64, error) {
	return s.store.ListBookingsForUser(ctx, userID, limit, offset)
}

// Availability reports a trip's seat counts and free seats.
func (s *Service) Availability(ctx context.Context, tripID uuid.UUID) (*inventory.Availability, error) {
	return s.inventory.Availability(ctx, s.store, tripID, s.now())
}
