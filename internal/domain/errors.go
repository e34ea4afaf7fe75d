// Package domain holds the booking error taxonomy shared by the inventory,
// subscription, boarding and booking packages.
package domain

import (
	"errors"
	"net/http"

	"github.com/richxcame/ride-booking/pkg/common"
)

// Stable reason codes. Clients switch on these, not on messages.
const (
	ReasonInsufficientCapacity     = "INSUFFICIENT_CAPACITY"
	ReasonSeatConflict             = "SEAT_CONFLICT"
	ReasonCapacityBusy             = "CAPACITY_BUSY"
	ReasonCancellationWindowClosed = "CANCELLATION_WINDOW_CLOSED"
	ReasonFareMismatch             = "FARE_MISMATCH"
	ReasonEntitlementExhausted     = "ENTITLEMENT_EXHAUSTED"
	ReasonNotEligible              = "NOT_ELIGIBLE"
	ReasonOtpExpired               = "OTP_EXPIRED"
	ReasonOtpMismatch              = "OTP_MISMATCH"
	ReasonAlreadyBoarded           = "ALREADY_BOARDED"
	ReasonRoundTripInconsistent    = "ROUND_TRIP_INCONSISTENT"
	ReasonStaleHoldExpired         = "STALE_HOLD_EXPIRED"

	ReasonInvalidTransition    = "INVALID_TRANSITION"
	ReasonTripNotBookable      = "TRIP_NOT_BOOKABLE"
	ReasonInvalidSeatRequest   = "INVALID_SEAT_REQUEST"
	ReasonStopNotOnRoute       = "STOP_NOT_ON_ROUTE"
	ReasonInvalidStopOrder     = "INVALID_STOP_ORDER"
	ReasonPaymentDeclined      = "PAYMENT_DECLINED"
	ReasonHoldStillActive      = "HOLD_STILL_ACTIVE"
	ReasonBookingNotFound      = "BOOKING_NOT_FOUND"
	ReasonTripNotFound         = "TRIP_NOT_FOUND"
	ReasonSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
)

// Sentinels. Use WithMessage/WithCause for detail; errors.Is matches by reason.
var (
	ErrInsufficientCapacity     = common.NewAppError(http.StatusConflict, ReasonInsufficientCapacity, "not enough seats available")
	ErrSeatConflict             = common.NewAppError(http.StatusConflict, ReasonSeatConflict, "requested seat is already taken")
	ErrCapacityBusy             = &common.AppError{Code: http.StatusServiceUnavailable, Reason: ReasonCapacityBusy, Message: "trip inventory is busy, retry shortly", Retryable: true}
	ErrCancellationWindowClosed = common.NewAppError(http.StatusUnprocessableEntity, ReasonCancellationWindowClosed, "booking can no longer be cancelled")
	ErrFareMismatch             = common.NewAppError(http.StatusUnprocessableEntity, ReasonFareMismatch, "paid amount does not match the fare")
	ErrEntitlementExhausted     = common.NewAppError(http.StatusUnprocessableEntity, ReasonEntitlementExhausted, "subscription has no rides left")
	ErrNotEligible              = common.NewAppError(http.StatusUnprocessableEntity, ReasonNotEligible, "subscription does not cover this trip")
	ErrOtpExpired               = common.NewAppError(http.StatusUnprocessableEntity, ReasonOtpExpired, "boarding code has expired")
	ErrOtpMismatch              = common.NewAppError(http.StatusUnprocessableEntity, ReasonOtpMismatch, "boarding code is incorrect")
	ErrAlreadyBoarded           = common.NewAppError(http.StatusConflict, ReasonAlreadyBoarded, "seat has already been boarded by another booking")
	ErrRoundTripInconsistent    = common.NewAppError(http.StatusUnprocessableEntity, ReasonRoundTripInconsistent, "round trip legs are not compatible")
	ErrStaleHoldExpired         = common.NewAppError(http.StatusGone, ReasonStaleHoldExpired, "seat hold has expired")

	ErrInvalidTransition    = common.NewAppError(http.StatusConflict, ReasonInvalidTransition, "booking cannot move to the requested state")
	ErrTripNotBookable      = common.NewAppError(http.StatusConflict, ReasonTripNotBookable, "trip is not open for booking")
	ErrInvalidSeatRequest   = common.NewAppError(http.StatusBadRequest, ReasonInvalidSeatRequest, "invalid seat request")
	ErrStopNotOnRoute       = common.NewAppError(http.StatusBadRequest, ReasonStopNotOnRoute, "stop is not on this trip's route")
	ErrInvalidStopOrder     = common.NewAppError(http.StatusBadRequest, ReasonInvalidStopOrder, "pickup must come before drop-off")
	ErrPaymentDeclined      = common.NewAppError(http.StatusPaymentRequired, ReasonPaymentDeclined, "payment was not confirmed")
	ErrHoldStillActive      = common.NewAppError(http.StatusConflict, ReasonHoldStillActive, "seat hold has not expired yet")
	ErrBookingNotFound      = common.NewAppError(http.StatusNotFound, ReasonBookingNotFound, "booking not found")
	ErrTripNotFound         = common.NewAppError(http.StatusNotFound, ReasonTripNotFound, "scheduled trip not found")
	ErrSubscriptionNotFound = common.NewAppError(http.StatusNotFound, ReasonSubscriptionNotFound, "subscription not found")
)

// IsRetryable reports whether err is a transient failure the caller may retry.
func IsRetryable(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.Retryable
}

// IsPermanent reports invariant violations that indicate a caller defect.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrFareMismatch) || errors.Is(err, ErrRoundTripInconsistent)
}
