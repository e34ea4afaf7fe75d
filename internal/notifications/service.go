// Package notifications tells riders about their bookings over push and SMS.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/i18n"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/push"
	"github.com/richxcame/ride-booking/pkg/resilience"
	"github.com/richxcame/ride-booking/pkg/sms"
	"go.uber.org/zap"
)

// ErrNotificationDropped is returned when a provider's breaker is open.
var ErrNotificationDropped = errors.New("notification dropped: provider unavailable")

// Service sends booking notifications. A nil sender or notifier disables that channel.
type Service struct {
	sms          sms.Sender
	push         push.Notifier
	smsBreaker   *resilience.CircuitBreaker
	pushBreaker  *resilience.CircuitBreaker
	lang         string
	departureLoc *time.Location
}

// NewService creates a notification service. lang is the message language and
// loc the zone departure times are shown in.
func NewService(sender sms.Sender, notifier push.Notifier, lang string, loc *time.Location) *Service {
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLang
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{sms: sender, push: notifier, lang: lang, departureLoc: loc}
}

// SetCircuitBreakers wires circuit breakers for the SMS and push providers.
func (s *Service) SetCircuitBreakers(smsBreaker, pushBreaker *resilience.CircuitBreaker) {
	s.smsBreaker = smsBreaker
	s.pushBreaker = pushBreaker
}

func (s *Service) t(key string, args ...interface{}) string {
	return i18n.Translate(key, s.lang, args...)
}

func (s *Service) departure(at time.Time) string {
	return at.In(s.departureLoc).Format("02 Jan 15:04")
}

func executeWithBreaker(ctx context.Context, breaker *resilience.CircuitBreaker, op func(ctx context.Context) error) error {
	if breaker == nil {
		return op(ctx)
	}
	_, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, op(ctx)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return ErrNotificationDropped
	}
	return err
}

func (s *Service) sendPush(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	if s.push == nil {
		return nil
	}
	err := executeWithBreaker(ctx, s.pushBreaker, func(ctx context.Context) error {
		return s.push.NotifyUser(ctx, userID.String(), title, body, data)
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", userID, err)
	}
	return nil
}

func (s *Service) sendSMS(ctx context.Context, to, body string) error {
	if s.sms == nil || to == "" {
		return nil
	}
	err := executeWithBreaker(ctx, s.smsBreaker, func(ctx context.Context) error {
		_, err := s.sms.SendSMS(ctx, to, body)
		return err
	})
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	return nil
}

func bookingData(data eventbus.BookingEventData, action string) map[string]string {
	return map[string]string{
		"action":     action,
		"booking_id": data.BookingID.String(),
		"crn":        data.CRN,
		"trip_id":    data.TripID.String(),
	}
}

// NotifyConfirmed pushes the confirmation and texts the boarding code to the
// booking's contact phone.
func (s *Service) NotifyConfirmed(ctx context.Context, data eventbus.BookingEventData) error {
	pushErr := s.sendPush(ctx, data.UserID,
		s.t("notification.booking.confirmed.title"),
		s.t("notification.booking.confirmed.body", data.CRN, s.departure(data.DepartureAt)),
		bookingData(data, "booking_confirmed"))

	var smsErr error
	if data.BoardingCode != "" {
		smsErr = s.sendSMS(ctx, data.ContactPhone, s.t("notification.booking.boarding_code.sms", data.BoardingCode, data.CRN))
	}
	return errors.Join(pushErr, smsErr)
}

// NotifyCodeReissued texts a replacement boarding code.
func (s *Service) NotifyCodeReissued(ctx context.Context, data eventbus.BookingEventData) error {
	if data.BoardingCode == "" {
		return nil
	}
	body := s.t("notification.booking.boarding_code.sms", data.BoardingCode, data.CRN)
	return errors.Join(
		s.sendSMS(ctx, data.ContactPhone, body),
		s.sendPush(ctx, data.UserID, s.t("notification.booking.confirmed.title"), body, bookingData(data, "boarding_code_reissued")),
	)
}

// NotifyCancelled tells the rider the booking was cancelled.
func (s *Service) NotifyCancelled(ctx context.Context, data eventbus.BookingEventData) error {
	return s.sendPush(ctx, data.UserID,
		s.t("notification.booking.cancelled.title"),
		s.t("notification.booking.cancelled.body", data.CRN),
		bookingData(data, "booking_cancelled"))
}

// NotifyHoldExpired tells the rider their unpaid seats were released.
func (s *Service) NotifyHoldExpired(ctx context.Context, data eventbus.BookingEventData) error {
	return s.sendPush(ctx, data.UserID,
		s.t("notification.booking.hold_expired.title"),
		s.t("notification.booking.hold_expired.body", data.CRN),
		bookingData(data, "hold_expired"))
}

// NotifyBoarded greets a rider who just boarded.
func (s *Service) NotifyBoarded(ctx context.Context, data eventbus.BookingEventData) error {
	return s.sendPush(ctx, data.UserID,
		s.t("notification.booking.boarded.title"), "",
		bookingData(data, "booking_boarded"))
}

// NotifyCompleted thanks the rider and shows what was paid.
func (s *Service) NotifyCompleted(ctx context.Context, data eventbus.BookingEventData) error {
	return s.sendPush(ctx, data.UserID,
		s.t("notification.booking.completed.title"),
		s.t("notification.booking.completed.body", i18n.FormatCents(data.TotalFareCents, data.Currency)),
		bookingData(data, "booking_completed"))
}

// NotifyNoShow tells the rider they missed the trip.
func (s *Service) NotifyNoShow(ctx context.Context, data eventbus.BookingEventData) error {
	return s.sendPush(ctx, data.UserID,
		s.t("notification.booking.no_show.title"),
		s.t("notification.booking.no_show.body", data.CRN),
		bookingData(data, "booking_no_show"))
}

func logSendFailure(ctx context.Context, eventType string, data eventbus.BookingEventData, err error) {
	logger.WithContext(ctx).Warn("notifications: delivery failed",
		zap.String("type", eventType),
		zap.String("booking_id", data.BookingID.String()),
		zap.Error(err))
}
