package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/resilience"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"
)

const (
	ProviderStripe = "stripe"
	ProviderManual = "manual"
)

// IntentRetriever is the slice of the Stripe API the confirmer needs.
type IntentRetriever interface {
	RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// StripeConfirmer settles a booking only when the referenced PaymentIntent
// succeeded for exactly the amount and currency the rider claims to have paid.
type StripeConfirmer struct {
	intents IntentRetriever
	breaker *resilience.CircuitBreaker
}

// NewStripeConfirmer creates a confirmer backed by intents. breaker may be nil.
func NewStripeConfirmer(intents IntentRetriever, breaker *resilience.CircuitBreaker) *StripeConfirmer {
	return &StripeConfirmer{intents: intents, breaker: breaker}
}

// ConfirmPayment implements booking.PaymentConfirmer.
func (c *StripeConfirmer) ConfirmPayment(ctx context.Context, b *booking.Booking, result booking.PaymentResult) (bool, error) {
	if result.Provider != ProviderStripe {
		logger.WithContext(ctx).Warn("payments: rejecting non-stripe payment",
			zap.String("booking_id", b.ID.String()),
			zap.String("provider", result.Provider))
		return false, nil
	}

	pi, err := c.retrieve(ctx, result.Reference)
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, err
	}

	switch {
	case pi.Status != stripe.PaymentIntentStatusSucceeded:
		logger.WithContext(ctx).Info("payments: intent not settled",
			zap.String("booking_id", b.ID.String()),
			zap.String("intent", pi.ID),
			zap.String("status", string(pi.Status)))
		return false, nil
	case pi.AmountReceived != result.AmountPaidCents:
		logger.WithContext(ctx).Warn("payments: intent amount differs from claimed payment",
			zap.String("booking_id", b.ID.String()),
			zap.Int64("received", pi.AmountReceived),
			zap.Int64("claimed", result.AmountPaidCents))
		return false, nil
	case !strings.EqualFold(string(pi.Currency), b.Currency):
		return false, nil
	}

	// Intents created by our checkout carry the booking id; a mismatch means
	// the rider is reusing another booking's payment.
	if owner, ok := pi.Metadata["booking_id"]; ok && owner != b.ID.String() {
		logger.WithContext(ctx).Warn("payments: intent belongs to another booking",
			zap.String("booking_id", b.ID.String()),
			zap.String("intent_booking_id", owner))
		return false, nil
	}

	return true, nil
}

func (c *StripeConfirmer) retrieve(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if c.breaker == nil {
		pi, err := c.intents.RetrievePaymentIntent(ctx, id)
		return pi, wrapStripeError(err, "failed to retrieve payment intent")
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.intents.RetrievePaymentIntent(ctx, id)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, common.NewServiceUnavailableError("payment provider unavailable")
		}
		return nil, wrapStripeError(err, "failed to retrieve payment intent")
	}
	return result.(*stripe.PaymentIntent), nil
}

// ManualConfirmer trusts the caller. It backs deployments where payment is
// collected out of band and reconciled by operators.
type ManualConfirmer struct{}

// ConfirmPayment implements booking.PaymentConfirmer.
func (ManualConfirmer) ConfirmPayment(ctx context.Context, b *booking.Booking, result booking.PaymentResult) (bool, error) {
	return strings.TrimSpace(result.Reference) != "", nil
}

// NewConfirmer picks the confirmer configured by cfg.Provider.
func NewConfirmer(cfg config.PaymentConfig, breakers config.BreakerConfig) (booking.PaymentConfirmer, error) {
	switch cfg.Provider {
	case "", ProviderManual:
		logger.Warn("payments: manual confirmer in use, payments are not verified")
		return ManualConfirmer{}, nil
	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("payments: stripe provider requires STRIPE_SECRET_KEY")
		}
		breaker := resilience.NewCircuitBreaker(resilience.SettingsFor(ProviderStripe, breakers), resilience.NoopFallback)
		return NewStripeConfirmer(NewStripeAPI(cfg.StripeSecretKey), breaker), nil
	default:
		return nil, fmt.Errorf("payments: unknown provider %q", cfg.Provider)
	}
}

func isMissing(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

func wrapStripeError(err error, fallbackMessage string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*common.AppError); ok {
		return appErr
	}
	if isMissing(err) {
		return err
	}
	return common.NewInternalError(fallbackMessage, err)
}
