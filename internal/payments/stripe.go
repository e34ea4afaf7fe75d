package payments

import (
	"context"

	"github.com/stripe/stripe-go/v83"
)

// StripeAPI adapts the Stripe client to IntentRetriever and Refunder.
type StripeAPI struct {
	client *stripe.Client
}

// NewStripeAPI creates a Stripe client for secretKey.
func NewStripeAPI(secretKey string) *StripeAPI {
	return &StripeAPI{client: stripe.NewClient(secretKey)}
}

func (a *StripeAPI) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	return a.client.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
}

func (a *StripeAPI) RefundPaymentIntent(ctx context.Context, intentID, idempotencyKey string, metadata map[string]string) (*stripe.Refund, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(intentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.SetIdempotencyKey(idempotencyKey)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return a.client.V1Refunds.Create(ctx, params)
}
