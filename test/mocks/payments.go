package mocks

import (
	"context"

	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/stretchr/testify/mock"
)

// MockPaymentConfirmer is a mock implementation of booking.PaymentConfirmer
type MockPaymentConfirmer struct {
	mock.Mock
}

func (m *MockPaymentConfirmer) ConfirmPayment(ctx context.Context, b *booking.Booking, result booking.PaymentResult) (bool, error) {
	args := m.Called(ctx, b, result)
	return args.Bool(0), args.Error(1)
}

// ApprovingConfirmer settles every payment.
type ApprovingConfirmer struct{}

func (ApprovingConfirmer) ConfirmPayment(context.Context, *booking.Booking, booking.PaymentResult) (bool, error) {
	return true, nil
}
