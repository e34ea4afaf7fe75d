package subscriptions

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// RepositoryInterface is the data access the Service needs
type RepositoryInterface interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*SubscriptionPlan, error)
	ListPlans(ctx context.Context) ([]*SubscriptionPlan, error)
	CreateSubscription(ctx context.Context, sub *UserSubscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (*UserSubscription, error)
	TransitionSubscription(ctx context.Context, sub *UserSubscription, from SubscriptionStatus) error
	CountConsumptions(ctx context.Context, subscriptionID uuid.UUID) (int, error)
}

// Service handles the externally driven subscription lifecycle
type Service struct {
	repo RepositoryInterface
	now  func() time.Time
}

// NewService creates a new subscription service
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListPlans lists purchasable plans
func (s *Service) ListPlans(ctx context.Context) ([]*SubscriptionPlan, error) {
	return s.repo.ListPlans(ctx)
}

// Subscribe creates a subscription awaiting payment
func (s *Service) Subscribe(ctx context.Context, userID uuid.UUID, req *SubscribeRequest) (*UserSubscription, error) {
	plan, err := s.repo.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub := &UserSubscription{
		ID:                    uuid.New(),
		UserID:                userID,
		PlanID:                plan.ID,
		StartDate:             now,
		EndDate:               PeriodEnd(plan, now),
		Status:                StatusPendingPayment,
		ValidForPickupStopID:  req.ValidForPickupStopID,
		ValidForDropOffStopID: req.ValidForDropOffStopID,
		CommuteType:           req.CommuteType,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if plan.RidesIncluded != nil {
		rides := *plan.RidesIncluded
		sub.RemainingRides = &rides
	}

	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("plan_id", plan.ID.String()))
	return sub, nil
}

// Activate is called once the subscription's payment succeeds
func (s *Service) Activate(ctx context.Context, subscriptionID uuid.UUID) (*UserSubscription, error) {
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	from := sub.Status
	if err := Activate(sub, plan, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.TransitionSubscription(ctx, sub, from); err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel ends the caller's subscription
func (s *Service) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*UserSubscription, error) {
	sub, err := s.owned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	from := sub.Status
	if err := Cancel(sub, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.TransitionSubscription(ctx, sub, from); err != nil {
		return nil, err
	}
	return sub, nil
}

// Entitlement summarises the caller's remaining rides
func (s *Service) Entitlement(ctx context.Context, userID, subscriptionID uuid.UUID) (*EntitlementResponse, error) {
	sub, err := s.owned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	consumed, err := s.repo.CountConsumptions(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	days := 0
	if left := sub.EndDate.Sub(s.now()); left > 0 && sub.Status.Usable() {
		days = int(math.Ceil(left.Hours() / 24))
	}

	return &EntitlementResponse{
		SubscriptionID:        sub.ID,
		Status:                sub.Status,
		Unlimited:             sub.RemainingRides == nil,
		RemainingRides:        sub.RemainingRides,
		RidesConsumed:         consumed,
		StartDate:             sub.StartDate,
		EndDate:               sub.EndDate,
		DaysRemaining:         days,
		CommuteType:           sub.CommuteType,
		ValidForPickupStopID:  sub.ValidForPickupStopID,
		ValidForDropOffStopID: sub.ValidForDropOffStopID,
	}, nil
}

func (s *Service) owned(ctx context.Context, userID, subscriptionID uuid.UUID) (*UserSubscription, error) {
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		// Hide other users' subscriptions.
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

