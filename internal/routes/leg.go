package routes

import (
	"context"

	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
)

// StopReader loads the stops of a route.
type StopReader interface {
	ListStops(ctx context.Context, routeID uuid.UUID) ([]RouteStop, error)
}

// ValidateLeg checks that both stops belong to the route, that the pickup stop
// allows boarding and the drop-off stop allows alighting, and that pickup comes
// strictly before drop-off.
func ValidateLeg(ctx context.Context, reader StopReader, routeID, pickupID, dropOffID uuid.UUID) (*Leg, error) {
	stops, err := reader.ListStops(ctx, routeID)
	if err != nil {
		return nil, err
	}
	return ResolveLeg(routeID, stops, pickupID, dropOffID)
}

// ResolveLeg is ValidateLeg over an already loaded stop list.
func ResolveLeg(routeID uuid.UUID, stops []RouteStop, pickupID, dropOffID uuid.UUID) (*Leg, error) {
	pickup, ok := findStop(stops, pickupID)
	if !ok {
		return nil, domain.ErrStopNotOnRoute.WithMessage("pickup stop %s is not on route %s", pickupID, routeID)
	}
	dropOff, ok := findStop(stops, dropOffID)
	if !ok {
		return nil, domain.ErrStopNotOnRoute.WithMessage("drop-off stop %s is not on route %s", dropOffID, routeID)
	}

	if !pickup.Type.AllowsPickup() {
		return nil, domain.ErrInvalidStopOrder.WithMessage("stop %q does not allow pickup", pickup.Name)
	}
	if !dropOff.Type.AllowsDropOff() {
		return nil, domain.ErrInvalidStopOrder.WithMessage("stop %q does not allow drop-off", dropOff.Name)
	}
	if pickup.Sequence >= dropOff.Sequence {
		return nil, domain.ErrInvalidStopOrder.WithMessage("pickup stop %q must come before drop-off stop %q", pickup.Name, dropOff.Name)
	}

	return &Leg{RouteID: routeID, Pickup: pickup, DropOff: dropOff}, nil
}

func findStop(stops []RouteStop, id uuid.UUID) (RouteStop, bool) {
	for _, s := range stops {
		if s.ID == id {
			return s, true
		}
	}
	return RouteStop{}, false
}
