package routes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/database"
)

// StopRepository reads and writes routes and their stops.
type StopRepository struct {
	db database.DBTX
}

// NewStopRepository creates a repository over a pool or transaction.
func NewStopRepository(db database.DBTX) *StopRepository {
	return &StopRepository{db: db}
}

const stopColumns = `id, route_id, sequence, stop_type, name, latitude, longitude, gtfs_stop_id`

func scanStops(rows pgx.Rows) ([]RouteStop, error) {
	defer rows.Close()

	var stops []RouteStop
	for rows.Next() {
		var s RouteStop
		var stopType string
		if err := rows.Scan(&s.ID, &s.RouteID, &s.Sequence, &stopType, &s.Name, &s.Latitude, &s.Longitude, &s.GTFSStopID); err != nil {
			return nil, fmt.Errorf("failed to scan route stop: %w", err)
		}
		s.Type = StopType(stopType)
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// GetRoute retrieves a route by ID
func (r *StopRepository) GetRoute(ctx context.Context, id uuid.UUID) (*Route, error) {
	var route Route
	err := r.db.QueryRow(ctx, `
		SELECT id, code, name, gtfs_route_id, active, created_at, updated_at
		FROM routes WHERE id = $1
	`, id).Scan(&route.ID, &route.Code, &route.Name, &route.GTFSRouteID, &route.Active, &route.CreatedAt, &route.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("route not found", err)
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return &route, nil
}

// ListStops returns a route's stops in travel order.
func (r *StopRepository) ListStops(ctx context.Context, routeID uuid.UUID) ([]RouteStop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+stopColumns+`
		FROM route_stops
		WHERE route_id = $1
		ORDER BY sequence
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list route stops: %w", err)
	}
	return scanStops(rows)
}

// ListActiveStops returns every stop of every active route.
func (r *StopRepository) ListActiveStops(ctx context.Context) ([]RouteStop, error) {
	rows, err := r.db.Query(ctx, `
		SELECT rs.id, rs.route_id, rs.sequence, rs.stop_type, rs.name, rs.latitude, rs.longitude, rs.gtfs_stop_id
		FROM route_stops rs
		JOIN routes r ON r.id = rs.route_id
		WHERE r.active
		ORDER BY rs.route_id, rs.sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active stops: %w", err)
	}
	return scanStops(rows)
}

// UpsertRoute inserts a route or updates the one with the same ID.
func (r *StopRepository) UpsertRoute(ctx context.Context, route *Route) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO routes (id, code, name, gtfs_route_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET code = EXCLUDED.code, name = EXCLUDED.name, active = EXCLUDED.active, updated_at = NOW()
	`, route.ID, route.Code, route.Name, route.GTFSRouteID, route.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert route %s: %w", route.Code, err)
	}
	return nil
}

// ReplaceStops makes stops the complete stop list of the route. Stops are
// upserted by ID; stops no longer listed are removed. The (route_id, sequence)
// constraint is deferred, so resequencing inside one transaction is fine.
func (r *StopRepository) ReplaceStops(ctx context.Context, routeID uuid.UUID, stops []RouteStop) error {
	keep := make([]uuid.UUID, 0, len(stops))
	for _, s := range stops {
		_, err := r.db.Exec(ctx, `
			INSERT INTO route_stops (id, route_id, sequence, stop_type, name, latitude, longitude, gtfs_stop_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE
			SET sequence = EXCLUDED.sequence, stop_type = EXCLUDED.stop_type, name = EXCLUDED.name,
				latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
		`, s.ID, routeID, s.Sequence, string(s.Type), s.Name, s.Latitude, s.Longitude, s.GTFSStopID)
		if err != nil {
			return fmt.Errorf("failed to upsert stop %s: %w", s.Name, err)
		}
		keep = append(keep, s.ID)
	}

	if _, err := r.db.Exec(ctx, `
		DELETE FROM route_stops WHERE route_id = $1 AND NOT (id = ANY($2))
	`, routeID, keep); err != nil {
		return fmt.Errorf("failed to prune stops of route %s: %w", routeID, err)
	}
	return nil
}
