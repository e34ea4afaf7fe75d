package routes

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jamespfennell/gtfs"
	"github.com/richxcame/ride-booking/pkg/database"
	"github.com/richxcame/ride-booking/pkg/httpclient"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// gtfsNamespace derives stable route and stop IDs from feed identifiers, so
// re-importing a feed updates rows instead of duplicating them.
var gtfsNamespace = uuid.MustParse("6f1c7f0e-5d0b-4c39-9a51-2f8f3e2b7d10")

// GTFS pickup_type / drop_off_type value meaning "not available".
const gtfsPolicyNone = 1

// ImportedRoute is a route and its ordered stops read from a feed.
type ImportedRoute struct {
	Route Route
	Stops []RouteStop
}

// LoadFeed reads a GTFS static zip from a URL or a local path.
func LoadFeed(ctx context.Context, source string) (*gtfs.Static, error) {
	var raw []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		raw, err = download(ctx, source)
	} else {
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}

	static, err := gtfs.ParseStatic(raw, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return static, nil
}

// maxFeedBytes caps a downloaded GTFS zip.
const maxFeedBytes = 256 << 20

func download(ctx context.Context, url string) ([]byte, error) {
	client := httpclient.New(2*time.Minute,
		httpclient.WithDefaultRetry(),
		httpclient.WithMaxBytes(maxFeedBytes),
		httpclient.WithUserAgent("ride-booking-gtfs-import/1.0"))
	body, err := client.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	return body, nil
}

// BuildRoutes turns a feed into routes with ordered stops. The stop pattern of a
// route is taken from its trip with the most stop times.
func BuildRoutes(static *gtfs.Static) []ImportedRoute {
	longest := make(map[string]*gtfs.ScheduledTrip)
	for i := range static.Trips {
		t := &static.Trips[i]
		if t.Route == nil {
			continue
		}
		if cur, ok := longest[t.Route.Id]; !ok || len(t.StopTimes) > len(cur.StopTimes) {
			longest[t.Route.Id] = t
		}
	}

	var out []ImportedRoute
	for i := range static.Routes {
		r := &static.Routes[i]
		trip, ok := longest[r.Id]
		if !ok {
			continue
		}

		gtfsRouteID := r.Id
		route := Route{
			ID:          uuid.NewSHA1(gtfsNamespace, []byte("route:"+r.Id)),
			Code:        firstNonEmpty(r.ShortName, r.Id),
			Name:        firstNonEmpty(r.LongName, r.ShortName, r.Id),
			GTFSRouteID: &gtfsRouteID,
			Active:      true,
		}

		stops := buildStops(route.ID, r.Id, trip.StopTimes)
		if len(stops) < 2 {
			continue
		}
		out = append(out, ImportedRoute{Route: route, Stops: stops})
	}
	return out
}

func buildStops(routeID uuid.UUID, gtfsRouteID string, stopTimes []gtfs.ScheduledStopTime) []RouteStop {
	ordered := make([]gtfs.ScheduledStopTime, len(stopTimes))
	copy(ordered, stopTimes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StopSequence < ordered[j].StopSequence
	})

	stops := make([]RouteStop, 0, len(ordered))
	for _, st := range ordered {
		if st.Stop == nil || st.Stop.Latitude == nil || st.Stop.Longitude == nil {
			continue
		}
		stopType, ok := stopTypeFor(int(st.PickupType), int(st.DropOffType))
		if !ok {
			continue
		}

		gtfsStopID := st.Stop.Id
		stops = append(stops, RouteStop{
			ID:         uuid.NewSHA1(gtfsNamespace, []byte("stop:"+gtfsRouteID+":"+st.Stop.Id)),
			RouteID:    routeID,
			Sequence:   len(stops) + 1,
			Type:       stopType,
			Name:       firstNonEmpty(st.Stop.Name, st.Stop.Code, st.Stop.Id),
			Latitude:   *st.Stop.Latitude,
			Longitude:  *st.Stop.Longitude,
			GTFSStopID: &gtfsStopID,
		})
	}
	return stops
}

func stopTypeFor(pickupType, dropOffType int) (StopType, bool) {
	pickup := pickupType != gtfsPolicyNone
	dropOff := dropOffType != gtfsPolicyNone
	switch {
	case pickup && dropOff:
		return StopPickupDropOff, true
	case pickup:
		return StopPickup, true
	case dropOff:
		return StopDropOff, true
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Import writes every route of the feed, one transaction per route.
func Import(ctx context.Context, pool *pgxpool.Pool, static *gtfs.Static) (int, error) {
	routes := BuildRoutes(static)
	for _, ir := range routes {
		err := database.WithTx(ctx, pool, func(tx pgx.Tx) error {
			repo := NewStopRepository(tx)
			if err := repo.UpsertRoute(ctx, &ir.Route); err != nil {
				return err
			}
			return repo.ReplaceStops(ctx, ir.Route.ID, ir.Stops)
		})
		if err != nil {
			return 0, fmt.Errorf("import route %s: %w", ir.Route.Code, err)
		}
		logger.Info("gtfs route imported",
			zap.String("route", ir.Route.Code),
			zap.Int("stops", len(ir.Stops)))
	}
	return len(routes), nil
}
