package routes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
)

const (
	// IndexResolution is the H3 resolution stops are bucketed at (~460m cell edge).
	IndexResolution = 8
	// maxRings bounds the grid-disk search around the query cell.
	maxRings       = 6
	defaultNearest = 5
)

// StopLister loads every stop the index should cover.
type StopLister interface {
	ListActiveStops(ctx context.Context) ([]RouteStop, error)
}

// StopIndex answers nearest-stop queries from H3 cell buckets.
type StopIndex struct {
	mu      sync.RWMutex
	buckets map[h3.Cell][]RouteStop
	size    int
}

// NewStopIndex creates an empty index.
func NewStopIndex() *StopIndex {
	return &StopIndex{buckets: make(map[h3.Cell][]RouteStop)}
}

// Build replaces the indexed stops.
func (idx *StopIndex) Build(stops []RouteStop) error {
	buckets := make(map[h3.Cell][]RouteStop)
	for _, s := range stops {
		cell, err := h3.LatLngToCell(h3.NewLatLng(s.Latitude, s.Longitude), IndexResolution)
		if err != nil {
			return fmt.Errorf("index stop %s: %w", s.ID, err)
		}
		buckets[cell] = append(buckets[cell], s)
	}

	idx.mu.Lock()
	idx.buckets = buckets
	idx.size = len(stops)
	idx.mu.Unlock()
	return nil
}

// Reload rebuilds the index from lister.
func (idx *StopIndex) Reload(ctx context.Context, lister StopLister) error {
	stops, err := lister.ListActiveStops(ctx)
	if err != nil {
		return err
	}
	if err := idx.Build(stops); err != nil {
		return err
	}
	logger.Info("stop index rebuilt", zap.Int("stops", len(stops)))
	return nil
}

// Len is the number of indexed stops.
func (idx *StopIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size
}

// Nearest returns up to limit stops closest to the point, widening the search one
// ring at a time until enough candidates are found or maxRings is reached.
// A stop served by several routes appears once per route.
func (idx *StopIndex) Nearest(lat, lng float64, limit int) ([]NearbyStop, error) {
	if limit <= 0 {
		limit = defaultNearest
	}

	origin := h3.NewLatLng(lat, lng)
	center, err := h3.LatLngToCell(origin, IndexResolution)
	if err != nil {
		return nil, fmt.Errorf("locate query point: %w", err)
	}

	rings, err := h3.GridDiskDistances(center, maxRings)
	if err != nil {
		return nil, fmt.Errorf("grid disk: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var candidates []NearbyStop
	satisfiedAt := -1
	for k, ring := range rings {
		for _, cell := range ring {
			for _, s := range idx.buckets[cell] {
				candidates = append(candidates, NearbyStop{
					RouteStop:      s,
					DistanceMeters: h3.GreatCircleDistanceM(origin, h3.NewLatLng(s.Latitude, s.Longitude)),
				})
			}
		}
		// Scan one ring past the first one that fills the limit: a closer stop
		// can sit just across a cell edge.
		if satisfiedAt < 0 && len(candidates) >= limit {
			satisfiedAt = k
		}
		if satisfiedAt >= 0 && k > satisfiedAt {
			break
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceMeters < candidates[j].DistanceMeters
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
