// Package hospitals finds hospitals near a coordinate through one of two
// interchangeable search backends.
package hospitals

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"health-assistant/internal/domain"
	"health-assistant/internal/location"
	"health-assistant/internal/logging"
)

const (
	DefaultRadiusMeters = 10000
	DefaultLimit        = 20

	NoHospitalsMessage = "No hospitals found nearby. Try expanding your search area or check your location."
)

// Searcher is a hospital search backend. Results are unsorted and may carry
// unknown distances.
type Searcher interface {
	Search(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Hospital, error)
}

type Result struct {
	Origin    domain.Coordinate `json:"origin"`
	Hospitals []domain.Hospital `json:"hospitals"`
}

func (r Result) Empty() bool {
	return len(r.Hospitals) == 0
}

type Service struct {
	searcher Searcher
	locator  location.Locator
	radius   float64
	limit    int
}

type ServiceOption func(*Service)

func WithRadius(meters float64) ServiceOption {
	return func(s *Service) {
		if meters > 0 {
			s.radius = meters
		}
	}
}

func WithLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewService wires a backend and an optional locator used when callers do
// not supply a centre.
func NewService(searcher Searcher, locator location.Locator, opts ...ServiceOption) (*Service, error) {
	if searcher == nil {
		return nil, errors.New("hospitals: searcher must not be nil")
	}
	s := &Service{
		searcher: searcher,
		locator:  locator,
		radius:   DefaultRadiusMeters,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Nearby searches around center, or around the located position when center
// is nil. An empty result is not an error.
func (s *Service) Nearby(ctx context.Context, center *domain.Coordinate) (Result, error) {
	var origin domain.Coordinate
	switch {
	case center != nil:
		origin = *center
	case s.locator != nil:
		pos, err := s.locator.Locate(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("hospitals: locate: %w", err)
		}
		origin = pos
	default:
		return Result{}, fmt.Errorf("hospitals: %w", location.ErrUnavailable)
	}

	found, err := s.searcher.Search(ctx, origin, s.radius)
	if err != nil {
		return Result{}, fmt.Errorf("hospitals: search: %w", err)
	}

	SortByDistance(found)
	if len(found) > s.limit {
		found = found[:s.limit]
	}
	logging.Ctx(ctx).Debug().
		Float64("lat", origin.Lat).
		Float64("lng", origin.Lng).
		Int("count", len(found)).
		Msg("hospital search completed")

	return Result{Origin: origin, Hospitals: found}, nil
}

// SortByDistance orders hospitals nearest first. Unknown distances sort last
// and keep their relative order.
func SortByDistance(hs []domain.Hospital) {
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i].Distance, hs[j].Distance
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}
