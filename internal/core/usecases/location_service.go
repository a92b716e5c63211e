package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/ports"
	"github.com/samirrijal/etxebila/internal/pkg/metrics"
)

// LocationService resolves and searches locations.
type LocationService struct {
	locations ports.LocationRepository
	index     ports.SearchIndex
	cache     ports.CacheService
}

// NewLocationService creates a new LocationService.
func NewLocationService(locations ports.LocationRepository, index ports.SearchIndex, cache ports.CacheService) *LocationService {
	return &LocationService{locations: locations, index: index, cache: cache}
}

func locationKey(id string) string { return "locations:id:" + id }

// Get returns a single location.
func (s *LocationService) Get(ctx context.Context, id string) (*domain.Location, error) {
	if id == "" {
		return nil, fmt.Errorf("location id must not be empty")
	}

	cacheKey := locationKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var loc domain.Location
			if err := json.Unmarshal(data, &loc); err == nil {
				metrics.CacheHits.WithLabelValues("location").Inc()
				return &loc, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("location").Inc()
	}

	loc, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(loc); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600) // 10 min
		}
	}

	return loc, nil
}

// Search runs a location autocomplete query.
func (s *LocationService) Search(ctx context.Context, query string, limit int) ([]domain.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > 20 {
		limit = 8
	}

	cacheKey := fmt.Sprintf("locations:search:%s:%d", strings.ToLower(query), limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var locs []domain.Location
			if err := json.Unmarshal(data, &locs); err == nil {
				return locs, nil
			}
		}
	}

	locs, err := s.index.SearchLocations(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	// Cache for 5 minutes
	if s.cache != nil {
		if data, err := json.Marshal(locs); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return locs, nil
}

// Invalidate drops the cached copy of a location.
func (s *LocationService) Invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, locationKey(id)); err != nil {
		return fmt.Errorf("invalidate location %s: %w", id, err)
	}
	slog.Debug("location cache invalidated", "location_id", id)
	return nil
}
