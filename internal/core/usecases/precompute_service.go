package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/ports"
)

// PrecomputeService stores a ready-made geo filter on each location so that
// searches can skip extraction and simplification.
type PrecomputeService struct {
	locations ports.LocationRepository
	planner   *FilterPlanner
	events    ports.EventPublisher
}

// NewPrecomputeService creates a new PrecomputeService. events may be nil.
func NewPrecomputeService(locations ports.LocationRepository, planner *FilterPlanner, events ports.EventPublisher) *PrecomputeService {
	return &PrecomputeService{locations: locations, planner: planner, events: events}
}

// ListBatch returns up to limit location IDs after afterID.
func (s *PrecomputeService) ListBatch(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.locations.ListIDs(ctx, afterID, limit)
}

// PrecomputeResult reports what happened to one location.
type PrecomputeResult struct {
	LocationID string            `json:"location_id"`
	Mode       domain.SearchMode `json:"mode,omitempty"`
	Stored     bool              `json:"stored"`
	Chars      int               `json:"chars,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
}

// Precompute rebuilds and stores the filter for one location. Approximate
// filters are cleared instead of stored, since a stored filter is trusted
// as exact.
func (s *PrecomputeService) Precompute(ctx context.Context, id string) (PrecomputeResult, error) {
	out := PrecomputeResult{LocationID: id}

	loc, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return out, fmt.Errorf("get location %s: %w", id, err)
	}
	loc.Filter = nil

	plan, err := s.planner.Plan(Selection{Location: loc})
	if err != nil {
		// Bad geometry is a data problem, not a retryable failure.
		out.ErrorKind = domain.ErrorKind(err)
		slog.Warn("precompute skipped location", "location_id", id, "kind", out.ErrorKind, "error", err)
		return out, s.store(ctx, id, nil)
	}
	out.Mode = plan.Mode

	var filter *domain.GeoFilter
	if plan.Filter != nil && !plan.Approximate {
		filter = plan.Filter
		out.Stored = true
		out.Chars = filter.Len()
	}
	return out, s.store(ctx, id, filter)
}

func (s *PrecomputeService) store(ctx context.Context, id string, filter *domain.GeoFilter) error {
	if err := s.locations.SetFilter(ctx, id, filter); err != nil {
		return fmt.Errorf("store filter for %s: %w", id, err)
	}
	if s.events != nil {
		if err := s.events.PublishLocationUpdated(ctx, id); err != nil {
			slog.Warn("location update publish failed", "location_id", id, "error", err)
		}
	}
	return nil
}
