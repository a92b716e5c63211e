package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/ports"
)

// SearchService builds orchestrators and serves the one-shot search calls
// used by REST and GraphQL.
type SearchService struct {
	locations *LocationService
	index     ports.SearchIndex
	planner   *FilterPlanner
	cache     ports.CacheService
	events    ports.EventPublisher
	cfg       OrchestratorConfig
}

// NewSearchService creates a new SearchService. cache and events may be nil.
func NewSearchService(locations *LocationService, index ports.SearchIndex, planner *FilterPlanner, cache ports.CacheService, events ports.EventPublisher, cfg OrchestratorConfig) *SearchService {
	return &SearchService{
		locations: locations,
		index:     index,
		planner:   planner,
		cache:     cache,
		events:    events,
		cfg:       cfg,
	}
}

// Config returns the base session configuration.
func (s *SearchService) Config() OrchestratorConfig { return s.cfg }

// NewSession returns an orchestrator using cfg. The caller must Close it.
func (s *SearchService) NewSession(cfg OrchestratorConfig) *Orchestrator {
	return NewOrchestrator(s.index, s.planner, s.cache, s.events, cfg)
}

// Resolve turns a location ID and free text into a Selection.
func (s *SearchService) Resolve(ctx context.Context, locationID, text string) (Selection, error) {
	sel := Selection{Text: text}
	if locationID == "" {
		return sel, nil
	}
	loc, err := s.locations.Get(ctx, locationID)
	if err != nil {
		return sel, err
	}
	sel.Location = loc
	return sel, nil
}

// Plan returns the query strategy a search for locationID would use.
func (s *SearchService) Plan(ctx context.Context, locationID, text string) (*Plan, error) {
	sel, err := s.Resolve(ctx, locationID, text)
	if err != nil {
		return nil, err
	}
	return s.planner.Plan(sel)
}

// FetchPage plans and fetches a single page. Planning and index failures
// are reported on the page; only lookup failures return an error.
func (s *SearchService) FetchPage(ctx context.Context, locationID, text string, page, pageSize int) (*domain.SearchResultPage, error) {
	sel, err := s.Resolve(ctx, locationID, text)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	id := NewSearchID()
	out := &domain.SearchResultPage{SearchID: id, Page: page, Documents: []domain.Property{}}

	plan, err := s.planner.Plan(sel)
	if err != nil {
		slog.Warn("search planning failed", "search_id", id, "location_id", locationID,
			"kind", domain.ErrorKind(err), "error", err)
		out.Error, out.ErrorKind = err.Error(), domain.ErrorKind(err)
		return out, nil
	}

	if pageSize <= 0 || pageSize > s.cfg.PageSize {
		pageSize = s.cfg.PageSize
		if plan.Mode == domain.ModeText {
			pageSize = s.cfg.TextPageSize
		}
	}
	out.PageSize = pageSize

	req := domain.SearchRequest{
		SearchID:  id,
		Mode:      plan.Mode,
		Text:      plan.Text,
		GeoFilter: plan.Filter,
		SortBy:    plan.SortBy,
		Page:      page,
		PageSize:  pageSize,
	}
	res, outcome, err := fetchPage(ctx, s.index, s.cache, s.cfg, plan, req)
	if err != nil {
		slog.Error("search page failed", "search_id", id, "kind", domain.ErrorKind(err), "error", err)
		out.Error, out.ErrorKind = err.Error(), domain.ErrorKind(err)
		return out, nil
	}

	out.Documents = dedupe(res.Documents)
	out.TotalCount = res.TotalCount
	out.Outcome = outcome
	return out, nil
}

// Count runs a count-only session and waits for its total.
func (s *SearchService) Count(ctx context.Context, locationID, text string) (domain.Snapshot, error) {
	sel, err := s.Resolve(ctx, locationID, text)
	if err != nil {
		return domain.Snapshot{}, err
	}

	cfg := s.cfg
	cfg.CountOnly = true
	cfg.AutoLoad = false
	o := s.NewSession(cfg)
	defer o.Close()

	o.Select(ctx, sel)
	snap, err := o.Wait(ctx)
	if err != nil {
		return snap, fmt.Errorf("count: %w", err)
	}
	return snap, nil
}

func dedupe(docs []domain.Property) []domain.Property {
	seen := make(map[string]struct{}, len(docs))
	out := make([]domain.Property, 0, len(docs))
	for _, d := range docs {
		if d.ID != "" {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
		}
		out = append(out, d)
	}
	return out
}
