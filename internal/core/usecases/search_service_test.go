package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
)

func newSearchService(repo *mockLocationRepo, idx *mockIndex) *usecases.SearchService {
	locations := usecases.NewLocationService(repo, idx, nil)
	planner := usecases.NewFilterPlanner(usecases.DefaultPlannerConfig())
	return usecases.NewSearchService(locations, idx, planner, nil, nil, testConfig())
}

func TestSearchService_FetchPage(t *testing.T) {
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return polygonLocation(id, 38.72, -9.14, 0.05, 40), nil
		},
	}
	idx := &mockIndex{
		searchPropertiesFn: func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
			return &domain.IndexResult{
				Documents:  []domain.Property{{ID: "a"}, {ID: "a"}, {ID: "b"}},
				TotalCount: 120,
			}, nil
		},
	}
	svc := newSearchService(repo, idx)

	page, err := svc.FetchPage(context.Background(), "lisboa", "", 2, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Error != "" {
		t.Fatalf("unexpected page error %s", page.Error)
	}
	if page.Page != 2 || page.PageSize != 50 || page.TotalCount != 120 {
		t.Errorf("unexpected page %+v", page)
	}
	if len(page.Documents) != 2 {
		t.Errorf("expected duplicates removed, got %d documents", len(page.Documents))
	}
	if q := idx.calls()[0]; q.Page != 2 || q.PerPage != 50 {
		t.Errorf("unexpected query %+v", q)
	}
}

func TestSearchService_FetchPage_ErrorOnPage(t *testing.T) {
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return pointLocation(id, 41.15, -8.61, 500), nil
		},
	}
	idx := &mockIndex{
		searchPropertiesFn: func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
			return nil, fmt.Errorf("boom: %w", domain.ErrIndexConnectivity)
		},
	}
	svc := newSearchService(repo, idx)

	page, err := svc.FetchPage(context.Background(), "porto", "", 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ErrorKind != "index_connectivity" {
		t.Errorf("expected index_connectivity on page, got %q", page.ErrorKind)
	}
	if page.Documents == nil {
		t.Error("documents should be an empty slice, not nil")
	}
}

func TestSearchService_FetchPage_UnknownLocation(t *testing.T) {
	svc := newSearchService(&mockLocationRepo{}, &mockIndex{})
	_, err := svc.FetchPage(context.Background(), "nowhere", "", 1, 10)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchService_Count(t *testing.T) {
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return pointLocation(id, 41.15, -8.61, 500), nil
		},
	}
	idx := &mockIndex{
		searchPropertiesFn: func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
			return &domain.IndexResult{TotalCount: 318}, nil
		},
	}
	svc := newSearchService(repo, idx)

	snap, err := svc.Count(context.Background(), "porto", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TotalCount != 318 || snap.Status != domain.StatusComplete {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if q := idx.calls()[0]; q.PerPage != 0 {
		t.Errorf("expected count-only request, got per_page %d", q.PerPage)
	}
}

func TestSearchService_Plan(t *testing.T) {
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return pointLocation(id, 41.15, -8.61, 2000), nil
		},
	}
	svc := newSearchService(repo, &mockIndex{})

	plan, err := svc.Plan(context.Background(), "porto", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Mode != domain.ModeRadius || plan.Filter.Text != "_geoloc:(41.15, -8.61, 2 km)" {
		t.Errorf("unexpected plan %+v", plan)
	}
}
