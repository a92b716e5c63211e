package usecases_test

import (
	"context"
	"strings"
	"testing"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
)

func TestPrecomputeService_StoresExactFilter(t *testing.T) {
	var stored *domain.GeoFilter
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			loc := polygonLocation(id, 39, -8, 0.05, 300)
			loc.Filter = &domain.GeoFilter{Kind: domain.FilterPolygon, Text: "stale"}
			return loc, nil
		},
		setFilterFn: func(ctx context.Context, id string, filter *domain.GeoFilter) error {
			stored = filter
			return nil
		},
	}
	pub := &mockPublisher{}
	svc := usecases.NewPrecomputeService(repo, usecases.NewFilterPlanner(usecases.DefaultPlannerConfig()), pub)

	res, err := svc.Precompute(context.Background(), "coimbra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Stored || res.Mode != domain.ModePolygon {
		t.Errorf("unexpected result %+v", res)
	}
	if stored == nil || !strings.HasPrefix(stored.Text, "_geoloc:(") {
		t.Fatalf("expected a rebuilt filter, got %+v", stored)
	}
	if len(pub.updated) != 1 || pub.updated[0] != "coimbra" {
		t.Errorf("expected an update announcement, got %v", pub.updated)
	}
}

func TestPrecomputeService_ClearsOnBadGeometry(t *testing.T) {
	cleared := false
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			return &domain.Location{ID: id, GeometryKind: domain.GeometryPolygon, Geometry: []byte(`"not geojson"`)}, nil
		},
		setFilterFn: func(ctx context.Context, id string, filter *domain.GeoFilter) error {
			cleared = filter == nil
			return nil
		},
	}
	svc := usecases.NewPrecomputeService(repo, usecases.NewFilterPlanner(usecases.DefaultPlannerConfig()), nil)

	res, err := svc.Precompute(context.Background(), "bad")
	if err != nil {
		t.Fatalf("bad geometry should not be retried: %v", err)
	}
	if res.Stored || res.ErrorKind != "geometry_parse" {
		t.Errorf("unexpected result %+v", res)
	}
	if !cleared {
		t.Error("expected filter to be cleared")
	}
}

func TestPrecomputeService_ListBatchDefaultLimit(t *testing.T) {
	repo := &mockLocationRepo{
		listIDsFn: func(ctx context.Context, afterID string, limit int) ([]string, error) {
			if afterID != "b" || limit != 100 {
				t.Errorf("unexpected args %q %d", afterID, limit)
			}
			return []string{"c", "d"}, nil
		},
	}
	svc := usecases.NewPrecomputeService(repo, usecases.NewFilterPlanner(usecases.DefaultPlannerConfig()), nil)

	ids, err := svc.ListBatch(context.Background(), "b", 0)
	if err != nil || len(ids) != 2 {
		t.Errorf("unexpected %v %v", ids, err)
	}
}
