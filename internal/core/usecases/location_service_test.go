package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
)

func TestLocationService_Get_ReadThrough(t *testing.T) {
	calls := 0
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			calls++
			return pointLocation(id, 41.15, -8.61, 500), nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewLocationService(repo, &mockIndex{}, cache)

	for i := 0; i < 3; i++ {
		loc, err := svc.Get(context.Background(), "porto")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loc.ID != "porto" || loc.Center == nil {
			t.Fatalf("unexpected location %+v", loc)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repo call, got %d", calls)
	}
	if !cache.has("locations:id:porto") {
		t.Error("expected location to be cached")
	}
}

func TestLocationService_Get_NotFound(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, &mockIndex{}, nil)
	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestLocationService_Invalidate(t *testing.T) {
	calls := 0
	repo := &mockLocationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Location, error) {
			calls++
			return &domain.Location{ID: id}, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewLocationService(repo, &mockIndex{}, cache)

	_, _ = svc.Get(context.Background(), "braga")
	if err := svc.Invalidate(context.Background(), "braga"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = svc.Get(context.Background(), "braga")
	if calls != 2 {
		t.Errorf("expected reload after invalidation, got %d repo calls", calls)
	}
}

func TestLocationService_Search(t *testing.T) {
	idx := &mockIndex{
		searchLocationsFn: func(ctx context.Context, text string, limit int) ([]domain.Location, error) {
			if text != "lisb" {
				t.Errorf("expected trimmed query, got %q", text)
			}
			if limit != 8 {
				t.Errorf("expected default limit 8, got %d", limit)
			}
			return []domain.Location{{ID: "lisboa", Name: "Lisboa"}}, nil
		},
	}
	svc := usecases.NewLocationService(&mockLocationRepo{}, idx, nil)

	locs, err := svc.Search(context.Background(), "  lisb ", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 1 || locs[0].Name != "Lisboa" {
		t.Errorf("unexpected result %+v", locs)
	}
}

func TestLocationService_Search_EmptyQuery(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, &mockIndex{}, nil)
	if _, err := svc.Search(context.Background(), "   ", 5); err == nil {
		t.Error("expected error for empty query")
	}
}
