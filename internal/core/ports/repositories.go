package ports

import (
	"context"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// LocationRepository persists locations and their precomputed filters.
type LocationRepository interface {
	Upsert(ctx context.Context, loc *domain.Location) error
	UpsertBatch(ctx context.Context, locs []domain.Location) error
	GetByID(ctx context.Context, id string) (*domain.Location, error)
	// ListIDs pages through location IDs in ascending order, starting after afterID.
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	SetFilter(ctx context.Context, id string, filter *domain.GeoFilter) error
}
