package ports

import (
	"context"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// SearchIndex is the hosted typo-tolerant search engine.
type SearchIndex interface {
	// SearchProperties runs one page of a property query. Transport failures
	// wrap domain.ErrIndexConnectivity; rejected queries are
	// *domain.IndexQueryError.
	SearchProperties(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error)
	// SearchLocations runs an autocomplete query against the location index.
	SearchLocations(ctx context.Context, text string, limit int) ([]domain.Location, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
	PublishLocationUpdated(ctx context.Context, locationID string) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeLocationUpdates(ctx context.Context, handler func(ctx context.Context, locationID string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
