package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"sync"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// --- Mock SearchIndex ---

type mockIndex struct {
	mu      sync.Mutex
	queries []domain.IndexQuery

	searchPropertiesFn func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error)
	searchLocationsFn  func(ctx context.Context, text string, limit int) ([]domain.Location, error)
}

func (m *mockIndex) SearchProperties(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.searchPropertiesFn != nil {
		return m.searchPropertiesFn(ctx, q)
	}
	return &domain.IndexResult{}, nil
}

func (m *mockIndex) SearchLocations(ctx context.Context, text string, limit int) ([]domain.Location, error) {
	if m.searchLocationsFn != nil {
		return m.searchLocationsFn(ctx, text, limit)
	}
	return nil, nil
}

func (m *mockIndex) calls() []domain.IndexQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IndexQuery, len(m.queries))
	copy(out, m.queries)
	return out
}

// --- Mock LocationRepository ---

type mockLocationRepo struct {
	getByIDFn   func(ctx context.Context, id string) (*domain.Location, error)
	listIDsFn   func(ctx context.Context, afterID string, limit int) ([]string, error)
	setFilterFn func(ctx context.Context, id string, filter *domain.GeoFilter) error
}

func (m *mockLocationRepo) Upsert(ctx context.Context, loc *domain.Location) error        { return nil }
func (m *mockLocationRepo) UpsertBatch(ctx context.Context, locs []domain.Location) error { return nil }

func (m *mockLocationRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockLocationRepo) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if m.listIDsFn != nil {
		return m.listIDsFn(ctx, afterID, limit)
	}
	return nil, nil
}

func (m *mockLocationRepo) SetFilter(ctx context.Context, id string, filter *domain.GeoFilter) error {
	if m.setFilterFn != nil {
		return m.setFilterFn(ctx, id, filter)
	}
	return nil
}

// --- In-memory CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// --- Recording EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	sessions []domain.SessionEvent
	updated  []string
}

func (m *mockPublisher) PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *event)
	return nil
}

func (m *mockPublisher) PublishLocationUpdated(ctx context.Context, locationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, locationID)
	return nil
}

func (m *mockPublisher) events() []domain.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SessionEvent, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// --- Fixtures ---

// polygonLocation returns a location whose geometry is an n-point circle
// stored as a GeoJSON Polygon.
func polygonLocation(id string, lat, lng, radius float64, n int) *domain.Location {
	ring := make([][2]float64, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		r := radius * (1 + 0.1*math.Sin(7*a))
		ring = append(ring, [2]float64{round6(lng + r*math.Cos(a)), round6(lat + r*math.Sin(a))})
	}
	ring = append(ring, ring[0])

	raw, _ := json.Marshal(map[string]any{
		"type":        "Polygon",
		"coordinates": [][][2]float64{ring},
	})
	return &domain.Location{
		ID:           id,
		Name:         id,
		Kind:         "admin",
		GeometryKind: domain.GeometryPolygon,
		Geometry:     raw,
	}
}

func pointLocation(id string, lat, lng, radius float64) *domain.Location {
	return &domain.Location{
		ID:           id,
		Name:         id,
		Kind:         "poi",
		GeometryKind: domain.GeometryPoint,
		Center:       &domain.LatLng{Lat: lat, Lng: lng},
		RadiusMeters: radius,
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// pagedIndex serves total documents in pages of q.PerPage, naming them
// "<prefix>-<n>".
func pagedIndex(prefix string, total int) func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	return func(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
		res := &domain.IndexResult{TotalCount: total}
		start := (q.Page - 1) * q.PerPage
		for i := start; i < start+q.PerPage && i < total; i++ {
			res.Documents = append(res.Documents, domain.Property{ID: prefix + "-" + strconv.Itoa(i)})
		}
		return res, nil
	}
}
