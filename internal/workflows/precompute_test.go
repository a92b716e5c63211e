package workflows_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
	"github.com/samirrijal/etxebila/internal/workflows"
)

// memRepo is an in-memory LocationRepository.
type memRepo struct {
	mu      sync.Mutex
	locs    map[string]*domain.Location
	missing map[string]bool // listed but gone on read
}

func (r *memRepo) Upsert(ctx context.Context, loc *domain.Location) error        { return nil }
func (r *memRepo) UpsertBatch(ctx context.Context, locs []domain.Location) error { return nil }

func (r *memRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locs[id]
	if !ok || r.missing[id] {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memRepo) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.locs))
	for id := range r.locs {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memRepo) SetFilter(ctx context.Context, id string, f *domain.GeoFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locs[id]; ok {
		l.Filter = f
	}
	return nil
}

func square(id string) *domain.Location {
	return &domain.Location{
		ID:           id,
		GeometryKind: domain.GeometryPolygon,
		Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[` +
			`[-3.1,43.1],[-2.5,43.1],[-2.5,43.45],[-3.1,43.45],[-3.1,43.1]]]}`),
	}
}

func runSweep(t *testing.T, repo *memRepo, batch int) workflows.PrecomputeSummary {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	planner := usecases.NewFilterPlanner(usecases.DefaultPlannerConfig())
	env.RegisterWorkflow(workflows.PrecomputeFiltersWorkflow)
	env.RegisterActivity(&workflows.PrecomputeActivities{
		Precompute: usecases.NewPrecomputeService(repo, planner, nil),
	})

	env.ExecuteWorkflow(workflows.PrecomputeFiltersWorkflow, workflows.PrecomputeInput{BatchSize: batch})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var summary workflows.PrecomputeSummary
	if err := env.GetWorkflowResult(&summary); err != nil {
		t.Fatal(err)
	}
	return summary
}

func TestPrecomputeWorkflow_StoresEveryBatch(t *testing.T) {
	repo := &memRepo{locs: map[string]*domain.Location{}}
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("loc-%02d", i)
		repo.locs[id] = square(id)
	}

	summary := runSweep(t, repo, 3)
	if summary.Processed != 7 || summary.Stored != 7 || summary.Failed != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.LastID != "loc-06" {
		t.Errorf("expected last id loc-06, got %s", summary.LastID)
	}
	for id, l := range repo.locs {
		if l.Filter == nil || l.Filter.Kind != domain.FilterPolygon {
			t.Errorf("%s: expected stored polygon filter, got %+v", id, l.Filter)
		}
	}
}

func TestPrecomputeWorkflow_SkipsAndFails(t *testing.T) {
	repo := &memRepo{
		locs: map[string]*domain.Location{
			"a-good":    square("a-good"),
			"b-broken":  {ID: "b-broken", GeometryKind: domain.GeometryPolygon, Geometry: json.RawMessage(`{"type":"Polygon"`)},
			"c-missing": square("c-missing"),
			"d-point":   {ID: "d-point", GeometryKind: domain.GeometryPoint, Center: &domain.LatLng{Lat: 43, Lng: -2}, RadiusMeters: 500},
		},
		missing: map[string]bool{"c-missing": true},
	}

	summary := runSweep(t, repo, 10)
	if summary.Processed != 4 {
		t.Fatalf("expected 4 processed, got %+v", summary)
	}
	if summary.Failed != 1 {
		t.Errorf("expected the missing location to fail, got %+v", summary)
	}
	if summary.Stored != 2 || summary.Skipped != 1 {
		t.Errorf("expected 2 stored and 1 skipped, got %+v", summary)
	}
	if repo.locs["b-broken"].Filter != nil {
		t.Error("expected broken geometry to leave no filter")
	}
}
