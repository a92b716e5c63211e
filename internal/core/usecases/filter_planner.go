package usecases

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/pkg/geospatial"
	"github.com/samirrijal/etxebila/internal/pkg/metrics"
)

// OversizePolicy decides what happens to a polygon that stays over the
// filter budget after maximum simplification.
type OversizePolicy string

const (
	// OversizeBoundingBox degrades to the ring's bounding box and flags the
	// results approximate.
	OversizeBoundingBox OversizePolicy = "bbox"
	// OversizeFail surfaces ErrOversizeGeometry.
	OversizeFail OversizePolicy = "fail"
)

// PlannerConfig configures filter construction.
type PlannerConfig struct {
	MaxFilterChars      int
	Simplify            geospatial.SimplifyOptions
	DefaultRadiusMeters float64
	OversizePolicy      OversizePolicy
}

// DefaultPlannerConfig mirrors the production defaults.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MaxFilterChars:      3900,
		Simplify:            geospatial.DefaultSimplifyOptions(),
		DefaultRadiusMeters: 1000,
		OversizePolicy:      OversizeBoundingBox,
	}
}

// Selection is what the user picked: a location, free text, or both.
type Selection struct {
	Location *domain.Location
	Text     string
}

// LocationID returns the selected location's ID, or "".
func (s Selection) LocationID() string {
	if s.Location == nil {
		return ""
	}
	return s.Location.ID
}

// Plan is the query strategy for one selection. It is immutable once built
// and shared by every page of a session.
type Plan struct {
	Mode   domain.SearchMode `json:"mode"`
	Text   string            `json:"text"`
	Filter *domain.GeoFilter `json:"filter,omitempty"`
	SortBy string            `json:"sort_by,omitempty"`

	// Approximate is set when the filter covers more than the geometry.
	Approximate bool           `json:"approximate"`
	Bounds      *domain.Bounds `json:"bounds,omitempty"`

	Center       *domain.LatLng `json:"center,omitempty"`
	RadiusMeters float64        `json:"radius_meters,omitempty"`

	OriginalPoints int     `json:"original_points,omitempty"`
	Points         int     `json:"points,omitempty"`
	Tolerance      float64 `json:"tolerance,omitempty"`
}

// Outcome is the result quality implied by the plan itself.
func (p *Plan) Outcome() domain.Outcome {
	if p.Approximate {
		return domain.OutcomeApproximate
	}
	return domain.OutcomeExact
}

// FilterPlanner turns a selection into a Plan. Query-mode priority is
// precomputed filter, point radius, free text, then polygon.
type FilterPlanner struct {
	cfg PlannerConfig
}

// NewFilterPlanner creates a new FilterPlanner.
func NewFilterPlanner(cfg PlannerConfig) *FilterPlanner {
	if cfg.MaxFilterChars <= 0 || cfg.MaxFilterChars > geospatial.HardLimitChars {
		cfg.MaxFilterChars = DefaultPlannerConfig().MaxFilterChars
	}
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = DefaultPlannerConfig().DefaultRadiusMeters
	}
	if cfg.OversizePolicy == "" {
		cfg.OversizePolicy = OversizeBoundingBox
	}
	return &FilterPlanner{cfg: cfg}
}

// Config returns the planner's effective configuration.
func (p *FilterPlanner) Config() PlannerConfig { return p.cfg }

// Plan builds the query strategy for sel.
func (p *FilterPlanner) Plan(sel Selection) (*Plan, error) {
	text := strings.TrimSpace(sel.Text)
	loc := sel.Location

	if loc == nil {
		if text == "" {
			return nil, fmt.Errorf("empty selection: %w", domain.ErrGeometryParse)
		}
		return &Plan{Mode: domain.ModeText, Text: text}, nil
	}

	if plan := p.precomputed(loc, text); plan != nil {
		return plan, nil
	}

	hasGeometry := len(loc.Geometry) > 0 || loc.Center != nil
	if !hasGeometry {
		if text != "" {
			return &Plan{Mode: domain.ModeText, Text: text}, nil
		}
		return nil, fmt.Errorf("location %s has no geometry: %w", loc.ID, domain.ErrGeometryParse)
	}

	g, err := geospatial.LocationGeometryOf(loc)
	if err != nil {
		metrics.GeometryErrors.WithLabelValues(domain.ErrorKind(err)).Inc()
		return nil, fmt.Errorf("location %s: %w", loc.ID, err)
	}

	if g.Kind == domain.GeometryPoint {
		return p.radius(g, text)
	}
	return p.polygon(loc.ID, g, text)
}

func (p *FilterPlanner) precomputed(loc *domain.Location, text string) *Plan {
	f := loc.Filter
	if f == nil || f.Text == "" {
		return nil
	}
	if !geospatial.FitsBudget(f.Text, p.cfg.MaxFilterChars) {
		slog.Warn("precomputed filter over budget, rebuilding",
			"location_id", loc.ID, "chars", f.Len(), "budget", p.cfg.MaxFilterChars)
		return nil
	}

	plan := &Plan{Mode: domain.ModePrecomputed, Text: queryText(text), Filter: &domain.GeoFilter{Kind: f.Kind, Text: f.Text}}
	if f.Kind == domain.FilterRadius && loc.Center != nil {
		c := *loc.Center
		plan.Center = &c
		plan.RadiusMeters = loc.RadiusMeters
		plan.SortBy = geospatial.DistanceSort(c)
	}
	return plan
}

func (p *FilterPlanner) radius(g domain.LocationGeometry, text string) (*Plan, error) {
	center, radius, err := geospatial.ExtractPointRadius(g, p.cfg.DefaultRadiusMeters)
	if err != nil {
		return nil, err
	}
	f := geospatial.RadiusFilter(center, radius)
	b := geospatial.BoundingBox(center.Lat, center.Lng, radius)
	return &Plan{
		Mode:         domain.ModeRadius,
		Text:         queryText(text),
		Filter:       &f,
		SortBy:       geospatial.DistanceSort(center),
		Bounds:       &b,
		Center:       &center,
		RadiusMeters: radius,
	}, nil
}

func (p *FilterPlanner) polygon(locationID string, g domain.LocationGeometry, text string) (*Plan, error) {
	ring, err := geospatial.ExtractRing(g)
	if err != nil {
		metrics.GeometryErrors.WithLabelValues(domain.ErrorKind(err)).Inc()
		return nil, fmt.Errorf("location %s: %w", locationID, err)
	}
	bounds := geospatial.RingBounds(ring)

	res, err := geospatial.SimplifyToFit(ring, geospatial.PolygonFilterText, p.cfg.MaxFilterChars, p.cfg.Simplify)
	if err != nil {
		if !errors.Is(err, domain.ErrOversizeGeometry) {
			return nil, err
		}
		metrics.OversizeGeometries.WithLabelValues(string(p.cfg.OversizePolicy)).Inc()
		if p.cfg.OversizePolicy == OversizeFail {
			return nil, fmt.Errorf("location %s: %w", locationID, err)
		}
		slog.Warn("polygon over budget, using bounding box",
			"location_id", locationID, "points", ring.Len(), "tolerance", res.Tolerance)
		box := geospatial.BoundsRing(bounds)
		f := geospatial.PolygonFilter(box)
		return &Plan{
			Mode:           domain.ModeBoundingBox,
			Text:           queryText(text),
			Filter:         &f,
			Approximate:    true,
			Bounds:         &bounds,
			OriginalPoints: ring.Len(),
			Points:         box.Len(),
			Tolerance:      res.Tolerance,
		}, nil
	}

	metrics.SimplifyIterations.Observe(float64(res.Iterations))
	f := geospatial.PolygonFilter(res.Ring)
	return &Plan{
		Mode:           domain.ModePolygon,
		Text:           queryText(text),
		Filter:         &f,
		Bounds:         &bounds,
		OriginalPoints: ring.Len(),
		Points:         res.Ring.Len(),
		Tolerance:      res.Tolerance,
	}, nil
}

// queryText returns the match-all term for geo-only searches.
func queryText(text string) string {
	if text == "" {
		return "*"
	}
	return text
}
