package geospatial_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/pkg/geospatial"
)

func TestParseGeometry_GeoJSONPolygon(t *testing.T) {
	raw := []byte(`{"type":"Polygon","coordinates":[[[-8.0,39.0],[-8.1,39.1],[-8.2,39.0],[-8.0,39.0]]]}`)

	g, err := geospatial.ParseGeometry("", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != domain.GeometryPolygon {
		t.Fatalf("expected Polygon, got %s", g.Kind)
	}
	if len(g.Rings) != 1 || len(g.Rings[0]) != 4 {
		t.Fatalf("unexpected rings: %+v", g.Rings)
	}
	if g.Rings[0][1] != (domain.LngLat{-8.1, 39.1}) {
		t.Errorf("expected storage order preserved, got %v", g.Rings[0][1])
	}
}

func TestParseGeometry_SerializedString(t *testing.T) {
	inner := `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[5,5],[6,5],[6,6],[5,6],[5,5]]]]}`
	raw, _ := json.Marshal(inner)

	g, err := geospatial.ParseGeometry(domain.GeometryMultiPolygon, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != domain.GeometryMultiPolygon {
		t.Fatalf("expected MultiPolygon, got %s", g.Kind)
	}
	if len(g.Rings) != 2 {
		t.Fatalf("expected 2 flattened rings, got %d", len(g.Rings))
	}
}

func TestParseGeometry_BareCoordinates(t *testing.T) {
	g, err := geospatial.ParseGeometry(domain.GeometryPolygon, []byte(`[[[-8,39],[-8.1,39.1],[-8.2,39]]]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Rings[0]) != 3 {
		t.Errorf("expected 3 points, got %d", len(g.Rings[0]))
	}

	p, err := geospatial.ParseGeometry(domain.GeometryPoint, []byte(`[-9.14, 38.72]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Center == nil || p.Center.Lat != 38.72 || p.Center.Lng != -9.14 {
		t.Errorf("unexpected center %+v", p.Center)
	}
}

func TestParseGeometry_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind domain.GeometryKind
		raw  string
	}{
		{"empty", domain.GeometryPolygon, ``},
		{"null", domain.GeometryPolygon, `null`},
		{"broken json", domain.GeometryPolygon, `{"type":"Polygon","coordinates":[[`},
		{"not json", domain.GeometryPolygon, `POLYGON((0 0, 1 1))`},
		{"no rings", domain.GeometryPolygon, `{"type":"Polygon","coordinates":[]}`},
		{"line string", "", `{"type":"LineString","coordinates":[[0,0],[1,1]]}`},
		{"unknown kind", "Circle", `[1,2]`},
		{"short point", domain.GeometryPoint, `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := geospatial.ParseGeometry(tt.kind, []byte(tt.raw))
			if !errors.Is(err, domain.ErrGeometryParse) {
				t.Errorf("expected ErrGeometryParse, got %v", err)
			}
		})
	}
}

func TestLocationGeometryOf_PointFields(t *testing.T) {
	loc := &domain.Location{
		ID:           "poi-1",
		Center:       &domain.LatLng{Lat: 41.15, Lng: -8.61},
		RadiusMeters: 800,
	}
	g, err := geospatial.LocationGeometryOf(loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Kind != domain.GeometryPoint || g.RadiusMeters != 800 {
		t.Errorf("unexpected geometry %+v", g)
	}
}
