package geospatial

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// ParseGeometry decodes a stored geometry field into a LocationGeometry.
//
// raw may be a GeoJSON geometry object, the same object serialized into a JSON
// string, or a bare coordinates array whose shape is given by kind. The type
// member of a GeoJSON object wins over kind.
func ParseGeometry(kind domain.GeometryKind, raw []byte) (domain.LocationGeometry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.LocationGeometry{}, fmt.Errorf("%w: empty geometry field", domain.ErrGeometryParse)
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return domain.LocationGeometry{}, fmt.Errorf("%w: %v", domain.ErrGeometryParse, err)
		}
		return ParseGeometry(kind, []byte(inner))
	}

	switch raw[0] {
	case '{':
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return domain.LocationGeometry{}, fmt.Errorf("%w: %v", domain.ErrGeometryParse, err)
		}
		return fromOrb(g.Geometry())
	case '[':
		return parseCoordinates(kind, raw)
	default:
		return domain.LocationGeometry{}, fmt.Errorf("%w: unexpected token %q", domain.ErrGeometryParse, raw[0])
	}
}

func parseCoordinates(kind domain.GeometryKind, raw []byte) (domain.LocationGeometry, error) {
	var geom orb.Geometry
	switch kind {
	case domain.GeometryPolygon:
		var p orb.Polygon
		if err := json.Unmarshal(raw, &p); err != nil {
			return domain.LocationGeometry{}, fmt.Errorf("%w: polygon coordinates: %v", domain.ErrGeometryParse, err)
		}
		geom = p
	case domain.GeometryMultiPolygon:
		var mp orb.MultiPolygon
		if err := json.Unmarshal(raw, &mp); err != nil {
			return domain.LocationGeometry{}, fmt.Errorf("%w: multipolygon coordinates: %v", domain.ErrGeometryParse, err)
		}
		geom = mp
	case domain.GeometryPoint:
		var pt []float64
		if err := json.Unmarshal(raw, &pt); err != nil || len(pt) < 2 {
			return domain.LocationGeometry{}, fmt.Errorf("%w: point coordinates", domain.ErrGeometryParse)
		}
		geom = orb.Point{pt[0], pt[1]}
	default:
		return domain.LocationGeometry{}, fmt.Errorf("%w: unknown geometry kind %q", domain.ErrGeometryParse, kind)
	}
	return fromOrb(geom)
}

func fromOrb(g orb.Geometry) (domain.LocationGeometry, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return domain.LocationGeometry{}, fmt.Errorf("%w: polygon has no rings", domain.ErrGeometryParse)
		}
		return domain.LocationGeometry{Kind: domain.GeometryPolygon, Rings: ringsOf(v)}, nil
	case orb.MultiPolygon:
		var rings [][]domain.LngLat
		for _, p := range v {
			rings = append(rings, ringsOf(p)...)
		}
		if len(rings) == 0 {
			return domain.LocationGeometry{}, fmt.Errorf("%w: multipolygon has no rings", domain.ErrGeometryParse)
		}
		return domain.LocationGeometry{Kind: domain.GeometryMultiPolygon, Rings: rings}, nil
	case orb.Point:
		c := ToSearchOrder(domain.LngLat(v))
		return domain.LocationGeometry{Kind: domain.GeometryPoint, Center: &c}, nil
	case nil:
		return domain.LocationGeometry{}, fmt.Errorf("%w: missing coordinates", domain.ErrGeometryParse)
	default:
		return domain.LocationGeometry{}, fmt.Errorf("%w: unsupported geometry %s", domain.ErrGeometryParse, g.GeoJSONType())
	}
}

func ringsOf(p orb.Polygon) [][]domain.LngLat {
	rings := make([][]domain.LngLat, 0, len(p))
	for _, r := range p {
		ring := make([]domain.LngLat, len(r))
		for i, pt := range r {
			ring[i] = domain.LngLat(pt)
		}
		rings = append(rings, ring)
	}
	return rings
}

// LocationGeometryOf builds the geometry of a stored location. Point-type
// locations may carry only Center and RadiusMeters; those win over a parsed
// point when present.
func LocationGeometryOf(loc *domain.Location) (domain.LocationGeometry, error) {
	if len(loc.Geometry) == 0 && loc.Center != nil {
		c := *loc.Center
		return domain.LocationGeometry{Kind: domain.GeometryPoint, Center: &c, RadiusMeters: loc.RadiusMeters}, nil
	}

	g, err := ParseGeometry(loc.GeometryKind, loc.Geometry)
	if err != nil {
		return domain.LocationGeometry{}, err
	}
	if g.Kind == domain.GeometryPoint {
		if loc.Center != nil {
			c := *loc.Center
			g.Center = &c
		}
		g.RadiusMeters = loc.RadiusMeters
	}
	return g, nil
}
