package geospatial

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// LocationFromFeature converts an import feature into a Location. The
// feature ID (or an "id" property) is required; hierarchy names, kind and
// radius_meters are read from properties.
func LocationFromFeature(f *geojson.Feature) (domain.Location, error) {
	id := featureID(f)
	if id == "" {
		return domain.Location{}, fmt.Errorf("feature has no id")
	}
	if f.Geometry == nil {
		return domain.Location{}, fmt.Errorf("feature %s: %w: missing geometry", id, domain.ErrGeometryParse)
	}

	p := f.Properties
	loc := domain.Location{
		ID:   id,
		Name: p.MustString("name", id),
		Kind: p.MustString("kind", ""),
		Hierarchy: domain.Hierarchy{
			Country:      p.MustString("country", ""),
			Region:       p.MustString("region", ""),
			Municipality: p.MustString("municipality", ""),
			Parish:       p.MustString("parish", ""),
		},
		RadiusMeters: p.MustFloat64("radius_meters", 0),
	}

	switch g := f.Geometry.(type) {
	case orb.Point:
		loc.GeometryKind = domain.GeometryPoint
		c := ToSearchOrder(domain.LngLat(g))
		loc.Center = &c
		if loc.Kind == "" {
			loc.Kind = "poi"
		}
	case orb.Polygon, orb.MultiPolygon:
		loc.GeometryKind = domain.GeometryKind(g.GeoJSONType())
		c := ToSearchOrder(domain.LngLat(g.Bound().Center()))
		loc.Center = &c
		if loc.Kind == "" {
			loc.Kind = "admin"
		}
	default:
		return domain.Location{}, fmt.Errorf("feature %s: %w: unsupported geometry %s",
			id, domain.ErrGeometryParse, f.Geometry.GeoJSONType())
	}

	raw, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
	if err != nil {
		return domain.Location{}, fmt.Errorf("feature %s: encode geometry: %w", id, err)
	}
	loc.Geometry = raw
	return loc, nil
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, ok := f.Properties["id"]; ok {
		switch id := v.(type) {
		case string:
			return id
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	return ""
}
