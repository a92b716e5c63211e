package geospatial

import (
	"strconv"
	"strings"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// GeoField is the geo-indexed attribute of property documents.
const GeoField = "_geoloc"

// HardLimitChars is the index's maximum filter expression length.
const HardLimitChars = 4000

// FormatCoord prints v in its shortest round-trip decimal form.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SerializeRing flattens the ring to "lat1, lng1, lat2, lng2, ...".
func SerializeRing(r domain.SearchRing) string {
	var b strings.Builder
	b.Grow(len(r.Points) * 24)
	for i, p := range r.Points {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatCoord(p.Lat))
		b.WriteString(", ")
		b.WriteString(FormatCoord(p.Lng))
	}
	return b.String()
}

// PolygonFilterText is the serializer SimplifyToFit measures against.
func PolygonFilterText(r domain.SearchRing) string {
	return GeoField + ":(" + SerializeRing(r) + ")"
}

// PolygonFilter builds a containment filter. The caller checks the length.
func PolygonFilter(r domain.SearchRing) domain.GeoFilter {
	return domain.GeoFilter{Kind: domain.FilterPolygon, Text: PolygonFilterText(r)}
}

// RadiusFilter builds a distance filter; the radius is sent in kilometers.
func RadiusFilter(center domain.LatLng, radiusMeters float64) domain.GeoFilter {
	text := GeoField + ":(" + FormatCoord(center.Lat) + ", " + FormatCoord(center.Lng) + ", " +
		FormatCoord(radiusMeters/1000) + " km)"
	return domain.GeoFilter{Kind: domain.FilterRadius, Text: text}
}

// DistanceSort orders results by ascending distance from center.
func DistanceSort(center domain.LatLng) string {
	return GeoField + "(" + FormatCoord(center.Lat) + ", " + FormatCoord(center.Lng) + "):asc"
}

// FitsBudget reports whether filterText is at most maxChars long.
func FitsBudget(filterText string, maxChars int) bool {
	return len(filterText) <= maxChars
}
