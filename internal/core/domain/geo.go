package domain

// LatLng is a coordinate in search axis order (WGS 84).
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LngLat is a coordinate in storage axis order (GeoJSON: longitude first).
type LngLat [2]float64

// Lng returns the longitude.
func (p LngLat) Lng() float64 { return p[0] }

// Lat returns the latitude.
func (p LngLat) Lat() float64 { return p[1] }

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// GeometryKind discriminates stored location shapes.
type GeometryKind string

const (
	GeometryPolygon      GeometryKind = "Polygon"
	GeometryMultiPolygon GeometryKind = "MultiPolygon"
	GeometryPoint        GeometryKind = "Point"
)

// LocationGeometry is the shape associated with a selected place. It is built
// once per selection and never mutated afterwards.
//
// For Polygon and MultiPolygon, Rings holds every ring in storage order. For a
// MultiPolygon the rings of all member polygons are flattened into one list.
type LocationGeometry struct {
	Kind         GeometryKind `json:"kind"`
	Rings        [][]LngLat   `json:"rings,omitempty"`
	Center       *LatLng      `json:"center,omitempty"`
	RadiusMeters float64      `json:"radius_meters,omitempty"`
}

// SearchRing is a closed ring in search axis order.
type SearchRing struct {
	Points []LatLng `json:"points"`
}

// Len returns the number of points including the closing duplicate.
func (r SearchRing) Len() int { return len(r.Points) }

// Closed reports whether the first point equals the last point exactly.
func (r SearchRing) Closed() bool {
	n := len(r.Points)
	return n > 1 && r.Points[0] == r.Points[n-1]
}

// Open returns the points without the closing duplicate. The returned slice
// aliases the ring.
func (r SearchRing) Open() []LatLng {
	if r.Closed() {
		return r.Points[:len(r.Points)-1]
	}
	return r.Points
}

// DistinctPoints counts unique coordinates in the ring.
func (r SearchRing) DistinctPoints() int {
	seen := make(map[LatLng]struct{}, len(r.Points))
	for _, p := range r.Points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// GeoFilterKind is the predicate family of a GeoFilter.
type GeoFilterKind string

const (
	FilterPolygon GeoFilterKind = "polygon"
	FilterRadius  GeoFilterKind = "radius"
)

// GeoFilter is the serialized geo predicate sent to the search index.
type GeoFilter struct {
	Kind GeoFilterKind `json:"kind"`
	Text string        `json:"text"`
}

// Len returns the serialized length in characters.
func (f GeoFilter) Len() int { return len(f.Text) }
