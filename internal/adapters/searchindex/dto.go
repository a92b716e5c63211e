package searchindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// searchResponse is the subset of the engine's search response we read.
// Older deployments report the total as count instead of found.
type searchResponse struct {
	Found *int        `json:"found"`
	Count *int        `json:"count"`
	Page  int         `json:"page"`
	Hits  []searchHit `json:"hits"`
}

type searchHit struct {
	Document json.RawMessage `json:"document"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// total picks found, then count, then the number of hits.
func (r *searchResponse) total() int {
	switch {
	case r.Found != nil:
		return *r.Found
	case r.Count != nil:
		return *r.Count
	default:
		return len(r.Hits)
	}
}

// geoPoint accepts both [lat, lng] and {"lat":..,"lng":..} encodings.
type geoPoint struct {
	domain.LatLng
	ok bool
}

func (g *geoPoint) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		if len(arr) < 2 {
			return fmt.Errorf("geopoint needs 2 values, got %d", len(arr))
		}
		g.Lat, g.Lng, g.ok = arr[0], arr[1], true
		return nil
	}
	var obj struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	g.Lat, g.Lng, g.ok = obj.Lat, obj.Lng, true
	return nil
}

func (g geoPoint) ptr() *domain.LatLng {
	if !g.ok {
		return nil
	}
	p := g.LatLng
	return &p
}

// decodeProperty maps a property document; everything but id and _geoloc is
// passed through as attributes.
func decodeProperty(raw json.RawMessage) (domain.Property, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Property{}, err
	}

	var p domain.Property
	if v, ok := fields["id"]; ok {
		p.ID = scalarString(v)
		delete(fields, "id")
	}
	if v, ok := fields["_geoloc"]; ok {
		var g geoPoint
		if err := json.Unmarshal(v, &g); err == nil {
			p.Geoloc = g.ptr()
		}
		delete(fields, "_geoloc")
	}

	if len(fields) > 0 {
		p.Attributes = make(map[string]any, len(fields))
		for k, v := range fields {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return domain.Property{}, fmt.Errorf("attribute %s: %w", k, err)
			}
			p.Attributes[k] = val
		}
	}
	return p, nil
}

// scalarString renders a JSON string or number ID as text.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// locationDocument is a document of the locations collection.
type locationDocument struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         string          `json:"kind"`
	Country      string          `json:"country"`
	Region       string          `json:"region"`
	Municipality string          `json:"municipality"`
	Parish       string          `json:"parish"`
	GeometryKind string          `json:"geometry_kind"`
	Geometry     json.RawMessage `json:"geometry"`
	Center       geoPoint        `json:"center"`
	RadiusMeters json.Number     `json:"radius_meters"`
	Filter       string          `json:"filter"`
	FilterKind   string          `json:"filter_kind"`
}

func (d *locationDocument) toDomain() domain.Location {
	loc := domain.Location{
		ID:   d.ID,
		Name: d.Name,
		Kind: d.Kind,
		Hierarchy: domain.Hierarchy{
			Country:      d.Country,
			Region:       d.Region,
			Municipality: d.Municipality,
			Parish:       d.Parish,
		},
		GeometryKind: domain.GeometryKind(d.GeometryKind),
		Center:       d.Center.ptr(),
	}
	if len(d.Geometry) > 0 && !bytes.Equal(bytes.TrimSpace(d.Geometry), []byte("null")) {
		loc.Geometry = d.Geometry
	}
	if d.RadiusMeters != "" {
		if r, err := strconv.ParseFloat(d.RadiusMeters.String(), 64); err == nil {
			loc.RadiusMeters = r
		}
	}
	if d.Filter != "" {
		kind := domain.GeoFilterKind(d.FilterKind)
		if kind == "" {
			kind = domain.FilterPolygon
		}
		loc.Filter = &domain.GeoFilter{Kind: kind, Text: d.Filter}
	}
	return loc
}
