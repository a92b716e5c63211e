package domain

import (
	"encoding/json"
	"time"
)

// Location is a place from the location index: an administrative region or a
// point of interest.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // "admin" | "poi"
	Hierarchy Hierarchy `json:"hierarchy"`

	// GeometryKind and Geometry are the stored discriminator and serialized
	// GeoJSON geometry. Geometry may be empty for point-type locations that
	// only carry Center and RadiusMeters.
	GeometryKind GeometryKind    `json:"geometry_kind,omitempty"`
	Geometry     json.RawMessage `json:"geometry,omitempty"`
	Center       *LatLng         `json:"center,omitempty"`
	RadiusMeters float64         `json:"radius_meters,omitempty"`

	// Filter is a geo filter precomputed upstream.
	Filter *GeoFilter `json:"filter,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Hierarchy holds display names only.
type Hierarchy struct {
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	Parish       string `json:"parish,omitempty"`
}

// Property is a listing returned by the search index. Attributes are passed
// through untouched.
type Property struct {
	ID         string         `json:"id"`
	Geoloc     *LatLng        `json:"geoloc,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// IndexTuning carries latency/accuracy hints for the search index.
type IndexTuning struct {
	ExhaustiveSearch bool `json:"exhaustive_search"`
	SearchCutoffMs   int  `json:"search_cutoff_ms"`
	UseCache         bool `json:"use_cache"`
	MaxCandidates    int  `json:"max_candidates"`
}

// IndexQuery is one request to the properties collection.
type IndexQuery struct {
	Text    string   `json:"q"`
	QueryBy []string `json:"query_by,omitempty"`
	Filter  string   `json:"filter_by,omitempty"`
	SortBy  string   `json:"sort_by,omitempty"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Tuning  IndexTuning
}

// IndexResult is one raw response from the search index, already normalized
// so that TotalCount is the authoritative total.
type IndexResult struct {
	Documents  []Property
	TotalCount int
	// Hits is the number of hits the index returned for the page, including
	// any that could not be decoded into Documents.
	Hits int
}

// Returned is the page's hit count, falling back to len(Documents) when the
// producer did not set Hits.
func (r *IndexResult) Returned() int {
	if r.Hits > len(r.Documents) {
		return r.Hits
	}
	return len(r.Documents)
}

// SearchMode is the query strategy picked for a selection.
type SearchMode string

const (
	ModePrecomputed SearchMode = "precomputed"
	ModeRadius      SearchMode = "radius"
	ModeText        SearchMode = "text"
	ModePolygon     SearchMode = "polygon"
	ModeBoundingBox SearchMode = "bbox"
)

// SearchRequest is one page request of a logical search.
type SearchRequest struct {
	SearchID  string     `json:"search_id"`
	Mode      SearchMode `json:"mode"`
	Text      string     `json:"text"`
	GeoFilter *GeoFilter `json:"geo_filter,omitempty"`
	SortBy    string     `json:"sort_by,omitempty"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// Outcome qualifies how trustworthy a result set is.
type Outcome string

const (
	OutcomeExact       Outcome = "exact"
	OutcomeApproximate Outcome = "approximate"
	OutcomeFallback    Outcome = "fallback"
)

// SearchResultPage is one page of documents plus the running total.
type SearchResultPage struct {
	SearchID   string     `json:"search_id"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	Documents  []Property `json:"documents"`
	TotalCount int        `json:"total_count"`
	Outcome    Outcome    `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
}

// SessionStatus is the state of a search session.
type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"
	StatusLoading    SessionStatus = "loading"
	StatusReady      SessionStatus = "ready" // page loaded, more available, auto-load off
	StatusComplete   SessionStatus = "complete"
	StatusFailed     SessionStatus = "failed"
	StatusSuperseded SessionStatus = "superseded"
)

// Settled reports whether no request is pending for the session.
func (s SessionStatus) Settled() bool {
	return s != StatusLoading
}

// Snapshot is the observable state of the current search session.
type Snapshot struct {
	SearchID   string        `json:"search_id"`
	Status     SessionStatus `json:"status"`
	Mode       SearchMode    `json:"mode,omitempty"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Documents  []Property    `json:"documents"`
	TotalCount int           `json:"total_count"`
	Outcome    Outcome       `json:"outcome,omitempty"`
	Filter     *GeoFilter    `json:"filter,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
}

// SessionEvent is published when a session settles.
type SessionEvent struct {
	SearchID     string        `json:"search_id"`
	LocationID   string        `json:"location_id,omitempty"`
	Mode         SearchMode    `json:"mode"`
	Status       SessionStatus `json:"status"`
	Outcome      Outcome       `json:"outcome,omitempty"`
	TotalCount   int           `json:"total_count"`
	PagesFetched int           `json:"pages_fetched"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Time         time.Time     `json:"time"`
}
