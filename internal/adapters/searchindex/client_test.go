package searchindex_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/etxebila/internal/adapters/searchindex"
	"github.com/samirrijal/etxebila/internal/core/domain"
)

func newClient(t *testing.T, handler http.HandlerFunc) *searchindex.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := searchindex.NewClient(searchindex.Config{Endpoint: srv.URL, APIKey: "secret"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestSearchProperties_RequestAndDecode(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/properties/documents/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-TYPESENSE-API-KEY") != "secret" {
			t.Error("missing api key header")
		}
		q := r.URL.Query()
		want := map[string]string{
			"q":                 "*",
			"query_by":          "title,description",
			"filter_by":         "_geoloc:(38.7, -9.1, 2 km)",
			"sort_by":           "_geoloc(38.7, -9.1):asc",
			"page":              "2",
			"per_page":          "250",
			"search_cutoff_ms":  "3000",
			"exhaustive_search": "false",
			"use_cache":         "true",
			"max_candidates":    "1000",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("param %s: expected %q, got %q", k, v, got)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"found":520,"page":2,"hits":[
			{"document":{"id":"p1","_geoloc":[38.71,-9.12],"price":250000,"title":"T2"}},
			{"document":{"id":42,"_geoloc":{"lat":38.72,"lng":-9.13}}}
		]}`))
	})

	res, err := c.SearchProperties(context.Background(), domain.IndexQuery{
		Text:    "*",
		QueryBy: []string{"title", "description"},
		Filter:  "_geoloc:(38.7, -9.1, 2 km)",
		SortBy:  "_geoloc(38.7, -9.1):asc",
		Page:    2,
		PerPage: 250,
		Tuning:  domain.IndexTuning{SearchCutoffMs: 3000, UseCache: true, MaxCandidates: 1000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCount != 520 {
		t.Errorf("expected total 520, got %d", res.TotalCount)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(res.Documents))
	}
	p := res.Documents[0]
	if p.ID != "p1" || p.Geoloc == nil || p.Geoloc.Lat != 38.71 || p.Geoloc.Lng != -9.12 {
		t.Errorf("unexpected first document %+v", p)
	}
	if p.Attributes["title"] != "T2" || p.Attributes["price"] != float64(250000) {
		t.Errorf("attributes not passed through: %+v", p.Attributes)
	}
	if res.Documents[1].ID != "42" || res.Documents[1].Geoloc.Lng != -9.13 {
		t.Errorf("unexpected second document %+v", res.Documents[1])
	}
}

func TestSearchProperties_TotalPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"found wins", `{"found":10,"count":7,"hits":[]}`, 10},
		{"legacy count", `{"count":7,"hits":[]}`, 7},
		{"hit count", `{"hits":[{"document":{"id":"a"}},{"document":{"id":"b"}}]}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			res, err := c.SearchProperties(context.Background(), domain.IndexQuery{Text: "*", Page: 1, PerPage: 10})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.TotalCount != tt.want {
				t.Errorf("expected %d, got %d", tt.want, res.TotalCount)
			}
		})
	}
}

func TestSearchProperties_ErrorClassification(t *testing.T) {
	t.Run("rejected filter", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Could not parse the filter query."}`))
		})
		_, err := c.SearchProperties(context.Background(), domain.IndexQuery{Text: "*", Filter: "_geoloc:(bad)"})
		var qe *domain.IndexQueryError
		if !errors.As(err, &qe) {
			t.Fatalf("expected IndexQueryError, got %v", err)
		}
		if qe.Status != 400 || qe.Message != "Could not parse the filter query." || qe.Filter != "_geoloc:(bad)" {
			t.Errorf("unexpected error %+v", qe)
		}
		if !errors.Is(err, domain.ErrIndexQuery) {
			t.Error("expected ErrIndexQuery")
		}
	})

	t.Run("server error", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := c.SearchProperties(context.Background(), domain.IndexQuery{Text: "*"})
		if !errors.Is(err, domain.ErrIndexConnectivity) {
			t.Errorf("expected ErrIndexConnectivity, got %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c, _ := searchindex.NewClient(searchindex.Config{Endpoint: url}, nil)
		_, err := c.SearchProperties(context.Background(), domain.IndexQuery{Text: "*"})
		if !errors.Is(err, domain.ErrIndexConnectivity) {
			t.Errorf("expected ErrIndexConnectivity, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.SearchProperties(ctx, domain.IndexQuery{Text: "*"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSearchLocations(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/locations/documents/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("per_page") != "5" {
			t.Errorf("unexpected per_page %s", r.URL.Query().Get("per_page"))
		}
		_, _ = w.Write([]byte(`{"found":1,"hits":[{"document":{
			"id":"pt-lisboa","name":"Lisboa","kind":"admin","country":"Portugal","region":"Lisboa",
			"geometry_kind":"Polygon","geometry":"{\"type\":\"Polygon\",\"coordinates\":[[[-9.2,38.7],[-9.1,38.8],[-9.0,38.7],[-9.2,38.7]]]}",
			"center":[38.72,-9.14],"radius_meters":0
		}}]}`))
	})

	locs, err := c.SearchLocations(context.Background(), "lisb", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	loc := locs[0]
	if loc.Name != "Lisboa" || loc.Hierarchy.Country != "Portugal" || loc.GeometryKind != domain.GeometryPolygon {
		t.Errorf("unexpected location %+v", loc)
	}
	if loc.Center == nil || loc.Center.Lat != 38.72 {
		t.Errorf("unexpected center %+v", loc.Center)
	}
	if len(loc.Geometry) == 0 {
		t.Error("expected geometry to be carried")
	}
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	if _, err := searchindex.NewClient(searchindex.Config{}, nil); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestSearchProperties_HitsCountsUndecodable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"found":3,"hits":[
			{"document":{"id":"a"}},
			{"document":"not an object"},
			{"document":{"id":"c"}}
		]}`))
	})

	res, err := c.SearchProperties(context.Background(), domain.IndexQuery{Text: "*", Page: 1, PerPage: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Documents) != 2 {
		t.Errorf("expected 2 decoded documents, got %d", len(res.Documents))
	}
	if res.Hits != 3 || res.Returned() != 3 {
		t.Errorf("expected 3 hits reported, got Hits=%d Returned=%d", res.Hits, res.Returned())
	}
}
