package searchindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

const apiKeyHeader = "X-TYPESENSE-API-KEY"

// Config describes how to reach the search engine.
type Config struct {
	Endpoint             string
	APIKey               string
	Timeout              time.Duration
	PropertiesCollection string
	LocationsCollection  string
	LocationQueryBy      []string
}

// Client implements ports.SearchIndex over the engine's REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new search index client. A nil httpClient gets one
// with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint must not be empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PropertiesCollection == "" {
		cfg.PropertiesCollection = "properties"
	}
	if cfg.LocationsCollection == "" {
		cfg.LocationsCollection = "locations"
	}
	if len(cfg.LocationQueryBy) == 0 {
		cfg.LocationQueryBy = []string{"name", "municipality", "region"}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// SearchProperties runs one page of a property query.
func (c *Client) SearchProperties(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	if len(q.QueryBy) > 0 {
		params.Set("query_by", strings.Join(q.QueryBy, ","))
	}
	if q.Filter != "" {
		params.Set("filter_by", q.Filter)
	}
	if q.SortBy != "" {
		params.Set("sort_by", q.SortBy)
	}
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	params.Set("per_page", strconv.Itoa(q.PerPage))
	if q.Tuning.SearchCutoffMs > 0 {
		params.Set("search_cutoff_ms", strconv.Itoa(q.Tuning.SearchCutoffMs))
	}
	params.Set("exhaustive_search", strconv.FormatBool(q.Tuning.ExhaustiveSearch))
	params.Set("use_cache", strconv.FormatBool(q.Tuning.UseCache))
	if q.Tuning.MaxCandidates > 0 {
		params.Set("max_candidates", strconv.Itoa(q.Tuning.MaxCandidates))
	}

	resp, err := c.search(ctx, c.cfg.PropertiesCollection, params, q.Filter)
	if err != nil {
		return nil, err
	}

	out := &domain.IndexResult{
		Documents:  make([]domain.Property, 0, len(resp.Hits)),
		TotalCount: resp.total(),
		Hits:       len(resp.Hits),
	}
	for i, h := range resp.Hits {
		p, err := decodeProperty(h.Document)
		if err != nil {
			slog.Warn("skipping undecodable property hit", "index", i, "error", err)
			continue
		}
		out.Documents = append(out.Documents, p)
	}
	return out, nil
}

// SearchLocations runs an autocomplete query on the locations collection.
func (c *Client) SearchLocations(ctx context.Context, text string, limit int) ([]domain.Location, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("query_by", strings.Join(c.cfg.LocationQueryBy, ","))
	params.Set("prefix", "true")
	params.Set("per_page", strconv.Itoa(limit))

	resp, err := c.search(ctx, c.cfg.LocationsCollection, params, "")
	if err != nil {
		return nil, err
	}

	locs := make([]domain.Location, 0, len(resp.Hits))
	for i, h := range resp.Hits {
		var doc locationDocument
		if err := json.Unmarshal(h.Document, &doc); err != nil {
			slog.Warn("skipping undecodable location hit", "index", i, "error", err)
			continue
		}
		locs = append(locs, doc.toDomain())
	}
	return locs, nil
}

func (c *Client) search(ctx context.Context, collection string, params url.Values, filter string) (*searchResponse, error) {
	u := c.cfg.Endpoint + "/collections/" + url.PathEscape(collection) + "/documents/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrIndexConnectivity, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return nil, &domain.IndexQueryError{Status: resp.StatusCode, Message: msg, Filter: filter}
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrIndexConnectivity, err)
	}
	return &out, nil
}
