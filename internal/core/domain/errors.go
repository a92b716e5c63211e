package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGeometryParse means the stored geometry is not the expected JSON shape.
	ErrGeometryParse = errors.New("geometry parse error")
	// ErrInsufficientPoints means a ring has fewer than 3 distinct points.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrOversizeGeometry means the filter exceeds the length budget after
	// maximum simplification.
	ErrOversizeGeometry = errors.New("oversize geometry")
	// ErrIndexConnectivity means the search index is unreachable.
	ErrIndexConnectivity = errors.New("search index unreachable")
	// ErrIndexQuery means the search index rejected the query.
	ErrIndexQuery = errors.New("search index rejected query")
	// ErrSuperseded marks a response for a search that is no longer current.
	ErrSuperseded = errors.New("search superseded")
	// ErrNotFound is returned by repositories for unknown IDs.
	ErrNotFound = errors.New("not found")
)

// NoRingAvailable is the extractor's name for ErrInsufficientPoints.
var NoRingAvailable = ErrInsufficientPoints

// IndexQueryError carries the rejected filter and search ID for diagnosis.
type IndexQueryError struct {
	Status   int
	Message  string
	Filter   string
	SearchID string
}

func (e *IndexQueryError) Error() string {
	if e.SearchID != "" {
		return fmt.Sprintf("search index rejected query (status %d, search %s, filter %q): %s",
			e.Status, e.SearchID, e.Filter, e.Message)
	}
	return fmt.Sprintf("search index rejected query (status %d, filter %q): %s", e.Status, e.Filter, e.Message)
}

func (e *IndexQueryError) Unwrap() error { return ErrIndexQuery }

// ErrorKind maps an error onto a stable identifier used in payloads.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrGeometryParse):
		return "geometry_parse"
	case errors.Is(err, ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, ErrOversizeGeometry):
		return "oversize_geometry"
	case errors.Is(err, ErrIndexConnectivity):
		return "index_connectivity"
	case errors.Is(err, ErrIndexQuery):
		return "index_query"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
