package http

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/etxebila/internal/core/usecases"
)

// Pinger is a backing service that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Locations *usecases.LocationService
	Search    *usecases.SearchService
	NATS      *nats.Conn
	DB        Pinger
	Cache     Pinger
	// Version is reported by the health endpoint.
	Version string
	// RateLimit is the per-IP request budget per minute. Zero disables it.
	RateLimit int
	// OpenAPIPath is served at /docs/openapi.yaml.
	OpenAPIPath string
}
