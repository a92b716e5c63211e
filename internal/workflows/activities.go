package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
)

// Activity names, as registered by RegisterActivity on a *PrecomputeActivities.
const (
	ActivityListLocationBatch  = "ListLocationBatch"
	ActivityPrecomputeLocation = "PrecomputeLocation"
)

// errTypeNotFound marks a location that disappeared between listing and
// precomputing. It is never retried.
const errTypeNotFound = "LocationNotFound"

// PrecomputeActivities holds the activity implementations for the filter
// precompute workflow.
type PrecomputeActivities struct {
	Precompute *usecases.PrecomputeService
}

// ListLocationBatch returns up to limit location IDs after afterID.
func (a *PrecomputeActivities) ListLocationBatch(ctx context.Context, afterID string, limit int) ([]string, error) {
	ids, err := a.Precompute.ListBatch(ctx, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list locations after %q: %w", afterID, err)
	}
	return ids, nil
}

// PrecomputeLocation rebuilds the stored filter of one location.
func (a *PrecomputeActivities) PrecomputeLocation(ctx context.Context, locationID string) (usecases.PrecomputeResult, error) {
	res, err := a.Precompute.Precompute(ctx, locationID)
	if errors.Is(err, domain.ErrNotFound) {
		return res, temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
	}
	if err != nil {
		return res, err
	}
	slog.Debug("location precomputed", "location_id", locationID, "mode", res.Mode,
		"stored", res.Stored, "chars", res.Chars, "kind", res.ErrorKind)
	return res, nil
}
