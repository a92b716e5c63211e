package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/etxebila/internal/core/usecases"
)

// WorkflowPrecomputeFilters is the registered workflow type name.
const WorkflowPrecomputeFilters = "PrecomputeFiltersWorkflow"

const (
	defaultBatchSize = 100
	// maxPerRun bounds history size; the workflow continues as new after it.
	maxPerRun = 2000
)

// PrecomputeInput is the input for the precompute workflow.
type PrecomputeInput struct {
	// AfterID resumes the sweep after this location ID.
	AfterID   string
	BatchSize int
	// Summary carries totals across continue-as-new runs.
	Summary PrecomputeSummary
}

// PrecomputeSummary counts the outcome of a sweep.
type PrecomputeSummary struct {
	Processed int
	Stored    int
	Skipped   int // approximate plans, text fallbacks, bad geometry
	Failed    int
	LastID    string
}

// PrecomputeFiltersWorkflow walks every stored location in ID order and
// rebuilds its direct geo filter, one batch of parallel activities at a
// time. Failing locations are counted and skipped.
func PrecomputeFiltersWorkflow(ctx workflow.Context, input PrecomputeInput) (PrecomputeSummary, error) {
	logger := workflow.GetLogger(ctx)
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	summary := input.Summary
	after := input.AfterID
	logger.Info("Starting precompute workflow", "after", after, "batchSize", batchSize)

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	})
	computeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeNotFound},
		},
	})

	thisRun := 0
	for {
		var ids []string
		if err := workflow.ExecuteActivity(listCtx, ActivityListLocationBatch, after, batchSize).Get(ctx, &ids); err != nil {
			return summary, err
		}
		if len(ids) == 0 {
			break
		}

		futures := make([]workflow.Future, len(ids))
		for i, id := range ids {
			futures[i] = workflow.ExecuteActivity(computeCtx, ActivityPrecomputeLocation, id)
		}
		for i, f := range futures {
			var res usecases.PrecomputeResult
			summary.Processed++
			if err := f.Get(ctx, &res); err != nil {
				logger.Warn("precompute failed", "locationID", ids[i], "error", err)
				summary.Failed++
				continue
			}
			if res.Stored {
				summary.Stored++
			} else {
				summary.Skipped++
			}
		}

		after = ids[len(ids)-1]
		summary.LastID = after
		thisRun += len(ids)

		if len(ids) < batchSize {
			break
		}
		if thisRun >= maxPerRun {
			logger.Info("Continuing as new", "after", after, "processed", summary.Processed)
			return summary, workflow.NewContinueAsNewError(ctx, PrecomputeFiltersWorkflow, PrecomputeInput{
				AfterID:   after,
				BatchSize: batchSize,
				Summary:   summary,
			})
		}
	}

	logger.Info("Precompute finished", "processed", summary.Processed,
		"stored", summary.Stored, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}
