package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	flag "github.com/spf13/pflag"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/etxebila/internal/adapters/nats"
	"github.com/samirrijal/etxebila/internal/adapters/postgres"
	"github.com/samirrijal/etxebila/internal/core/ports"
	"github.com/samirrijal/etxebila/internal/core/usecases"
	"github.com/samirrijal/etxebila/internal/pkg/config"
	"github.com/samirrijal/etxebila/internal/pkg/logging"
	"github.com/samirrijal/etxebila/internal/workflows"
)

func main() {
	start := flag.Bool("start", false, "start a precompute sweep and wait for its summary instead of running a worker")
	after := flag.String("after", "", "resume the sweep after this location ID")
	location := flag.String("location", "", "precompute a single location in-process and exit")
	flag.Parse()

	cfg, err := config.Load("etxebila-precompute")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	if *location != "" {
		svc := newService(ctx, cfg)
		res, err := svc.Precompute(ctx, *location)
		if err != nil {
			log.Fatalf("precompute %s: %v", *location, err)
		}
		fmt.Printf("%s mode=%s stored=%t chars=%d kind=%s\n", res.LocationID, res.Mode, res.Stored, res.Chars, res.ErrorKind)
		return
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if *start {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        "precompute-filters-" + time.Now().UTC().Format("20060102T150405"),
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.WorkflowPrecomputeFilters, workflows.PrecomputeInput{
			AfterID:   *after,
			BatchSize: cfg.Temporal.BatchSize,
		})
		if err != nil {
			log.Fatalf("start workflow: %v", err)
		}
		slog.Info("precompute started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

		var summary workflows.PrecomputeSummary
		if err := run.Get(ctx, &summary); err != nil {
			log.Fatalf("workflow: %v", err)
		}
		fmt.Printf("processed=%d stored=%d skipped=%d failed=%d last=%s\n",
			summary.Processed, summary.Stored, summary.Skipped, summary.Failed, summary.LastID)
		return
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.PrecomputeFiltersWorkflow)
	w.RegisterActivity(&workflows.PrecomputeActivities{Precompute: newService(ctx, cfg)})

	slog.Info("precompute worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// newService wires the precompute service. Connections live for the
// process lifetime.
func newService(ctx context.Context, cfg *config.Config) *usecases.PrecomputeService {
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, API caches will expire by TTL", "error", err)
	} else {
		events = pub
	}

	planner := usecases.NewFilterPlanner(cfg.PlannerConfig())
	return usecases.NewPrecomputeService(postgres.NewLocationRepo(db), planner, events)
}
