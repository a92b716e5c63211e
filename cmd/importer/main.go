package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	flag "github.com/spf13/pflag"

	natsadapter "github.com/samirrijal/etxebila/internal/adapters/nats"
	"github.com/samirrijal/etxebila/internal/adapters/postgres"
	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/pkg/config"
	"github.com/samirrijal/etxebila/internal/pkg/geospatial"
	"github.com/samirrijal/etxebila/internal/pkg/logging"
)

func main() {
	batchSize := flag.Int("batch", 500, "locations per upsert batch")
	announce := flag.Bool("announce", true, "publish locations.updated for every imported location")
	flag.Parse()

	path := "locations.geojson"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	cfg, err := config.Load("etxebila-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewLocationRepo(db)

	var pub *natsadapter.Publisher
	if *announce {
		pub, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, skipping announcements", "error", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}

	start := time.Now()
	var (
		batch    []domain.Location
		imported int
		skipped  int
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			log.Fatalf("upsert batch: %v", err)
		}
		imported += len(batch)
		if pub != nil {
			for _, l := range batch {
				if err := pub.PublishLocationUpdated(ctx, l.ID); err != nil {
					slog.Warn("announce failed", "location_id", l.ID, "error", err)
				}
			}
		}
		batch = batch[:0]
	}

	for i, f := range fc.Features {
		loc, err := geospatial.LocationFromFeature(f)
		if err != nil {
			slog.Warn("skipping feature", "index", i, "error", err)
			skipped++
			continue
		}
		batch = append(batch, loc)
		if len(batch) >= *batchSize {
			flush()
		}
	}
	flush()

	fmt.Printf("imported=%d skipped=%d in %s\n", imported, skipped, time.Since(start).Round(time.Millisecond))
}
