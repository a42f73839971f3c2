package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/seedfund-backend/internal/app"
	"github.com/angelmondragon/seedfund-backend/internal/relay"
	"github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/metrics"
	"github.com/angelmondragon/seedfund-backend/pkg/migrate"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox/registry"
	"github.com/angelmondragon/seedfund-backend/pkg/pubsub"
)

func main() {
	ctx, rt := app.MustBoot("outbox-publisher")
	defer rt.Stop()
	cfg, logg := rt.Config, rt.Logger

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		rt.Fatal(ctx, "failed to bootstrap database", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		rt.Fatal(ctx, "failed to run dev migrations", err)
	}

	// the relay always publishes, regardless of the notifications feature flag
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		rt.Fatal(ctx, "failed to bootstrap pubsub", err)
	}
	defer pubsubClient.Close()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		rt.Fatal(ctx, "failed to build event registry", err)
	}

	reg := prometheus.NewRegistry()
	metrics.Serve(ctx, cfg.Service.MetricsAddr, reg, logg)

	gdb := dbClient.DB()
	r, err := relay.New(relay.Params{
		DB:           dbClient,
		Rows:         outbox.NewRepository(gdb),
		DeadLetters:  outbox.NewDLQRepository(gdb),
		Registry:     events,
		Topics:       relay.PubSubTopics(pubsubClient),
		Dependencies: map[string]relay.Pinger{"database": dbClient, "pubsub": pubsubClient},
		Metrics:      metrics.NewOutboxMetrics(reg),
		Logger:       logg,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		PollInterval: time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond,
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create outbox relay", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
