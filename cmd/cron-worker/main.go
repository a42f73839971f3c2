package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/seedfund-backend/internal/app"
	"github.com/angelmondragon/seedfund-backend/internal/cron"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/metrics"
	"github.com/angelmondragon/seedfund-backend/pkg/migrate"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
)

func main() {
	ctx, rt := app.MustBoot("cron-worker")
	defer rt.Stop()
	cfg, logg := rt.Config, rt.Logger

	clients, err := app.Open(ctx, cfg, logg)
	if err != nil {
		rt.Fatal(ctx, "failed to bootstrap clients", err)
	}
	defer clients.Close(context.Background(), logg)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, clients.DB); err != nil {
		rt.Fatal(ctx, "failed to run dev migrations", err)
	}

	reg := prometheus.NewRegistry()
	metrics.Serve(ctx, cfg.Service.MetricsAddr, reg, logg)

	services, err := app.NewServices(cfg, logg, clients, reg)
	if err != nil {
		rt.Fatal(ctx, "failed to wire services", err)
	}

	registry, err := buildRegistry(cfg, logg, clients, services)
	if err != nil {
		rt.Fatal(ctx, "failed to register cron jobs", err)
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(clients.Redis, clients.Redis.LockKey("cron-worker:"+env), cfg.Cron.LockTTL)
	if err != nil {
		rt.Fatal(ctx, "failed to create cron lock", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		rt.Fatal(ctx, "failed to create cron service", err)
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal(ctx, "cron worker stopped unexpectedly", err)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, clients *app.Clients, services *app.Services) (*cron.Registry, error) {
	cycleJob, err := cron.NewCycleJob(cron.CycleJobParams{
		Logger: logg,
		Cycles: services.Cycles,
		Funds:  services.Funds,
	})
	if err != nil {
		return nil, err
	}

	pollJob, err := cron.NewPaymentPollJob(cron.PaymentPollJobParams{
		Logger: logg,
		Poller: services.Reconciler,
	})
	if err != nil {
		return nil, err
	}

	gdb := clients.DB.DB()
	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger: logg,
		DB:     clients.DB,
		Targets: []cron.RetentionTarget{
			cron.OutboxRetention(outbox.NewRepository(gdb), cfg.Cron.Retention),
			cron.NotificationRetention(notifications.NewRepository(gdb), cfg.Cron.Retention),
		},
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(cycleJob, pollJob, retentionJob), nil
}
