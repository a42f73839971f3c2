package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/seedfund-backend/api/controllers"
	"github.com/angelmondragon/seedfund-backend/api/routes"
	"github.com/angelmondragon/seedfund-backend/internal/app"
	"github.com/angelmondragon/seedfund-backend/internal/webhooks"
	squarewebhook "github.com/angelmondragon/seedfund-backend/internal/webhooks/square"
	stripewebhook "github.com/angelmondragon/seedfund-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/env"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/migrate"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, rt := app.MustBoot("api")
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
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := app.NewServices(cfg, logg, clients, reg)
	if err != nil {
		rt.Fatal(ctx, "failed to wire services", err)
	}

	params := routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		Store:         clients.Redis,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Ready:         readiness(clients),
		Settlement:    services.Settlement,
		Funds:         services.Funds,
		Cycles:        services.Cycles,
		Ledger:        services.Ledger,
		Donations:     services.Donations,
		Content:       services.Content,
		Notifications: services.Notifications,
		DeadLetters:   outbox.NewDLQRepository(clients.DB.DB()),
	}
	if err := wireWebhooks(&params, cfg, logg, clients, services); err != nil {
		rt.Fatal(ctx, "failed to wire webhooks", err)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Fatal(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func readiness(clients *app.Clients) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{
		"db":    clients.DB,
		"redis": clients.Redis,
	}
	if clients.PubSub != nil {
		deps["pubsub"] = clients.PubSub
	}
	return deps
}

// wireWebhooks mounts the provider webhooks whose clients were configured.
func wireWebhooks(p *routes.RouterParams, cfg *config.Config, logg *logger.Logger, clients *app.Clients, services *app.Services) error {
	if clients.Square != nil {
		svc, err := squarewebhook.NewService(squarewebhook.ServiceParams{Reconciler: services.Reconciler, Logger: logg})
		if err != nil {
			return err
		}
		guard, err := webhooks.NewIdempotencyGuard(clients.Redis, cfg.Payments.WebhookDedupTT, "square")
		if err != nil {
			return err
		}
		p.SquareWebhook, p.SquareSecret, p.SquareGuard = svc, clients.Square, guard
	}
	if clients.Stripe != nil {
		svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Reconciler: services.Reconciler, Logger: logg})
		if err != nil {
			return err
		}
		guard, err := webhooks.NewIdempotencyGuard(clients.Redis, cfg.Payments.WebhookDedupTT, "stripe")
		if err != nil {
			return err
		}
		p.StripeWebhook, p.StripeSecret, p.StripeGuard = svc, clients.Stripe, guard
	}
	return nil
}
