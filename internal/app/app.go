// Package app builds the clients and domain services shared by the api and
// cron-worker binaries.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/seedfund-backend/internal/audit"
	"github.com/angelmondragon/seedfund-backend/internal/content"
	"github.com/angelmondragon/seedfund-backend/internal/cycles"
	"github.com/angelmondragon/seedfund-backend/internal/donations"
	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/internal/payments"
	"github.com/angelmondragon/seedfund-backend/internal/reconciler"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/internal/settlement"
	"github.com/angelmondragon/seedfund-backend/internal/split"
	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/metrics"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
	"github.com/angelmondragon/seedfund-backend/pkg/pubsub"
	"github.com/angelmondragon/seedfund-backend/pkg/redis"
	"github.com/angelmondragon/seedfund-backend/pkg/square"
	"github.com/angelmondragon/seedfund-backend/pkg/stripe"
)

const pollConcurrency = 4

// Clients are the external connections. Square, Stripe and PubSub stay nil
// when their configuration is absent or disabled.
type Clients struct {
	DB     *db.Client
	Redis  *redis.Client
	PubSub *pubsub.Client
	Square *square.Client
	Stripe *stripe.Client
}

// Open dials every configured dependency. On failure the connections opened
// so far are closed again.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Clients, error) {
	c := &Clients{}
	var err error

	if c.DB, err = db.New(ctx, cfg.DB, logg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap database")
	}
	if c.Redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
		c.Close(ctx, logg)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap redis")
	}
	if cfg.Features.PublishNotifies {
		if c.PubSub, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg); err != nil {
			c.Close(ctx, logg)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap pubsub")
		}
	}
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		if c.Square, err = square.NewClient(ctx, cfg.Square, logg); err != nil {
			c.Close(ctx, logg)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap square")
		}
	}
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		if c.Stripe, err = stripe.NewClient(ctx, cfg.Stripe, logg); err != nil {
			c.Close(ctx, logg)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap stripe")
		}
	}
	return c, nil
}

// Close releases every open connection and logs what failed.
func (c *Clients) Close(ctx context.Context, logg *logger.Logger) {
	var err error
	if c.PubSub != nil {
		err = multierr.Append(err, c.PubSub.Close())
	}
	if c.Redis != nil {
		err = multierr.Append(err, c.Redis.Close())
	}
	if c.DB != nil {
		err = multierr.Append(err, c.DB.Close())
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "error closing clients", err)
	}
}

// Services is the wired domain layer.
type Services struct {
	Audit         audit.Logger
	Ledger        ledger.Service
	Content       content.Service
	Notifications notifications.Service
	Outbox        *outbox.Service
	Funds         seedfund.Service
	Settlement    settlement.Service
	Donations     donations.Service
	Cycles        cycles.Service
	Payments      *payments.Registry
	Reconciler    *reconciler.Reconciler
}

// NewServices wires the domain services over clients. reg receives the
// settlement metrics.
func NewServices(cfg *config.Config, logg *logger.Logger, clients *Clients, reg prometheus.Registerer) (*Services, error) {
	if clients == nil || clients.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	gdb := clients.DB.DB()

	rates, err := cfg.Settlement.Rates()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "settlement rates")
	}
	policy, err := split.NewPolicy(rates)
	if err != nil {
		return nil, err
	}

	providers, err := paymentRegistry(cfg.Payments, clients, logg)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Audit:    audit.NewService(audit.NewRepository(gdb), logg),
		Outbox:   outbox.NewService(outbox.NewRepository(gdb), logg),
		Payments: providers,
	}

	var publisher notifications.Publisher
	if clients.PubSub != nil {
		np, err := pubsub.NewNotificationPublisher(clients.PubSub)
		if err != nil {
			return nil, err
		}
		publisher = np
	}
	if s.Notifications, err = notifications.NewService(notifications.NewRepository(gdb), publisher, logg); err != nil {
		return nil, err
	}
	if s.Ledger, err = ledger.NewService(ledger.NewRepository(gdb), clients.DB); err != nil {
		return nil, err
	}
	if s.Content, err = content.NewService(content.NewRepository(gdb)); err != nil {
		return nil, err
	}

	cycleLength := time.Duration(cfg.Cycles.CycleDays) * 24 * time.Hour
	if s.Funds, err = seedfund.NewService(seedfund.ServiceParams{
		Repository:  seedfund.NewRepository(gdb),
		Ledger:      s.Ledger,
		Content:     s.Content,
		Outbox:      s.Outbox,
		Notifier:    s.Notifications,
		DB:          clients.DB,
		Policy:      policy,
		CycleLength: cycleLength,
		Logger:      logg,
	}); err != nil {
		return nil, err
	}

	if s.Settlement, err = settlement.NewService(settlement.ServiceParams{
		Repository:    settlement.NewRepository(gdb),
		Ledger:        s.Ledger,
		Funds:         s.Funds,
		Outbox:        s.Outbox,
		Payments:      providers,
		Notifier:      s.Notifications,
		Audit:         s.Audit,
		Metrics:       metrics.NewSettlementMetrics(reg),
		DB:            clients.DB,
		Policy:        policy,
		PaymentWindow: cfg.Payments.PaymentWindow,
		Currency:      cfg.Payments.Currency,
		Logger:        logg,
	}); err != nil {
		return nil, err
	}

	if s.Donations, err = donations.NewService(donations.NewRepository(gdb), s.Ledger, clients.DB, s.Notifications); err != nil {
		return nil, err
	}

	if s.Cycles, err = cycles.NewService(cycles.ServiceParams{
		Repository:   cycles.NewRepository(gdb),
		Funds:        s.Funds,
		Outbox:       s.Outbox,
		Notifier:     s.Notifications,
		Audit:        s.Audit,
		DB:           clients.DB,
		CycleLength:  cycleLength,
		SeasonMonths: cfg.Cycles.SeasonMonths,
		Logger:       logg,
	}); err != nil {
		return nil, err
	}

	if s.Reconciler, err = reconciler.New(reconciler.Params{
		Settlement:  s.Settlement,
		Providers:   providers,
		Logger:      logg,
		BatchSize:   cfg.Payments.PollBatchSize,
		Concurrency: pollConcurrency,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// paymentRegistry registers the configured gateways plus the manual provider
// and selects the default named in configuration. A default naming a gateway
// without credentials falls back to the first registered provider.
func paymentRegistry(cfg config.PaymentsConfig, clients *Clients, logg *logger.Logger) (*payments.Registry, error) {
	var list []payments.Provider
	if clients.Square != nil {
		p, err := payments.NewSquareProvider(clients.Square)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if clients.Stripe != nil {
		p, err := payments.NewStripeProvider(clients.Stripe)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	list = append(list, payments.ManualProvider{})

	registry := payments.NewRegistry(list...)
	name := enums.PaymentProvider(strings.ToLower(strings.TrimSpace(cfg.Provider)))
	if name == "" {
		return registry, nil
	}
	if !name.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment provider "+string(name))
	}
	if err := registry.SetDefault(name); err != nil && logg != nil {
		def, _ := registry.Default()
		ctx := logg.WithFields(context.Background(), map[string]any{
			"configured_provider": string(name),
			"default_provider":    string(def.Name()),
		})
		logg.Warn(ctx, "payment provider not configured, using fallback")
	}
	return registry, nil
}
