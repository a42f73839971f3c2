package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/seedfund-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/seedfund-backend/api/controllers/webhooks"
	"github.com/angelmondragon/seedfund-backend/api/middleware"
	"github.com/angelmondragon/seedfund-backend/internal/content"
	"github.com/angelmondragon/seedfund-backend/internal/cycles"
	"github.com/angelmondragon/seedfund-backend/internal/donations"
	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/internal/settlement"
	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/seedfund-backend/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// RouterParams carries everything NewRouter mounts. Webhook routes are only
// registered when their provider is configured.
type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Ready   map[string]controllers.Pinger
	Store   Store
	Metrics http.Handler

	Settlement    settlement.Service
	Funds         seedfund.Service
	Cycles        cycles.Service
	Ledger        ledger.Service
	Donations     donations.Service
	Content       content.Service
	Notifications notifications.Service
	DeadLetters   controllers.DeadLetterLister

	SquareWebhook webhookcontrollers.SquareWebhookService
	SquareSecret  webhookcontrollers.SquareSigner
	SquareGuard   webhookGuard
	StripeWebhook webhookcontrollers.StripeWebhookService
	StripeSecret  webhookcontrollers.StripeSigner
	StripeGuard   webhookGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	actionPolicy := middleware.NewActionRateLimitPolicy(
		"action",
		cfg.RateLimit.ActionWindow,
		cfg.RateLimit.ActionIPLimit,
		cfg.RateLimit.ActionUserLimit,
	)
	webhookLimiter := middleware.NewIPRateLimiter(cfg.RateLimit.WebhookPerMinute, cfg.RateLimit.WebhookBurst)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.WebhookRateLimit(webhookLimiter, logg))
		if p.SquareWebhook != nil && p.SquareSecret != nil {
			r.Post("/square", webhookcontrollers.SquareWebhook(p.SquareWebhook, p.SquareSecret, p.SquareGuard, logg))
		}
		if p.StripeWebhook != nil && p.StripeSecret != nil {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeSecret, p.StripeGuard, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Store, logg))

		r.Get("/ping", controllers.PrivatePing())
		r.Get("/me/balance", controllers.MeBalance(p.Ledger, logg))
		r.Get("/me/history", controllers.MeHistory(p.Ledger, logg))
		r.Get("/fund", controllers.CurrentFund(p.Funds, logg))
		r.Get("/cycles/status", controllers.CycleStatus(p.Cycles, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.ActionRateLimit(actionPolicy, p.Store, logg))
			r.Post("/purchase-requests", controllers.SubmitPurchaseRequest(p.Settlement, logg))
			r.Post("/donations", controllers.Donate(p.Donations, logg))
			r.Post("/content", controllers.PublishContent(p.Content, logg))
			r.Post("/content/{kind}/{contentId}/react", controllers.ReactToContent(p.Content, logg))
		})
		r.Get("/creators/{creatorId}/donations", controllers.CreatorDonations(p.Donations, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})

		r.Route("/partner", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RolePartner, enums.RoleAdmin))
			r.Post("/purchase-requests/{requestId}/approve", controllers.ApprovePurchaseRequest(p.Settlement, logg))
			r.Post("/purchase-requests/{requestId}/reject", controllers.RejectPurchaseRequest(p.Settlement, logg))
			r.Post("/purchases/{purchaseId}/remittance", controllers.RegisterRemittance(p.Settlement, logg))
			r.Post("/remittances/{remittanceId}/pay", controllers.PayRemittance(p.Settlement, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(p.Store, logg))

		r.Get("/pending", controllers.AdminPending(p.Settlement, logg))
		r.Post("/purchase-requests/{requestId}/approve", controllers.ApprovePurchaseRequest(p.Settlement, logg))
		r.Post("/purchase-requests/{requestId}/reject", controllers.RejectPurchaseRequest(p.Settlement, logg))
		r.Post("/purchases/{purchaseId}/reject", controllers.AdminRejectPurchase(p.Settlement, logg))
		r.Post("/remittances/{remittanceId}/approve", controllers.AdminApproveRemittance(p.Settlement, logg))
		r.Post("/remittances/{remittanceId}/reject", controllers.AdminRejectRemittance(p.Settlement, logg))
		r.Post("/funds/{fundId}/distribute", controllers.AdminDistributeFund(p.Funds, logg))
		r.Get("/funds/{fundId}/distributions", controllers.AdminFundDistributions(p.Funds, logg))
		r.Get("/cycles/status", controllers.CycleStatus(p.Cycles, logg))
		r.Post("/cycles/reset", controllers.AdminCycleReset(p.Cycles, logg))
		r.Post("/cycles/pause", controllers.AdminCyclePause(p.Cycles, logg))
		r.Post("/seasons/reset", controllers.AdminSeasonReset(p.Cycles, logg))
		if p.DeadLetters != nil {
			r.Get("/outbox/dlq", controllers.AdminDeadLetters(p.DeadLetters, logg))
		}
	})

	return otelhttp.NewHandler(r, "seedfund-api")
}
