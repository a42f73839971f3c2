package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type StripeSigner interface {
	SigningSecret() string
}

// StripeWebhook accepts Stripe payment intent events verified with the
// endpoint signing secret.
func StripeWebhook(svc StripeWebhookService, signer StripeSigner, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return receive("stripe", guard, logg, func(r *http.Request, payload []byte) (*delivery, error) {
		if svc == nil || signer == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured")
		}
		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing")
		}
		event, err := webhook.ConstructEventWithOptions(payload, signature, signer.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
		}
		return &delivery{
			eventID: event.ID,
			apply:   func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) },
		}, nil
	})
}
