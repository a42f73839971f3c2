package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/seedfund-backend/internal/payments"
	"github.com/angelmondragon/seedfund-backend/internal/reconciler"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type paymentEventHandler interface {
	OnPaymentEvent(ctx context.Context, event reconciler.PaymentEvent) error
}

type ServiceParams struct {
	Reconciler paymentEventHandler
	Logger     *logger.Logger
}

type Service struct {
	reconciler paymentEventHandler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent forwards payment intent outcomes to the reconciler.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentProcessing:
	default:
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "stripe_event_type", string(event.Type)), "stripe event ignored")
		}
		return nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data missing")
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if strings.TrimSpace(intent.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	status := payments.StripeStatus(&intent)
	if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
		status = enums.PaymentStatusRejected
	}
	return s.reconciler.OnPaymentEvent(ctx, reconciler.PaymentEvent{
		Provider:          enums.PaymentProviderStripe,
		ExternalPaymentID: intent.ID,
		Status:            status,
	})
}
