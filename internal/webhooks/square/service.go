package squarewebhook

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/seedfund-backend/internal/payments"
	"github.com/angelmondragon/seedfund-backend/internal/reconciler"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

const (
	eventPaymentCreated = "payment.created"
	eventPaymentUpdated = "payment.updated"
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

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *sq.Payment `json:"payment"`
}

// HandleEvent forwards Square payment events to the reconciler. Other event
// types are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	switch strings.ToLower(strings.TrimSpace(event.Type)) {
	case eventPaymentCreated, eventPaymentUpdated:
	default:
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "square_event_type", event.Type), "square event ignored")
		}
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square payment payload missing")
	}
	paymentID := strings.TrimSpace(event.Data.ID)
	if id := payment.GetID(); id != nil && strings.TrimSpace(*id) != "" {
		paymentID = strings.TrimSpace(*id)
	}
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "square payment id missing")
	}

	return s.reconciler.OnPaymentEvent(ctx, reconciler.PaymentEvent{
		Provider:          enums.PaymentProviderSquare,
		ExternalPaymentID: paymentID,
		Status:            payments.SquareStatus(payment.GetStatus()),
	})
}
