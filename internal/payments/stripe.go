package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	stripeclient "github.com/angelmondragon/seedfund-backend/pkg/stripe"
)

type stripeClient interface {
	OpenIntent(ctx context.Context, params stripeclient.IntentParams) (*stripe.PaymentIntent, error)
	Intent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// StripeProvider charges remittances through Stripe payment intents.
type StripeProvider struct {
	client stripeClient
}

func NewStripeProvider(client stripeClient) (*StripeProvider, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	return &StripeProvider{client: client}, nil
}

func (p *StripeProvider) Name() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (p *StripeProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	intent, err := p.client.OpenIntent(ctx, stripeclient.IntentParams{
		RemittanceID: req.Reference,
		AmountCents:  toCents(req.Amount),
		Currency:     req.Currency,
	})
	if err != nil {
		return nil, pkgerrors.Rewrap(pkgerrors.CodeDependency, err, "stripe create payment intent")
	}
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe returned no payment intent")
	}
	return &Charge{
		PaymentID:    intent.ID,
		Provider:     enums.PaymentProviderStripe,
		Status:       StripeStatus(intent),
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (p *StripeProvider) GetStatus(ctx context.Context, paymentID string) (enums.PaymentStatus, error) {
	intent, err := p.client.Intent(ctx, paymentID)
	if err != nil {
		return "", pkgerrors.Rewrap(pkgerrors.CodeDependency, err, "stripe get payment intent")
	}
	if intent == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "stripe returned no payment intent")
	}
	return StripeStatus(intent), nil
}

// StripeStatus maps a payment intent onto the provider-neutral status. An
// intent waiting for a payment method is only rejected once an attempt failed.
func StripeStatus(intent *stripe.PaymentIntent) enums.PaymentStatus {
	if intent == nil {
		return enums.PaymentStatusPending
	}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusApproved
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStatusRejected
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return enums.PaymentStatusRejected
		}
		return enums.PaymentStatusPending
	default:
		return enums.PaymentStatusPending
	}
}
