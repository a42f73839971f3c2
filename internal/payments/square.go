package payments

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/square"
)

type squareClient interface {
	Charge(ctx context.Context, params square.ChargeParams) (*sq.Payment, error)
	Payment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// SquareProvider charges remittances through the Square Payments API.
type SquareProvider struct {
	client squareClient
}

func NewSquareProvider(client squareClient) (*SquareProvider, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square client required")
	}
	return &SquareProvider{client: client}, nil
}

func (p *SquareProvider) Name() enums.PaymentProvider { return enums.PaymentProviderSquare }

func (p *SquareProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square payment source is required")
	}
	payment, err := p.client.Charge(ctx, square.ChargeParams{
		RemittanceID: req.Reference,
		AmountCents:  toCents(req.Amount),
		Currency:     req.Currency,
		SourceID:     req.SourceID,
		Note:         "remittance " + req.Reference,
	})
	if err != nil {
		return nil, pkgerrors.Rewrap(pkgerrors.CodeDependency, err, "square create payment")
	}
	if payment == nil || payment.GetID() == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment id")
	}
	return &Charge{
		PaymentID: *payment.GetID(),
		Provider:  enums.PaymentProviderSquare,
		Status:    SquareStatus(payment.GetStatus()),
	}, nil
}

func (p *SquareProvider) GetStatus(ctx context.Context, paymentID string) (enums.PaymentStatus, error) {
	payment, err := p.client.Payment(ctx, paymentID)
	if err != nil {
		return "", pkgerrors.Rewrap(pkgerrors.CodeDependency, err, "square get payment")
	}
	if payment == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment")
	}
	return SquareStatus(payment.GetStatus()), nil
}

// SquareStatus maps a Square payment status onto the provider-neutral status.
func SquareStatus(status *string) enums.PaymentStatus {
	if status == nil {
		return enums.PaymentStatusPending
	}
	switch strings.ToUpper(strings.TrimSpace(*status)) {
	case "COMPLETED", "APPROVED":
		return enums.PaymentStatusApproved
	case "CANCELED", "FAILED":
		return enums.PaymentStatusRejected
	default:
		return enums.PaymentStatusPending
	}
}
