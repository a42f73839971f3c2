package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// ManualProvider records off-platform transfers that an admin approves by hand.
// Its charges never resolve on their own.
type ManualProvider struct{}

func (ManualProvider) Name() enums.PaymentProvider { return enums.PaymentProviderManual }

func (ManualProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	return &Charge{
		PaymentID: "manual-" + uuid.NewString(),
		Provider:  enums.PaymentProviderManual,
		Status:    enums.PaymentStatusPending,
	}, nil
}

func (ManualProvider) GetStatus(ctx context.Context, paymentID string) (enums.PaymentStatus, error) {
	return enums.PaymentStatusPending, nil
}
