package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemittanceConfirmedEvent is emitted when a remittance settles and cashback is released.
type RemittanceConfirmedEvent struct {
	RemittanceID  uuid.UUID       `json:"remittanceId"`
	PurchaseID    uuid.UUID       `json:"purchaseId"`
	PartnerID     uuid.UUID       `json:"partnerId"`
	BuyerID       uuid.UUID       `json:"buyerId"`
	Value         decimal.Decimal `json:"value"`
	SpenderShare  int64           `json:"spenderShare"`
	FundShare     decimal.Decimal `json:"fundShare"`
	PlatformShare decimal.Decimal `json:"platformShare"`
	FundID        uuid.UUID       `json:"fundId"`
	ConfirmedAt   time.Time       `json:"confirmedAt"`
}

// RemittanceRejectedEvent is emitted when a remittance or its payment is rejected.
type RemittanceRejectedEvent struct {
	RemittanceID uuid.UUID `json:"remittanceId"`
	PurchaseID   uuid.UUID `json:"purchaseId"`
	PartnerID    uuid.UUID `json:"partnerId"`
	Reason       string    `json:"reason"`
	RejectedAt   time.Time `json:"rejectedAt"`
}

// FundDistributedEvent summarizes one fund distribution.
type FundDistributedEvent struct {
	FundID        uuid.UUID       `json:"fundId"`
	CycleNumber   int             `json:"cycleNumber"`
	Total         decimal.Decimal `json:"total"`
	CreatorPool   int64           `json:"creatorPool"`
	SpenderPool   int64           `json:"spenderPool"`
	Beneficiaries int             `json:"beneficiaries"`
	DistributedAt time.Time       `json:"distributedAt"`
}

// CycleResetEvent is emitted for both cycle and season resets.
type CycleResetEvent struct {
	PreviousCycle int       `json:"previousCycle"`
	CycleNumber   int       `json:"cycleNumber"`
	SeasonNumber  int       `json:"seasonNumber"`
	SeasonReset   bool      `json:"seasonReset"`
	ArchivedRows  int       `json:"archivedRows"`
	ClosedFundID  uuid.UUID `json:"closedFundId"`
	OpenedFundID  uuid.UUID `json:"openedFundId"`
	ResetAt       time.Time `json:"resetAt"`
}
