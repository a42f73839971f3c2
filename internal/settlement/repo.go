package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// Repository persists purchase requests, purchases and remittances. Every
// state change is a guarded update; the returned row count tells the caller
// whether the expected source state still held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error)

	CreateRequest(ctx context.Context, req *models.PurchaseRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error)
	DecideRequest(ctx context.Context, id uuid.UUID, decision requestDecision) (int64, error)
	ListPendingRequests(ctx context.Context, limit int) ([]models.PurchaseRequest, error)

	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	FindPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	TransitionPurchase(ctx context.Context, id uuid.UUID, from []enums.PurchaseStatus, to enums.PurchaseStatus, fields map[string]any) (int64, error)
	ListPurchasesAwaitingRemittance(ctx context.Context, limit int) ([]models.Purchase, error)

	CreateRemittance(ctx context.Context, remittance *models.Remittance) error
	FindRemittance(ctx context.Context, id uuid.UUID) (*models.Remittance, error)
	FindRemittanceByExternalID(ctx context.Context, externalID string) (*models.Remittance, error)
	FindOpenRemittanceForPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Remittance, error)
	MarkAwaitingPayment(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, externalID string, deadline time.Time) (int64, error)
	ConfirmRemittance(ctx context.Context, id uuid.UUID, confirmation remittanceConfirmation) (int64, error)
	RejectRemittance(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error)
	ListOpenRemittances(ctx context.Context, limit int) ([]models.Remittance, error)
	ListAwaitingPayment(ctx context.Context, now time.Time, expired bool, limit int) ([]models.Remittance, error)
}

type requestDecision struct {
	Status     enums.PurchaseRequestStatus
	DecidedBy  *uuid.UUID
	DecidedAt  time.Time
	Reason     *string
	PurchaseID *uuid.UUID
}

type remittanceConfirmation struct {
	ConfirmedBy   *uuid.UUID
	ConfirmedAt   time.Time
	SpenderShare  int64
	FundShare     decimal.Decimal
	PlatformShare decimal.Decimal
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	return repo.First[models.Partner](r.DB(ctx).Where("id = ?", id))
}

func (r *repository) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	return r.DB(ctx).Create(req).Error
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	return repo.First[models.PurchaseRequest](r.DB(ctx).Where("id = ?", id))
}

func (r *repository) DecideRequest(ctx context.Context, id uuid.UUID, decision requestDecision) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.PurchaseRequest{}).
		Where("id = ? AND status = ?", id, enums.PurchaseRequestStatusPending).
		Updates(map[string]any{
			"status":        decision.Status,
			"decided_by":    decision.DecidedBy,
			"decided_at":    decision.DecidedAt,
			"reject_reason": decision.Reason,
			"purchase_id":   decision.PurchaseID,
		}))
}

func (r *repository) ListPendingRequests(ctx context.Context, limit int) ([]models.PurchaseRequest, error) {
	var rows []models.PurchaseRequest
	err := r.DB(ctx).
		Where("status = ?", enums.PurchaseRequestStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.DB(ctx).Create(purchase).Error
}

func (r *repository) FindPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return repo.First[models.Purchase](r.DB(ctx).Where("id = ?", id))
}

func (r *repository) TransitionPurchase(ctx context.Context, id uuid.UUID, from []enums.PurchaseStatus, to enums.PurchaseStatus, fields map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	return repo.Affected(r.DB(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates))
}

func (r *repository) ListPurchasesAwaitingRemittance(ctx context.Context, limit int) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.DB(ctx).
		Where("status = ?", enums.PurchaseStatusAwaitingRemittance).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateRemittance(ctx context.Context, remittance *models.Remittance) error {
	return r.DB(ctx).Create(remittance).Error
}

func (r *repository) FindRemittance(ctx context.Context, id uuid.UUID) (*models.Remittance, error) {
	return repo.First[models.Remittance](r.DB(ctx).Where("id = ?", id))
}

func (r *repository) FindRemittanceByExternalID(ctx context.Context, externalID string) (*models.Remittance, error) {
	return repo.First[models.Remittance](r.DB(ctx).Where("external_payment_id = ?", externalID))
}

func (r *repository) FindOpenRemittanceForPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.Remittance, error) {
	var remittance models.Remittance
	err := r.DB(ctx).
		Where("purchase_id = ? AND status IN ?", purchaseID, enums.OpenRemittanceStatuses).
		First(&remittance).Error
	if err != nil {
		return nil, err
	}
	return &remittance, nil
}

func (r *repository) MarkAwaitingPayment(ctx context.Context, id uuid.UUID, provider enums.PaymentProvider, externalID string, deadline time.Time) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Remittance{}).
		Where("id = ? AND status = ?", id, enums.RemittanceStatusPending).
		Updates(map[string]any{
			"status":              enums.RemittanceStatusAwaitingPayment,
			"provider":            provider,
			"external_payment_id": externalID,
			"payment_deadline":    deadline,
		}))
}

// ConfirmRemittance is the idempotency guard: only an open remittance can be confirmed, once.
func (r *repository) ConfirmRemittance(ctx context.Context, id uuid.UUID, c remittanceConfirmation) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Remittance{}).
		Where("id = ? AND status IN ?", id, enums.OpenRemittanceStatuses).
		Updates(map[string]any{
			"status":         enums.RemittanceStatusConfirmed,
			"confirmed_by":   c.ConfirmedBy,
			"confirmed_at":   c.ConfirmedAt,
			"spender_share":  c.SpenderShare,
			"fund_share":     c.FundShare,
			"platform_share": c.PlatformShare,
		}))
}

func (r *repository) RejectRemittance(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Remittance{}).
		Where("id = ? AND status IN ?", id, enums.OpenRemittanceStatuses).
		Updates(map[string]any{
			"status":        enums.RemittanceStatusRejected,
			"reject_reason": reason,
			"rejected_at":   at,
		}))
}

func (r *repository) ListOpenRemittances(ctx context.Context, limit int) ([]models.Remittance, error) {
	var rows []models.Remittance
	err := r.DB(ctx).
		Where("status IN ?", enums.OpenRemittanceStatuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListAwaitingPayment returns awaiting_payment remittances whose payment window is still open, or already expired when expired is set.
func (r *repository) ListAwaitingPayment(ctx context.Context, now time.Time, expired bool, limit int) ([]models.Remittance, error) {
	query := r.DB(ctx).Where("status = ?", enums.RemittanceStatusAwaitingPayment)
	if expired {
		query = query.Where("payment_deadline IS NOT NULL AND payment_deadline <= ?", now)
	} else {
		query = query.Where("(payment_deadline IS NULL OR payment_deadline > ?)", now)
	}
	var rows []models.Remittance
	err := query.Order("payment_deadline ASC").Limit(limit).Find(&rows).Error
	return rows, err
}
