package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
)

// Repository manages seed balances, seed history and partner debt.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	DecrementBalanceIfEnough(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	InsertHistory(ctx context.Context, entry *models.SeedHistoryEntry) error
	ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.SeedHistoryEntry, error)
	IncreasePartnerDebt(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (int64, error)
	DecreasePartnerDebt(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (int64, error)
	RecordPartnerSale(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) IncrementBalance(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("seed_balance", gorm.Expr("seed_balance + ?", amount)))
}

// DecrementBalanceIfEnough is a single guarded statement; zero rows means missing user or short balance.
func (r *repository) DecrementBalanceIfEnough(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.User{}).
		Where("id = ? AND seed_balance >= ?", userID, amount).
		Update("seed_balance", gorm.Expr("seed_balance - ?", amount)))
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var user models.User
	if err := r.DB(ctx).Select("id", "seed_balance").Where("id = ?", userID).First(&user).Error; err != nil {
		return 0, err
	}
	return user.SeedBalance, nil
}

func (r *repository) InsertHistory(ctx context.Context, entry *models.SeedHistoryEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.SeedHistoryEntry, error) {
	var entries []models.SeedHistoryEntry
	if err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) IncreasePartnerDebt(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Partner{}).
		Where("id = ?", partnerID).
		Update("debt_balance", gorm.Expr("debt_balance + ?", amount)))
}

// DecreasePartnerDebt floors the debt at zero.
func (r *repository) DecreasePartnerDebt(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Partner{}).
		Where("id = ?", partnerID).
		Update("debt_balance", gorm.Expr("CASE WHEN debt_balance >= ? THEN debt_balance - ? ELSE 0 END", amount, amount)))
}

func (r *repository) RecordPartnerSale(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Partner{}).
		Where("id = ?", partnerID).
		Updates(map[string]any{
			"sales_count": gorm.Expr("sales_count + 1"),
			"sales_total": gorm.Expr("sales_total + ?", amount),
		}))
}
