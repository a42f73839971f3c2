package seedfund

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// Repository persists seed funds, their payouts and the current-fund reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindFund(ctx context.Context, id uuid.UUID) (*models.SeedFund, error)
	LockFund(ctx context.Context, id uuid.UUID) (*models.SeedFund, error)
	CycleConfig(ctx context.Context) (*models.CycleConfig, error)
	CreateFund(ctx context.Context, fund *models.SeedFund) error
	DeleteFund(ctx context.Context, id uuid.UUID) error
	AddToFund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error)
	SwapCurrentFund(ctx context.Context, expected *uuid.UUID, next uuid.UUID) (int64, error)
	CloseWindow(ctx context.Context, id uuid.UUID, end time.Time) (int64, error)
	MarkDistributed(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	InsertDistributions(ctx context.Context, rows []models.FundDistribution) error
	ListDistributions(ctx context.Context, fundID uuid.UUID) ([]models.FundDistribution, error)
	ListClosedUndistributed(ctx context.Context, now time.Time) ([]models.SeedFund, error)
	SpendByUser(ctx context.Context, start, end time.Time) (map[uuid.UUID]decimal.Decimal, error)
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

func (r *repository) FindFund(ctx context.Context, id uuid.UUID) (*models.SeedFund, error) {
	return repo.First[models.SeedFund](r.DB(ctx).Where("id = ?", id))
}

// LockFund reads the fund with a row lock on postgres so concurrent AddToFund calls wait for the distribution.
func (r *repository) LockFund(ctx context.Context, id uuid.UUID) (*models.SeedFund, error) {
	return repo.First[models.SeedFund](repo.ForUpdate(r.DB(ctx).Where("id = ?", id)))
}

func (r *repository) CycleConfig(ctx context.Context) (*models.CycleConfig, error) {
	return repo.First[models.CycleConfig](r.DB(ctx).Where("id = ?", models.CycleConfigID))
}

func (r *repository) CreateFund(ctx context.Context, fund *models.SeedFund) error {
	return r.DB(ctx).Create(fund).Error
}

func (r *repository) DeleteFund(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.SeedFund{}).Error
}

// AddToFund is a relative update that only lands on an undistributed fund.
func (r *repository) AddToFund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.SeedFund{}).
		Where("id = ? AND distributed = ?", id, false).
		Update("total", gorm.Expr("total + ?", amount)))
}

// SwapCurrentFund moves cycle_configs.current_fund_id from expected to next; zero rows means another writer won.
func (r *repository) SwapCurrentFund(ctx context.Context, expected *uuid.UUID, next uuid.UUID) (int64, error) {
	query := r.DB(ctx).Model(&models.CycleConfig{}).Where("id = ?", models.CycleConfigID)
	if expected == nil {
		query = query.Where("current_fund_id IS NULL")
	} else {
		query = query.Where("current_fund_id = ?", *expected)
	}
	res := query.Update("current_fund_id", next)
	return res.RowsAffected, res.Error
}

func (r *repository) CloseWindow(ctx context.Context, id uuid.UUID, end time.Time) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.SeedFund{}).
		Where("id = ? AND distributed = ? AND window_end > ?", id, false, end).
		Update("window_end", end))
}

// MarkDistributed flips the flag exactly once; zero rows means the fund was already distributed.
func (r *repository) MarkDistributed(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	return repo.Affected(r.DB(ctx).Model(&models.SeedFund{}).
		Where("id = ? AND distributed = ?", id, false).
		Updates(map[string]any{
			"distributed":    true,
			"distributed_at": at,
		}))
}

func (r *repository) InsertDistributions(ctx context.Context, rows []models.FundDistribution) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&rows).Error
}

func (r *repository) ListDistributions(ctx context.Context, fundID uuid.UUID) ([]models.FundDistribution, error) {
	var rows []models.FundDistribution
	err := r.DB(ctx).
		Where("fund_id = ?", fundID).
		Order("beneficiary_type ASC, value DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListClosedUndistributed(ctx context.Context, now time.Time) ([]models.SeedFund, error) {
	var funds []models.SeedFund
	err := r.DB(ctx).
		Where("distributed = ? AND window_end <= ?", false, now).
		Order("window_end ASC").
		Find(&funds).Error
	return funds, err
}

type userSpend struct {
	UserID uuid.UUID
	Total  decimal.Decimal
}

// SpendByUser sums released purchases and donations inside [start, end) per non-suspended user.
func (r *repository) SpendByUser(ctx context.Context, start, end time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []userSpend
	err := r.DB(ctx).Raw(`
		SELECT s.user_id AS user_id, SUM(s.amount) AS total
		FROM (
			SELECT buyer_id AS user_id, amount FROM purchases
			WHERE status = ? AND released_at >= ? AND released_at < ?
			UNION ALL
			SELECT donor_id AS user_id, amount FROM donations
			WHERE created_at >= ? AND created_at < ?
		) s
		JOIN users u ON u.id = s.user_id
		WHERE u.suspended = ?
		GROUP BY s.user_id`,
		enums.PurchaseStatusCashbackReleased, start, end, start, end, false).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Total
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
