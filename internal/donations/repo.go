package donations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
)

// Repository persists donations and the creator score they feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CurrentCycle(ctx context.Context) (int, error)
	Insert(ctx context.Context, donation *models.Donation) error
	AddScore(ctx context.Context, userID uuid.UUID, delta int64) error
	ListByCreator(ctx context.Context, creatorID uuid.UUID, cycleNumber, limit int) ([]models.Donation, error)
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

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx).Where("id = ?", id))
}

func (r *repository) CurrentCycle(ctx context.Context) (int, error) {
	var cfg models.CycleConfig
	if err := r.DB(ctx).Where("id = ?", models.CycleConfigID).First(&cfg).Error; err != nil {
		return 0, err
	}
	return cfg.CycleNumber, nil
}

func (r *repository) Insert(ctx context.Context, donation *models.Donation) error {
	return r.DB(ctx).Create(donation).Error
}

func (r *repository) AddScore(ctx context.Context, userID uuid.UUID, delta int64) error {
	return r.DB(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
}

func (r *repository) ListByCreator(ctx context.Context, creatorID uuid.UUID, cycleNumber, limit int) ([]models.Donation, error) {
	var rows []models.Donation
	err := r.DB(ctx).
		Where("creator_id = ? AND cycle_number = ?", creatorID, cycleNumber).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
