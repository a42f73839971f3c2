package cycles

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

const archiveBatchSize = 500

// Repository reads and rewrites the cycle clock and the cycle-scoped tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Config(ctx context.Context) (*models.CycleConfig, error)
	LockConfig(ctx context.Context) (*models.CycleConfig, error)
	AdvanceCycle(ctx context.Context, expectedCycle int, now time.Time, season bool) (int64, error)
	SetPaused(ctx context.Context, paused bool, now time.Time) (int64, error)
	RankedUsers(ctx context.Context) ([]models.User, error)
	InsertRankings(ctx context.Context, rows []models.CycleRanking) error
	ArchiveAndClear(ctx context.Context, scope archiveScope) (int, error)
	ResetUsers(ctx context.Context) error
	ResetPartners(ctx context.Context) error
}

// archiveScope identifies the closing cycle and the cutoff for cleared rows.
type archiveScope struct {
	CycleNumber  int
	SeasonNumber int
	Cutoff       time.Time
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

func (r *repository) Config(ctx context.Context) (*models.CycleConfig, error) {
	return repo.First[models.CycleConfig](r.DB(ctx).Where("id = ?", models.CycleConfigID))
}

// LockConfig reads the singleton with a row lock on postgres so concurrent resets queue up.
func (r *repository) LockConfig(ctx context.Context) (*models.CycleConfig, error) {
	return repo.First[models.CycleConfig](repo.ForUpdate(r.DB(ctx).Where("id = ?", models.CycleConfigID)))
}

// AdvanceCycle moves the clock to now only when cycle_number still equals expectedCycle.
func (r *repository) AdvanceCycle(ctx context.Context, expectedCycle int, now time.Time, season bool) (int64, error) {
	updates := map[string]any{
		"cycle_start":  now,
		"cycle_number": gorm.Expr("cycle_number + 1"),
		"updated_at":   now,
	}
	if season {
		updates["season_start"] = now
		updates["season_number"] = gorm.Expr("season_number + 1")
	}
	result := r.DB(ctx).Model(&models.CycleConfig{}).
		Where("id = ? AND cycle_number = ?", models.CycleConfigID, expectedCycle).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) SetPaused(ctx context.Context, paused bool, now time.Time) (int64, error) {
	result := r.DB(ctx).Model(&models.CycleConfig{}).
		Where("id = ?", models.CycleConfigID).
		Updates(map[string]any{"paused": paused, "updated_at": now})
	return result.RowsAffected, result.Error
}

// RankedUsers returns every user that could appear on the leaderboard.
func (r *repository) RankedUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.DB(ctx).
		Where("suspended = ? AND (score > 0 OR creator_tier IS NOT NULL)", false).
		Order("id").
		Find(&users).Error
	return users, err
}

func (r *repository) InsertRankings(ctx context.Context, rows []models.CycleRanking) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(rows, archiveBatchSize).Error
}

// ArchiveAndClear copies the cycle-scoped tables into cycle_archives in
// batches and then deletes the copied rows.
func (r *repository) ArchiveAndClear(ctx context.Context, scope archiveScope) (int, error) {
	db := r.DB(ctx)
	steps := []func() (int, error){
		func() (int, error) {
			return archiveTable[models.CycleRanking](db, "cycle_rankings", scope, "cycle_number <= ?", scope.CycleNumber)
		},
		func() (int, error) {
			return archiveTable[models.Donation](db, "donations", scope, "created_at < ?", scope.Cutoff)
		},
		func() (int, error) {
			return archiveTable[models.SeedHistoryEntry](db, "seed_history", scope, "created_at < ?", scope.Cutoff)
		},
		func() (int, error) {
			return archiveTable[models.CreatorContent](db, "creator_contents", scope, "created_at < ?", scope.Cutoff)
		},
		func() (int, error) {
			return archiveTable[models.PartnerContent](db, "partner_contents", scope, "created_at < ?", scope.Cutoff)
		},
	}
	total := 0
	for _, step := range steps {
		n, err := step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func archiveTable[T any](db *gorm.DB, source string, scope archiveScope, query string, args ...any) (int, error) {
	var (
		batch []T
		total int
	)
	writer := db.Session(&gorm.Session{NewDB: true})
	result := db.Model(new(T)).Where(query, args...).FindInBatches(&batch, archiveBatchSize, func(_ *gorm.DB, n int) error {
		payload, err := json.Marshal(batch)
		if err != nil {
			return err
		}
		total += n
		return writer.Create(&models.CycleArchive{
			ID:           uuid.New(),
			CycleNumber:  scope.CycleNumber,
			SeasonNumber: scope.SeasonNumber,
			SourceTable:  source,
			RowCount:     n,
			Payload:      payload,
		}).Error
	})
	if result.Error != nil {
		return total, result.Error
	}
	if total == 0 {
		return 0, nil
	}
	if err := writer.Where(query, args...).Delete(new(T)).Error; err != nil {
		return total, err
	}
	return total, nil
}

func (r *repository) ResetUsers(ctx context.Context) error {
	db := r.DB(ctx)
	if err := db.Model(&models.User{}).Where("score <> ?", 0).UpdateColumn("score", 0).Error; err != nil {
		return err
	}
	return db.Model(&models.User{}).
		Where("creator_tier IS NOT NULL").
		UpdateColumn("creator_tier", enums.LowestCreatorTier).Error
}

func (r *repository) ResetPartners(ctx context.Context) error {
	return r.DB(ctx).Model(&models.Partner{}).
		Where("1 = 1").
		UpdateColumns(map[string]any{"sales_count": 0, "sales_total": 0}).Error
}
