package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

const defaultRetention = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetentionTarget removes rows of one table older than the retention window.
type RetentionTarget struct {
	Name      string
	Retention time.Duration
	Delete    func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxPurger interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetention drops relayed outbox rows.
func OutboxRetention(repo outboxPurger, retention time.Duration) RetentionTarget {
	return RetentionTarget{
		Name:      "outbox_events",
		Retention: retention,
		Delete: func(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(tx, cutoff)
		},
	}
}

// NotificationRetention drops read notifications.
func NotificationRetention(repo notificationPurger, retention time.Duration) RetentionTarget {
	return RetentionTarget{
		Name:      "notifications",
		Retention: retention,
		Delete:    repo.DeleteOlderThan,
	}
}

type RetentionJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Targets []RetentionTarget
}

func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if len(params.Targets) == 0 {
		return nil, fmt.Errorf("at least one retention target required")
	}
	targets := make([]RetentionTarget, 0, len(params.Targets))
	for _, target := range params.Targets {
		if target.Delete == nil {
			return nil, fmt.Errorf("retention target %q has no delete func", target.Name)
		}
		if target.Retention <= 0 {
			target.Retention = defaultRetention
		}
		targets = append(targets, target)
	}
	return &retentionJob{
		logg:    params.Logger,
		db:      params.DB,
		targets: targets,
		now:     time.Now,
	}, nil
}

type retentionJob struct {
	logg    *logger.Logger
	db      txRunner
	targets []RetentionTarget
	now     func() time.Time
}

func (j *retentionJob) Name() string { return "retention" }

func (j *retentionJob) Every() time.Duration { return 24 * time.Hour }

// Run purges every target in its own transaction; one failing table does not stop the rest.
func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	for _, target := range j.targets {
		cutoff := now.Add(-target.Retention)
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			rows, err := target.Delete(ctx, tx, cutoff)
			deleted = rows
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s retention: %w", target.Name, err))
			continue
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"table":        target.Name,
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		}), "retention cleanup complete")
	}
	return errs
}
