package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

func TestRetentionJobPurgesEachTarget(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	outboxRepo := &fakeOutboxPurger{}
	notifRepo := &fakeNotificationPurger{}
	job := newRetentionJob(t,
		OutboxRetention(outboxRepo, 0),
		NotificationRetention(notifRepo, 7*24*time.Hour),
	)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultRetention); !outboxRepo.cutoff.Equal(want) {
		t.Fatalf("expected outbox cutoff %s, got %s", want, outboxRepo.cutoff)
	}
	if want := now.Add(-7 * 24 * time.Hour); !notifRepo.cutoff.Equal(want) {
		t.Fatalf("expected notification cutoff %s, got %s", want, notifRepo.cutoff)
	}
	if outboxRepo.called != 1 || notifRepo.called != 1 {
		t.Fatalf("expected each repo called once, got %d and %d", outboxRepo.called, notifRepo.called)
	}
}

func TestRetentionJobContinuesAfterFailure(t *testing.T) {
	outboxRepo := &fakeOutboxPurger{err: errors.New("boom")}
	notifRepo := &fakeNotificationPurger{}
	job := newRetentionJob(t, OutboxRetention(outboxRepo, 0), NotificationRetention(notifRepo, 0))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if notifRepo.called != 1 {
		t.Fatalf("expected notification purge to still run, got %d calls", notifRepo.called)
	}
}

func TestNewRetentionJobRequiresTargets(t *testing.T) {
	_, err := NewRetentionJob(RetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     passthroughTx{},
	})
	if err == nil {
		t.Fatal("expected error for empty targets")
	}
}

func newRetentionJob(t *testing.T, targets ...RetentionTarget) *retentionJob {
	t.Helper()
	jobIface, err := NewRetentionJob(RetentionJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		DB:      passthroughTx{},
		Targets: targets,
	})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	job, ok := jobIface.(*retentionJob)
	if !ok {
		t.Fatalf("expected retentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxPurger struct {
	cutoff time.Time
	called int
	err    error
}

func (f *fakeOutboxPurger) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type fakeNotificationPurger struct {
	cutoff time.Time
	called int
}

func (f *fakeNotificationPurger) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.cutoff = cutoff
	return 3, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
