package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	err      error
	releases int
}

func (f *fakeLock) TryLock(context.Context) (func(context.Context) error, error) {
	if f.err != nil || f.held {
		return nil, f.err
	}
	f.held = true
	return func(context.Context) error {
		f.held = false
		f.releases++
		return nil
	}, nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type dailyJob struct {
	countingJob
}

func (d *dailyJob) Every() time.Duration { return 24 * time.Hour }

func newCronService(t *testing.T, lock Lock, m *metrics.CronJobMetrics, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  m,
	})
	require.NoError(t, err)
	return svc
}

func TestTickRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &countingJob{name: "poll"}
	failing := &countingJob{name: "cycle-check", err: errors.New("boom")}
	last := &countingJob{name: "retention"}
	reg := prometheus.NewRegistry()
	lock := &fakeLock{}

	svc := newCronService(t, lock, metrics.NewCronJobMetrics(reg), ok, failing, last)
	svc.tick(context.Background())

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, last.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
	series, err := testutil.GatherAndCount(reg, "cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, series)
}

func TestTickHonorsJobCadence(t *testing.T) {
	frequent := &countingJob{name: "poll"}
	daily := &dailyJob{countingJob{name: "retention"}}
	svc := newCronService(t, &fakeLock{}, nil, frequent, daily)

	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	for range 3 {
		svc.tick(context.Background())
		clock = clock.Add(5 * time.Minute)
	}
	assert.Equal(t, 3, frequent.runs)
	assert.Equal(t, 1, daily.runs)

	clock = clock.Add(24 * time.Hour)
	svc.tick(context.Background())
	assert.Equal(t, 2, daily.runs)
}

func TestTickSkipsWithoutLock(t *testing.T) {
	job := &countingJob{name: "poll"}

	newCronService(t, &fakeLock{held: true}, nil, job).tick(context.Background())
	newCronService(t, &fakeLock{err: errors.New("redis down")}, nil, job).tick(context.Background())

	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "poll"}
	svc := newCronService(t, &fakeLock{}, nil, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{})})
	assert.Error(t, err)
}
