package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/internal/cycles"
	"github.com/angelmondragon/seedfund-backend/internal/reconciler"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

// callLog records the order in which the cycle job reaches its collaborators.
type callLog struct {
	calls []string
}

type fakeCycles struct {
	log    *callLog
	checks []time.Time
	result *cycles.CheckResult
	err    error
}

func (f *fakeCycles) Check(ctx context.Context, now time.Time) (*cycles.CheckResult, error) {
	f.log.calls = append(f.log.calls, "check")
	f.checks = append(f.checks, now)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeDistributor struct {
	log     *callLog
	results []seedfund.Result
	err     error
}

func (f *fakeDistributor) DistributeClosed(ctx context.Context, now time.Time) ([]seedfund.Result, error) {
	f.log.calls = append(f.log.calls, "distribute")
	return f.results, f.err
}

func newTestCycleJob(t *testing.T, checker *fakeCycles, distributor *fakeDistributor, now time.Time) *cycleJob {
	t.Helper()
	jobIface, err := NewCycleJob(CycleJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Cycles: checker,
		Funds:  distributor,
	})
	if err != nil {
		t.Fatalf("NewCycleJob: %v", err)
	}
	job := jobIface.(*cycleJob)
	job.now = func() time.Time { return now }
	return job
}

func TestCycleJobDistributesBeforeCheck(t *testing.T) {
	now := time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC)
	log := &callLog{}
	checker := &fakeCycles{log: log, result: &cycles.CheckResult{
		Status: &cycles.Status{CycleNumber: 2, RemainingDays: 15},
		Reset: &cycles.ResetResult{
			PreviousCycle: 1,
			CycleNumber:   2,
			Distribution:  &seedfund.Result{FundID: uuid.New(), CycleNumber: 1, Paid: 40},
		},
	}}
	distributor := &fakeDistributor{log: log, results: []seedfund.Result{{FundID: uuid.New(), CycleNumber: 1, Paid: 25}}}

	job := newTestCycleJob(t, checker, distributor, now)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(log.calls, ","); got != "distribute,check" {
		t.Fatalf("expected distribute before check, got %s", got)
	}
	if len(checker.checks) != 1 || !checker.checks[0].Equal(now) {
		t.Fatalf("expected one check at %s, got %v", now, checker.checks)
	}
}

func TestCycleJobChecksAfterFailedSweep(t *testing.T) {
	log := &callLog{}
	checker := &fakeCycles{log: log, result: &cycles.CheckResult{Status: &cycles.Status{CycleNumber: 1}}}
	distributor := &fakeDistributor{log: log, err: errors.New("db down")}

	job := newTestCycleJob(t, checker, distributor, time.Now())
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(checker.checks) != 1 {
		t.Fatalf("expected the check to run after a failed sweep, got %d", len(checker.checks))
	}
}

func TestCycleJobReportsCheckFailure(t *testing.T) {
	log := &callLog{}
	checker := &fakeCycles{log: log, err: errors.New("db down")}
	distributor := &fakeDistributor{log: log}

	job := newTestCycleJob(t, checker, distributor, time.Now())
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakePoller struct {
	result reconciler.PollResult
	err    error
	calls  int
}

func (f *fakePoller) Poll(ctx context.Context) (reconciler.PollResult, error) {
	f.calls++
	return f.result, f.err
}

func TestPaymentPollJob(t *testing.T) {
	poller := &fakePoller{result: reconciler.PollResult{Checked: 2, Failed: 1}}
	job, err := NewPaymentPollJob(PaymentPollJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Poller: poller,
	})
	if err != nil {
		t.Fatalf("NewPaymentPollJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if poller.calls != 1 {
		t.Fatalf("expected one poll, got %d", poller.calls)
	}

	poller.err = errors.New("expire failed")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected poll error to propagate")
	}
}

func TestJobConstructorsValidate(t *testing.T) {
	if _, err := NewCycleJob(CycleJobParams{}); err == nil {
		t.Fatal("expected cycle job error")
	}
	if _, err := NewPaymentPollJob(PaymentPollJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected poll job error")
	}
}
