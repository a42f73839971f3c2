package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/seedfund-backend/internal/cycles"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type cycleChecker interface {
	Check(ctx context.Context, now time.Time) (*cycles.CheckResult, error)
}

type fundDistributor interface {
	DistributeClosed(ctx context.Context, now time.Time) ([]seedfund.Result, error)
}

type CycleJobParams struct {
	Logger *logger.Logger
	Cycles cycleChecker
	Funds  fundDistributor
}

// NewCycleJob pays out funds whose window has closed and then checks the cycle
// clock. A reset triggered by the check distributes the fund it closes inside
// its own transaction, before the cycle's content and donations are cleared.
func NewCycleJob(params CycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cycles == nil {
		return nil, fmt.Errorf("cycle service required")
	}
	if params.Funds == nil {
		return nil, fmt.Errorf("seed fund service required")
	}
	return &cycleJob{
		logg:   params.Logger,
		cycles: params.Cycles,
		funds:  params.Funds,
		now:    time.Now,
	}, nil
}

type cycleJob struct {
	logg   *logger.Logger
	cycles cycleChecker
	funds  fundDistributor
	now    func() time.Time
}

func (j *cycleJob) Name() string { return "cycle-check" }

func (j *cycleJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	distributed, sweepErr := j.funds.DistributeClosed(ctx, now)
	for _, res := range distributed {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"fund_id":       res.FundID.String(),
			"cycle_number":  res.CycleNumber,
			"paid":          res.Paid,
			"beneficiaries": len(res.Distributions),
		}), "seed fund distributed")
	}
	if sweepErr != nil {
		// one stuck fund must not hold back the reset
		sweepErr = fmt.Errorf("distribute closed funds: %w", sweepErr)
	}

	result, err := j.cycles.Check(ctx, now)
	if err != nil {
		return multierr.Append(sweepErr, fmt.Errorf("cycle check: %w", err))
	}
	fields := map[string]any{
		"cycle_number":   result.Status.CycleNumber,
		"remaining_days": result.Status.RemainingDays,
		"paused":         result.Status.Paused,
	}
	if result.Reset != nil {
		fields["reset_from_cycle"] = result.Reset.PreviousCycle
		fields["season_reset"] = result.Reset.SeasonReset
		if paid := result.Reset.Distribution; paid != nil {
			fields["fund_paid"] = paid.Paid
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "cycle check complete")
	return sweepErr
}
