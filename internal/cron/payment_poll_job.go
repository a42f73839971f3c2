package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/seedfund-backend/internal/reconciler"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

type paymentPoller interface {
	Poll(ctx context.Context) (reconciler.PollResult, error)
}

type PaymentPollJobParams struct {
	Logger *logger.Logger
	Poller paymentPoller
}

func NewPaymentPollJob(params PaymentPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Poller == nil {
		return nil, fmt.Errorf("payment poller required")
	}
	return &paymentPollJob{logg: params.Logger, poller: params.Poller}, nil
}

type paymentPollJob struct {
	logg   *logger.Logger
	poller paymentPoller
}

func (j *paymentPollJob) Name() string { return "payment-poll" }

func (j *paymentPollJob) Run(ctx context.Context) error {
	result, err := j.poller.Poll(ctx)
	if err != nil {
		return fmt.Errorf("payment poll: %w", err)
	}
	if result.Failed > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "failed", result.Failed), "some payment checks failed")
	}
	return nil
}
