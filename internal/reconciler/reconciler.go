// Package reconciler applies external payment outcomes to remittances, from
// provider webhooks and from a periodic status poll.
package reconciler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/seedfund-backend/internal/payments"
	"github.com/angelmondragon/seedfund-backend/internal/settlement"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
	expiredReason      = "payment window expired"
)

// PaymentEvent is a provider notification reduced to what settlement needs.
type PaymentEvent struct {
	Provider          enums.PaymentProvider
	ExternalPaymentID string
	Status            enums.PaymentStatus
}

// PollResult summarizes one polling pass.
type PollResult struct {
	Checked   int
	Confirmed int
	Rejected  int
	Expired   int
	Failed    int
}

type settlementService interface {
	FindRemittanceByExternalID(ctx context.Context, externalID string) (*models.Remittance, error)
	ListAwaitingPayment(ctx context.Context, now time.Time, expired bool, limit int) ([]models.Remittance, error)
	Confirm(ctx context.Context, remittanceID uuid.UUID, actor settlement.Actor) (*settlement.Confirmation, error)
	RejectRemittance(ctx context.Context, remittanceID uuid.UUID, actor settlement.Actor, reason string) error
}

type providerLookup interface {
	Get(name enums.PaymentProvider) (payments.Provider, error)
}

// Params wires the reconciler.
type Params struct {
	Settlement  settlementService
	Providers   providerLookup
	Logger      *logger.Logger
	BatchSize   int
	Concurrency int
}

// Reconciler converges remittance state with payment provider state.
type Reconciler struct {
	settlement  settlementService
	providers   providerLookup
	logg        *logger.Logger
	batchSize   int
	concurrency int
	now         func() time.Time
}

func New(params Params) (*Reconciler, error) {
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if params.Providers == nil {
		return nil, fmt.Errorf("payment providers required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Reconciler{
		settlement:  params.Settlement,
		providers:   params.Providers,
		logg:        params.Logger,
		batchSize:   batch,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

// OnPaymentEvent applies one provider notification. Unknown payment ids and
// pending statuses are ignored; replays of settled outcomes are no-ops.
func (r *Reconciler) OnPaymentEvent(ctx context.Context, event PaymentEvent) error {
	externalID := strings.TrimSpace(event.ExternalPaymentID)
	if externalID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external payment id required")
	}
	if !event.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", event.Status))
	}
	ctx = r.withFields(ctx, map[string]any{
		"external_payment_id": externalID,
		"payment_status":      string(event.Status),
		"provider":            string(event.Provider),
	})

	remittance, err := r.settlement.FindRemittanceByExternalID(ctx, externalID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			r.warn(ctx, "payment event for unknown remittance ignored")
			return nil
		}
		return err
	}
	return r.apply(ctx, remittance, event.Status, "webhook")
}

func (r *Reconciler) apply(ctx context.Context, remittance *models.Remittance, status enums.PaymentStatus, source string) error {
	actor := settlement.SystemActor(source)
	var err error
	switch status {
	case enums.PaymentStatusApproved:
		_, err = r.settlement.Confirm(ctx, remittance.ID, actor)
	case enums.PaymentStatusRejected:
		err = r.settlement.RejectRemittance(ctx, remittance.ID, actor, "payment rejected by provider")
	default:
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
		return nil
	}
	return err
}

// Poll checks every remittance still inside its payment window against its
// provider and rejects those whose window has lapsed.
func (r *Reconciler) Poll(ctx context.Context) (PollResult, error) {
	now := r.now().UTC()
	var (
		result                               PollResult
		confirmed, rejected, failed, checked atomic.Int64
	)

	open, err := r.settlement.ListAwaitingPayment(ctx, now, false, r.batchSize)
	if err != nil {
		return result, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range open {
		remittance := open[i]
		g.Go(func() error {
			rctx := r.withFields(gctx, map[string]any{"remittance_id": remittance.ID.String()})
			status, err := r.status(rctx, &remittance)
			if err != nil {
				failed.Add(1)
				r.logError(rctx, "payment status check failed", err)
				return nil
			}
			checked.Add(1)
			if err := r.apply(rctx, &remittance, status, "poller"); err != nil {
				failed.Add(1)
				r.logError(rctx, "apply payment status failed", err)
				return nil
			}
			switch status {
			case enums.PaymentStatusApproved:
				confirmed.Add(1)
			case enums.PaymentStatusRejected:
				rejected.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	expired, err := r.settlement.ListAwaitingPayment(ctx, now, true, r.batchSize)
	if err != nil {
		return r.collect(result, &checked, &confirmed, &rejected, &failed), err
	}
	var expireErr error
	for _, remittance := range expired {
		err := r.settlement.RejectRemittance(ctx, remittance.ID, settlement.SystemActor("poller"), expiredReason)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
			expireErr = multierr.Append(expireErr, fmt.Errorf("expire remittance %s: %w", remittance.ID, err))
			continue
		}
		result.Expired++
	}

	result = r.collect(result, &checked, &confirmed, &rejected, &failed)
	if r.logg != nil && (result.Checked > 0 || result.Expired > 0 || result.Failed > 0) {
		r.logg.Info(r.withFields(ctx, map[string]any{
			"checked":   result.Checked,
			"confirmed": result.Confirmed,
			"rejected":  result.Rejected,
			"expired":   result.Expired,
			"failed":    result.Failed,
		}), "payment poll completed")
	}
	return result, expireErr
}

func (r *Reconciler) collect(result PollResult, checked, confirmed, rejected, failed *atomic.Int64) PollResult {
	result.Checked = int(checked.Load())
	result.Confirmed = int(confirmed.Load())
	result.Rejected = int(rejected.Load())
	result.Failed = int(failed.Load())
	return result
}

func (r *Reconciler) status(ctx context.Context, remittance *models.Remittance) (enums.PaymentStatus, error) {
	if remittance.Provider == nil || remittance.ExternalPaymentID == nil {
		return "", fmt.Errorf("remittance %s has no payment reference", remittance.ID)
	}
	provider, err := r.providers.Get(*remittance.Provider)
	if err != nil {
		return "", err
	}
	return provider.GetStatus(ctx, *remittance.ExternalPaymentID)
}

func (r *Reconciler) withFields(ctx context.Context, fields map[string]any) context.Context {
	if r.logg == nil {
		return ctx
	}
	return r.logg.WithFields(ctx, fields)
}

func (r *Reconciler) warn(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Warn(ctx, msg)
	}
}

func (r *Reconciler) logError(ctx context.Context, msg string, err error) {
	if r.logg != nil {
		r.logg.Error(ctx, msg, err)
	}
}
