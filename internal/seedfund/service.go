// Package seedfund accumulates the community fund share of confirmed
// remittances and distributes closed funds to creators and spenders.
package seedfund

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/internal/split"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox/payloads"
)

const (
	maxSwapAttempts     = 3
	distributionReason  = "seed fund distribution"
	defaultCycleLength  = 15 * 24 * time.Hour
	payoutNotifyTitle   = "Seed fund payout"
	payoutNotifyMessage = "You received %d seeds from the cycle %d seed fund."
)

// Service manages the seed fund lifecycle.
type Service interface {
	AddShare(ctx context.Context, tx *gorm.DB, amount decimal.Decimal, now time.Time) (uuid.UUID, error)
	Current(ctx context.Context) (*models.SeedFund, error)
	CloseCurrent(ctx context.Context, tx *gorm.DB, now time.Time) (*models.SeedFund, error)
	Rotate(ctx context.Context, tx *gorm.DB, cycleNumber int, now time.Time) (*models.SeedFund, error)
	Distribute(ctx context.Context, fundID uuid.UUID, now time.Time) (*Result, error)
	DistributeInTx(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, now time.Time) (*Result, error)
	DistributeClosed(ctx context.Context, now time.Time) ([]Result, error)
	Announce(ctx context.Context, result *Result)
	Distributions(ctx context.Context, fundID uuid.UUID) ([]models.FundDistribution, error)
}

// Result summarizes one completed distribution.
type Result struct {
	FundID        uuid.UUID                 `json:"fund_id"`
	CycleNumber   int                       `json:"cycle_number"`
	Total         decimal.Decimal           `json:"total"`
	CreatorPool   int64                     `json:"creator_pool"`
	SpenderPool   int64                     `json:"spender_pool"`
	Paid          int64                     `json:"paid"`
	Distributions []models.FundDistribution `json:"distributions"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ownerCounter interface {
	CountActiveByOwner(ctx context.Context, tx *gorm.DB) (map[uuid.UUID]int64, error)
}

type eventEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	NotifyMany(ctx context.Context, msgs []notifications.Message)
}

// ServiceParams wires the distributor.
type ServiceParams struct {
	Repository  Repository
	Ledger      ledger.Service
	Content     ownerCounter
	Outbox      eventEmitter
	Notifier    notifier
	DB          txRunner
	Policy      split.Policy
	CycleLength time.Duration
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	ledger      ledger.Service
	content     ownerCounter
	outbox      eventEmitter
	notifier    notifier
	tx          txRunner
	policy      split.Policy
	cycleLength time.Duration
	logg        *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("seed fund repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Content == nil {
		return nil, fmt.Errorf("content counter required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if err := params.Policy.Validate(); err != nil {
		return nil, err
	}
	cycleLength := params.CycleLength
	if cycleLength <= 0 {
		cycleLength = defaultCycleLength
	}
	return &service{
		repo:        params.Repository,
		ledger:      params.Ledger,
		content:     params.Content,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		tx:          params.DB,
		policy:      params.Policy,
		cycleLength: cycleLength,
		logg:        params.Logger,
	}, nil
}

// AddShare adds amount to the fund referenced by the cycle config, opening a
// fund for the running cycle when none is open.
func (s *service) AddShare(ctx context.Context, tx *gorm.DB, amount decimal.Decimal, now time.Time) (uuid.UUID, error) {
	if amount.IsNegative() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "fund share must not be negative")
	}
	var fundID uuid.UUID
	err := s.inTx(ctx, tx, func(repo Repository) error {
		for attempt := 0; attempt < maxSwapAttempts; attempt++ {
			cfg, err := repo.CycleConfig(ctx)
			if err != nil {
				return loadConfigErr(err)
			}
			if cfg.CurrentFundID != nil {
				rows, err := repo.AddToFund(ctx, *cfg.CurrentFundID, amount)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add fund share")
				}
				if rows == 1 {
					fundID = *cfg.CurrentFundID
					return nil
				}
			}

			fund, swapped, err := s.openFund(ctx, repo, cfg, cfg.CycleStart, cfg.CycleNumber)
			if err != nil {
				return err
			}
			if !swapped {
				continue
			}
			if _, err := repo.AddToFund(ctx, fund.ID, amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add fund share")
			}
			fundID = fund.ID
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "current seed fund changed concurrently")
	})
	if err != nil {
		return uuid.Nil, err
	}
	return fundID, nil
}

func (s *service) Current(ctx context.Context) (*models.SeedFund, error) {
	cfg, err := s.repo.CycleConfig(ctx)
	if err != nil {
		return nil, loadConfigErr(err)
	}
	if cfg.CurrentFundID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open seed fund")
	}
	return s.findFund(ctx, s.repo, *cfg.CurrentFundID)
}

// CloseCurrent ends the current fund's window at now. Distributed or missing funds are left alone.
func (s *service) CloseCurrent(ctx context.Context, tx *gorm.DB, now time.Time) (*models.SeedFund, error) {
	var fund *models.SeedFund
	err := s.inTx(ctx, tx, func(repo Repository) error {
		cfg, err := repo.CycleConfig(ctx)
		if err != nil {
			return loadConfigErr(err)
		}
		if cfg.CurrentFundID == nil {
			return nil
		}
		if _, err := repo.CloseWindow(ctx, *cfg.CurrentFundID, now.UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close seed fund window")
		}
		fund, err = s.findFund(ctx, repo, *cfg.CurrentFundID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fund, nil
}

// Rotate opens the fund for a new cycle starting at now and makes it current.
func (s *service) Rotate(ctx context.Context, tx *gorm.DB, cycleNumber int, now time.Time) (*models.SeedFund, error) {
	var fund *models.SeedFund
	err := s.inTx(ctx, tx, func(repo Repository) error {
		cfg, err := repo.CycleConfig(ctx)
		if err != nil {
			return loadConfigErr(err)
		}
		opened, swapped, err := s.openFund(ctx, repo, cfg, now, cycleNumber)
		if err != nil {
			return err
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeConflict, "current seed fund changed concurrently")
		}
		fund = opened
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fund, nil
}

// openFund inserts a fund for [start, start+cycleLength) and swaps it in as
// current. When another writer swapped first the new row is removed and
// swapped is false.
func (s *service) openFund(ctx context.Context, repo Repository, cfg *models.CycleConfig, start time.Time, cycleNumber int) (*models.SeedFund, bool, error) {
	start = start.UTC()
	fund := &models.SeedFund{
		ID:          uuid.New(),
		CycleNumber: cycleNumber,
		WindowStart: start,
		WindowEnd:   start.Add(s.cycleLength),
		Total:       decimal.Zero,
	}
	if err := repo.CreateFund(ctx, fund); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create seed fund")
	}
	rows, err := repo.SwapCurrentFund(ctx, cfg.CurrentFundID, fund.ID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set current seed fund")
	}
	if rows == 0 {
		if err := repo.DeleteFund(ctx, fund.ID); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard seed fund")
		}
		return nil, false, nil
	}
	return fund, true, nil
}

// Distribute pays a closed fund out to creators by active content count and to
// spenders by in-window spend. Pools without any weight stay on the fund.
func (s *service) Distribute(ctx context.Context, fundID uuid.UUID, now time.Time) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.distribute(ctx, tx, fundID, now.UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Announce(ctx, result)
	return result, nil
}

// DistributeInTx runs the distribution inside the caller's transaction so it
// sees the cycle's content and donations before they are cleared. The caller
// announces the result once the transaction commits.
func (s *service) DistributeInTx(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, now time.Time) (*Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	return s.distribute(ctx, tx, fundID, now.UTC())
}

func (s *service) distribute(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, now time.Time) (*Result, error) {
	repo := s.repo.WithTx(tx)
	fund, err := repo.LockFund(ctx, fundID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seed fund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock seed fund")
	}
	if fund.Distributed {
		return nil, alreadyDistributed(fundID)
	}
	if !fund.IsClosed(now) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "seed fund window is still open").WithDetails(map[string]any{
			"fund_id":    fundID.String(),
			"window_end": fund.WindowEnd,
		})
	}

	counts, err := s.content.CountActiveByOwner(ctx, tx)
	if err != nil {
		return nil, err
	}
	spend, err := repo.SpendByUser(ctx, fund.WindowStart, fund.WindowEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum spender activity")
	}

	result := &Result{FundID: fundID, CycleNumber: fund.CycleNumber, Total: fund.Total}
	result.CreatorPool, result.SpenderPool = Pools(fund.Total, s.policy.CreatorPoolFraction)

	rows := make([]models.FundDistribution, 0)
	rows = appendShares(rows, fundID, enums.BeneficiaryCreator, Allocate(result.CreatorPool, countWeights(counts)), now)
	rows = appendShares(rows, fundID, enums.BeneficiarySpender, Allocate(result.SpenderPool, spendWeights(spend)), now)

	if err := repo.InsertDistributions(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert fund distributions")
	}
	for _, row := range rows {
		ref := fundID
		if _, err := s.ledger.Credit(ctx, tx, ledger.MutationInput{
			UserID:      row.BeneficiaryID,
			Amount:      row.Value,
			Type:        enums.SeedHistoryEarned,
			Reason:      distributionReason,
			ReferenceID: &ref,
		}); err != nil {
			return nil, err
		}
		result.Paid += row.Value
	}

	flipped, err := repo.MarkDistributed(ctx, fundID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark seed fund distributed")
	}
	if flipped == 0 {
		return nil, alreadyDistributed(fundID)
	}
	result.Distributions = rows

	err = s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFundDistributed,
		AggregateType: enums.AggregateSeedFund,
		AggregateID:   fundID,
		OccurredAt:    now,
		Data: payloads.FundDistributedEvent{
			FundID:        fundID,
			CycleNumber:   fund.CycleNumber,
			Total:         fund.Total,
			CreatorPool:   result.CreatorPool,
			SpenderPool:   result.SpenderPool,
			Beneficiaries: len(rows),
			DistributedAt: now,
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Announce notifies every beneficiary of a committed distribution.
func (s *service) Announce(ctx context.Context, result *Result) {
	if result == nil {
		return
	}
	s.notifyBeneficiaries(ctx, result.CycleNumber, result.Distributions)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"fund_id":       result.FundID.String(),
			"total":         result.Total.String(),
			"paid":          result.Paid,
			"beneficiaries": len(result.Distributions),
		})
		s.logg.Info(logCtx, "seed fund distributed")
	}
}

// Distributions lists the payout rows of a fund.
func (s *service) Distributions(ctx context.Context, fundID uuid.UUID) ([]models.FundDistribution, error) {
	if _, err := s.findFund(ctx, s.repo, fundID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListDistributions(ctx, fundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fund distributions")
	}
	return rows, nil
}

// DistributeClosed distributes every closed fund that has not been paid out yet.
func (s *service) DistributeClosed(ctx context.Context, now time.Time) ([]Result, error) {
	funds, err := s.repo.ListClosedUndistributed(ctx, now.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list closed seed funds")
	}
	var (
		results []Result
		errs    error
	)
	for _, fund := range funds {
		res, err := s.Distribute(ctx, fund.ID, now)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyDistributed) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("fund %s: %w", fund.ID, err))
			continue
		}
		results = append(results, *res)
	}
	return results, errs
}

func (s *service) notifyBeneficiaries(ctx context.Context, cycleNumber int, rows []models.FundDistribution) {
	if s.notifier == nil || len(rows) == 0 {
		return
	}
	msgs := make([]notifications.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, notifications.Message{
			UserID: row.BeneficiaryID,
			Kind:   enums.NotificationFundDistribution,
			Title:  payoutNotifyTitle,
			Body:   fmt.Sprintf(payoutNotifyMessage, row.Value, cycleNumber),
		})
	}
	s.notifier.NotifyMany(ctx, msgs)
}

func (s *service) findFund(ctx context.Context, repo Repository, id uuid.UUID) (*models.SeedFund, error) {
	fund, err := repo.FindFund(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seed fund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seed fund")
	}
	return fund, nil
}

func (s *service) inTx(ctx context.Context, tx *gorm.DB, fn func(repo Repository) error) error {
	if tx != nil {
		return fn(s.repo.WithTx(tx))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

func appendShares(rows []models.FundDistribution, fundID uuid.UUID, kind enums.BeneficiaryType, shares []Share, now time.Time) []models.FundDistribution {
	for _, share := range shares {
		rows = append(rows, models.FundDistribution{
			ID:              uuid.New(),
			FundID:          fundID,
			BeneficiaryID:   share.ID,
			BeneficiaryType: kind,
			Value:           share.Value,
			CreatedAt:       now,
		})
	}
	return rows
}

func countWeights(counts map[uuid.UUID]int64) []Weight {
	out := make([]Weight, 0, len(counts))
	for id, n := range counts {
		out = append(out, Weight{ID: id, Value: decimal.NewFromInt(n)})
	}
	return out
}

func spendWeights(spend map[uuid.UUID]decimal.Decimal) []Weight {
	out := make([]Weight, 0, len(spend))
	for id, v := range spend {
		out = append(out, Weight{ID: id, Value: v})
	}
	return out
}

func alreadyDistributed(fundID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyDistributed, "seed fund already distributed").WithDetails(map[string]any{
		"fund_id": fundID.String(),
	})
}

func loadConfigErr(err error) error {
	if isNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cycle config not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle config")
}
