// Package cycles runs the cycle and season clock: it reports where the clock
// stands and performs the archive-then-clear resets when a period ends.
package cycles

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/audit"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/internal/seedfund"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox/payloads"
)

const (
	defaultCycleLength  = 15 * 24 * time.Hour
	defaultSeasonMonths = 3
	notifyTopRanks      = 10
)

// ScoreFunc ranks a user for the leaderboard snapshot taken before a reset.
type ScoreFunc func(user models.User) int64

// DefaultScore ranks by accumulated score.
func DefaultScore(user models.User) int64 { return user.Score }

// Status is where the clock stands at a given instant.
type Status struct {
	CycleNumber   int        `json:"cycle_number"`
	SeasonNumber  int        `json:"season_number"`
	CycleStart    time.Time  `json:"cycle_start"`
	CycleEnd      time.Time  `json:"cycle_end"`
	SeasonStart   time.Time  `json:"season_start"`
	SeasonEnd     time.Time  `json:"season_end"`
	RemainingDays int        `json:"remaining_days"`
	Paused        bool       `json:"paused"`
	CurrentFundID *uuid.UUID `json:"current_fund_id,omitempty"`
}

// ResetResult describes one completed reset.
type ResetResult struct {
	PreviousCycle int              `json:"previous_cycle"`
	CycleNumber   int              `json:"cycle_number"`
	SeasonNumber  int              `json:"season_number"`
	SeasonReset   bool             `json:"season_reset"`
	Ranked        int              `json:"ranked"`
	ArchivedRows  int              `json:"archived_rows"`
	ClosedFundID  uuid.UUID        `json:"closed_fund_id"`
	OpenedFundID  uuid.UUID        `json:"opened_fund_id"`
	ResetAt       time.Time        `json:"reset_at"`
	Distribution  *seedfund.Result `json:"distribution,omitempty"`
}

// CheckResult is the outcome of one scheduled check.
type CheckResult struct {
	Status *Status      `json:"status"`
	Reset  *ResetResult `json:"reset,omitempty"`
}

type Service interface {
	Status(ctx context.Context, now time.Time) (*Status, error)
	Check(ctx context.Context, now time.Time) (*CheckResult, error)
	ResetCycle(ctx context.Context, now time.Time, actorID *uuid.UUID) (*ResetResult, error)
	ResetSeason(ctx context.Context, now time.Time, actorID *uuid.UUID) (*ResetResult, error)
	SetPaused(ctx context.Context, now time.Time, paused bool, actorID *uuid.UUID) (*Status, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type fundRotator interface {
	CloseCurrent(ctx context.Context, tx *gorm.DB, now time.Time) (*models.SeedFund, error)
	DistributeInTx(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, now time.Time) (*seedfund.Result, error)
	Announce(ctx context.Context, result *seedfund.Result)
	Rotate(ctx context.Context, tx *gorm.DB, cycleNumber int, now time.Time) (*models.SeedFund, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	NotifyMany(ctx context.Context, msgs []notifications.Message)
}

// ServiceParams wires the cycle controller.
type ServiceParams struct {
	Repository   Repository
	Funds        fundRotator
	Outbox       eventEmitter
	Notifier     notifier
	Audit        audit.Logger
	DB           txRunner
	Score        ScoreFunc
	CycleLength  time.Duration
	SeasonMonths int
	Logger       *logger.Logger
}

type service struct {
	repo         Repository
	funds        fundRotator
	outbox       eventEmitter
	notifier     notifier
	audit        audit.Logger
	tx           txRunner
	score        ScoreFunc
	cycleLength  time.Duration
	seasonMonths int
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cycle repository required")
	}
	if params.Funds == nil {
		return nil, fmt.Errorf("seed fund service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	score := params.Score
	if score == nil {
		score = DefaultScore
	}
	cycleLength := params.CycleLength
	if cycleLength <= 0 {
		cycleLength = defaultCycleLength
	}
	seasonMonths := params.SeasonMonths
	if seasonMonths <= 0 {
		seasonMonths = defaultSeasonMonths
	}
	auditLog := params.Audit
	if auditLog == nil {
		auditLog = audit.NewService(nil, params.Logger)
	}
	return &service{
		repo:         params.Repository,
		funds:        params.Funds,
		outbox:       params.Outbox,
		notifier:     params.Notifier,
		audit:        auditLog,
		tx:           params.DB,
		score:        score,
		cycleLength:  cycleLength,
		seasonMonths: seasonMonths,
		logg:         params.Logger,
	}, nil
}

func (s *service) Status(ctx context.Context, now time.Time) (*Status, error) {
	cfg, err := s.repo.Config(ctx)
	if err != nil {
		return nil, configErr(err)
	}
	return s.status(cfg, now.UTC()), nil
}

func (s *service) status(cfg *models.CycleConfig, now time.Time) *Status {
	cycleStart := cfg.CycleStart.UTC()
	seasonStart := cfg.SeasonStart.UTC()
	cycleEnd := cycleStart.Add(s.cycleLength)
	return &Status{
		CycleNumber:   cfg.CycleNumber,
		SeasonNumber:  cfg.SeasonNumber,
		CycleStart:    cycleStart,
		CycleEnd:      cycleEnd,
		SeasonStart:   seasonStart,
		SeasonEnd:     seasonStart.AddDate(0, s.seasonMonths, 0),
		RemainingDays: remainingDays(cycleEnd, now),
		Paused:        cfg.Paused,
		CurrentFundID: cfg.CurrentFundID,
	}
}

// remainingDays rounds up to whole days and never goes below zero.
func remainingDays(end, now time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// Check resets the cycle (and the season, when it has also ended) once the
// cycle end has passed. A paused clock is only reported.
func (s *service) Check(ctx context.Context, now time.Time) (*CheckResult, error) {
	now = now.UTC()
	status, err := s.Status(ctx, now)
	if err != nil {
		return nil, err
	}
	if status.Paused || now.Before(status.CycleEnd) {
		return &CheckResult{Status: status}, nil
	}

	season := !now.Before(status.SeasonEnd)
	reset, err := s.reset(ctx, now, status.CycleNumber, season, nil)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
			status, err = s.Status(ctx, now)
			if err != nil {
				return nil, err
			}
			return &CheckResult{Status: status}, nil
		}
		return nil, err
	}
	status, err = s.Status(ctx, now)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Status: status, Reset: reset}, nil
}

func (s *service) ResetCycle(ctx context.Context, now time.Time, actorID *uuid.UUID) (*ResetResult, error) {
	return s.manualReset(ctx, now, false, actorID)
}

func (s *service) ResetSeason(ctx context.Context, now time.Time, actorID *uuid.UUID) (*ResetResult, error) {
	return s.manualReset(ctx, now, true, actorID)
}

func (s *service) manualReset(ctx context.Context, now time.Time, season bool, actorID *uuid.UUID) (*ResetResult, error) {
	cfg, err := s.repo.Config(ctx)
	if err != nil {
		return nil, configErr(err)
	}
	return s.reset(ctx, now.UTC(), cfg.CycleNumber, season, actorID)
}

// reset pays out the closing fund, archives and clears the closing cycle,
// rotates the fund and advances the clock as one transaction. The payout runs
// before the clear because its weights come from the cycle's content and
// donations. It claims the cycle with a compare-and-set on cycle_number, so a
// second caller for the same cycle gets ALREADY_PROCESSED.
func (s *service) reset(ctx context.Context, now time.Time, expectedCycle int, season bool, actorID *uuid.UUID) (*ResetResult, error) {
	var (
		result      *ResetResult
		ranking     []models.CycleRanking
		distributed *seedfund.Result
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cfg, err := repo.LockConfig(ctx)
		if err != nil {
			return configErr(err)
		}
		if cfg.CycleNumber != expectedCycle {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, fmt.Sprintf("cycle %d already reset", expectedCycle))
		}

		ranking, err = s.snapshotRanking(ctx, repo, cfg.CycleNumber)
		if err != nil {
			return err
		}
		closed, err := s.funds.CloseCurrent(ctx, tx, now)
		if err != nil {
			return err
		}
		if closed != nil && !closed.Distributed {
			distributed, err = s.funds.DistributeInTx(ctx, tx, closed.ID, now)
			if err != nil {
				return err
			}
		}

		archived, err := repo.ArchiveAndClear(ctx, archiveScope{
			CycleNumber:  cfg.CycleNumber,
			SeasonNumber: cfg.SeasonNumber,
			Cutoff:       now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive cycle data")
		}
		if err := repo.ResetUsers(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset users")
		}
		if err := repo.ResetPartners(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset partners")
		}

		nextCycle := cfg.CycleNumber + 1
		opened, err := s.funds.Rotate(ctx, tx, nextCycle, now)
		if err != nil {
			return err
		}

		rows, err := repo.AdvanceCycle(ctx, cfg.CycleNumber, now, season)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance cycle")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, fmt.Sprintf("cycle %d already reset", expectedCycle))
		}

		seasonNumber := cfg.SeasonNumber
		if season {
			seasonNumber++
		}
		result = &ResetResult{
			PreviousCycle: cfg.CycleNumber,
			CycleNumber:   nextCycle,
			SeasonNumber:  seasonNumber,
			SeasonReset:   season,
			Ranked:        len(ranking),
			ArchivedRows:  archived,
			OpenedFundID:  opened.ID,
			ResetAt:       now,
			Distribution:  distributed,
		}
		if closed != nil {
			result.ClosedFundID = closed.ID
		}

		eventType := enums.EventCycleReset
		if season {
			eventType = enums.EventSeasonReset
		}
		var actor *outbox.ActorRef
		if actorID != nil {
			actor = &outbox.ActorRef{UserID: *actorID, Role: string(enums.RoleAdmin)}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateCycle,
			AggregateID:   opened.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.CycleResetEvent{
				PreviousCycle: result.PreviousCycle,
				CycleNumber:   result.CycleNumber,
				SeasonNumber:  result.SeasonNumber,
				SeasonReset:   season,
				ArchivedRows:  archived,
				ClosedFundID:  result.ClosedFundID,
				OpenedFundID:  result.OpenedFundID,
				ResetAt:       now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	action := audit.ActionCycleReset
	if season {
		action = audit.ActionSeasonReset
	}
	s.audit.Log(ctx, audit.Entry{
		ActorID: actorID,
		Action:  action,
		Details: map[string]any{
			"previous_cycle": result.PreviousCycle,
			"cycle_number":   result.CycleNumber,
			"season_number":  result.SeasonNumber,
			"archived_rows":  result.ArchivedRows,
		},
	})
	s.funds.Announce(ctx, distributed)
	s.notifyRanking(ctx, ranking)
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"previous_cycle": result.PreviousCycle,
			"cycle_number":   result.CycleNumber,
			"season_reset":   season,
			"archived_rows":  result.ArchivedRows,
		}), "cycle reset completed")
	}
	return result, nil
}

// snapshotRanking scores every ranked user and stores the leaderboard of the closing cycle.
func (s *service) snapshotRanking(ctx context.Context, repo Repository, cycleNumber int) ([]models.CycleRanking, error) {
	users, err := repo.RankedUsers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranked users")
	}
	type scored struct {
		user  models.User
		score int64
	}
	list := make([]scored, 0, len(users))
	for _, u := range users {
		if sc := s.score(u); sc > 0 {
			list = append(list, scored{user: u, score: sc})
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].user.ID.String() < list[j].user.ID.String()
	})
	rows := make([]models.CycleRanking, 0, len(list))
	for i, entry := range list {
		rows = append(rows, models.CycleRanking{
			ID:          uuid.New(),
			CycleNumber: cycleNumber,
			UserID:      entry.user.ID,
			Position:    i + 1,
			Score:       entry.score,
		})
	}
	if err := repo.InsertRankings(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store ranking snapshot")
	}
	return rows, nil
}

func (s *service) notifyRanking(ctx context.Context, ranking []models.CycleRanking) {
	if s.notifier == nil || len(ranking) == 0 {
		return
	}
	top := ranking
	if len(top) > notifyTopRanks {
		top = top[:notifyTopRanks]
	}
	msgs := make([]notifications.Message, 0, len(top))
	for _, row := range top {
		msgs = append(msgs, notifications.Message{
			UserID: row.UserID,
			Kind:   enums.NotificationCycleReset,
			Title:  "Cycle finished",
			Body:   fmt.Sprintf("You finished cycle %d in position %d with %d points.", row.CycleNumber, row.Position, row.Score),
		})
	}
	s.notifier.NotifyMany(ctx, msgs)
}

func (s *service) SetPaused(ctx context.Context, now time.Time, paused bool, actorID *uuid.UUID) (*Status, error) {
	now = now.UTC()
	rows, err := s.repo.SetPaused(ctx, paused, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pause flag")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cycle config not found")
	}
	s.audit.Log(ctx, audit.Entry{
		ActorID: actorID,
		Action:  audit.ActionCyclePaused,
		Details: map[string]any{"paused": paused},
	})
	return s.Status(ctx, now)
}

func configErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cycle config not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle config")
}
