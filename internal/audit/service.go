// Package audit records administrative and settlement actions.
package audit

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

// Action names written to the audit log.
const (
	ActionRequestApproved     = "purchase_request.approved"
	ActionRequestRejected     = "purchase_request.rejected"
	ActionRemittanceRegister  = "remittance.registered"
	ActionRemittanceConfirmed = "remittance.confirmed"
	ActionRemittanceRejected  = "remittance.rejected"
	ActionPurchaseRejected    = "purchase.rejected"
	ActionFundDistributed     = "seed_fund.distributed"
	ActionCycleReset          = "cycle.reset"
	ActionSeasonReset         = "season.reset"
	ActionCyclePaused         = "cycle.paused"
)

// Entry is one audit record.
type Entry struct {
	ActorID *uuid.UUID
	Action  string
	Details map[string]any
	IP      string
}

// Logger writes audit entries. Failures are logged and swallowed.
type Logger interface {
	Log(ctx context.Context, entry Entry)
}

type Repository interface {
	Insert(ctx context.Context, row *models.AuditLog) error
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) Insert(ctx context.Context, row *models.AuditLog) error {
	return r.DB(ctx).Create(row).Error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService returns a best-effort audit logger. A nil repository disables auditing.
func NewService(repo Repository, logg *logger.Logger) Logger {
	return &service{repo: repo, logg: logg}
}

func (s *service) Log(ctx context.Context, entry Entry) {
	if s.repo == nil || strings.TrimSpace(entry.Action) == "" {
		return
	}
	row := &models.AuditLog{
		ID:      uuid.New(),
		ActorID: entry.ActorID,
		Action:  entry.Action,
	}
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			s.warn(ctx, entry.Action, err)
			return
		}
		row.Details = raw
	}
	if ip := strings.TrimSpace(entry.IP); ip != "" {
		row.IP = &ip
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		s.warn(ctx, entry.Action, err)
	}
}

func (s *service) warn(ctx context.Context, action string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithField(ctx, "audit_action", action), "audit write failed", err)
}
