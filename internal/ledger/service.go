// Package ledger owns every seed balance mutation and the partner debt counters.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/pagination"
)

var historyWindow = pagination.Window{Default: 50, Max: 200}

// Service defines seed balance and partner debt operations. Methods taking tx
// join the caller's transaction; a nil tx runs in a transaction of its own.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SeedHistoryEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SeedHistoryEntry, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.SeedHistoryEntry, error)
	IncreasePartnerDebt(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal) error
	DecreasePartnerDebt(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal) error
	RecordPartnerSale(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// MutationInput describes one seed balance change.
type MutationInput struct {
	UserID      uuid.UUID
	Amount      int64
	Type        enums.SeedHistoryType
	Reason      string
	ReferenceID *uuid.UUID
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SeedHistoryEntry, error) {
	if input.Type == "" {
		input.Type = enums.SeedHistoryEarned
	}
	if err := validateMutation(input); err != nil {
		return nil, err
	}
	if !input.Type.IsCredit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("history type %q cannot credit a balance", input.Type))
	}

	var entry *models.SeedHistoryEntry
	err := s.inTx(ctx, tx, func(repo Repository) error {
		rows, err := repo.IncrementBalance(ctx, input.UserID, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit seed balance")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		entry, err = s.appendHistory(ctx, repo, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input MutationInput) (*models.SeedHistoryEntry, error) {
	if input.Type == "" {
		input.Type = enums.SeedHistorySpent
	}
	if err := validateMutation(input); err != nil {
		return nil, err
	}
	if input.Type.IsCredit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("history type %q cannot debit a balance", input.Type))
	}

	var entry *models.SeedHistoryEntry
	err := s.inTx(ctx, tx, func(repo Repository) error {
		rows, err := repo.DecrementBalanceIfEnough(ctx, input.UserID, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit seed balance")
		}
		if rows == 0 {
			balance, err := repo.Balance(ctx, input.UserID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seed balance")
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient seed balance").WithDetails(map[string]any{
				"balance":   balance,
				"requested": input.Amount,
			})
		}
		entry, err = s.appendHistory(ctx, repo, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) appendHistory(ctx context.Context, repo Repository, input MutationInput) (*models.SeedHistoryEntry, error) {
	balance, err := repo.Balance(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read balance after mutation")
	}
	entry := &models.SeedHistoryEntry{
		ID:           uuid.New(),
		UserID:       input.UserID,
		Type:         input.Type,
		Amount:       input.Amount,
		BalanceAfter: balance,
		Reason:       input.Reason,
		ReferenceID:  input.ReferenceID,
	}
	if err := repo.InsertHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert seed history")
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	balance, err := s.repo.Balance(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seed balance")
	}
	return balance, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.SeedHistoryEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	entries, err := s.repo.ListHistory(ctx, userID, historyWindow.Clamp(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seed history")
	}
	return entries, nil
}

func (s *service) IncreasePartnerDebt(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal) error {
	return s.partnerUpdate(ctx, tx, partnerID, amount, "increase partner debt", Repository.IncreasePartnerDebt)
}

func (s *service) DecreasePartnerDebt(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal) error {
	return s.partnerUpdate(ctx, tx, partnerID, amount, "decrease partner debt", Repository.DecreasePartnerDebt)
}

func (s *service) RecordPartnerSale(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal) error {
	return s.partnerUpdate(ctx, tx, partnerID, amount, "record partner sale", Repository.RecordPartnerSale)
}

type partnerMutation func(Repository, context.Context, uuid.UUID, decimal.Decimal) (int64, error)

func (s *service) partnerUpdate(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, amount decimal.Decimal, op string, fn partnerMutation) error {
	if partnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "partner id is required")
	}
	if amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	return s.inTx(ctx, tx, func(repo Repository) error {
		rows, err := fn(repo, ctx, partnerID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return nil
	})
}

func (s *service) inTx(ctx context.Context, tx *gorm.DB, fn func(repo Repository) error) error {
	if tx != nil {
		return fn(s.repo.WithTx(tx))
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

func validateMutation(input MutationInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid history type %q", input.Type))
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return nil
}
