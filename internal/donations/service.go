// Package donations moves seeds from supporters to creators.
package donations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/ledger"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/pagination"
)

var listWindow = pagination.Window{Default: 50, Max: 200}

// DonateInput is one donation request.
type DonateInput struct {
	DonorID   uuid.UUID
	CreatorID uuid.UUID
	Amount    int64
}

type Service interface {
	Donate(ctx context.Context, input DonateInput) (*models.Donation, error)
	ListForCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.Donation, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	NotifyMany(ctx context.Context, msgs []notifications.Message)
}

type service struct {
	repo     Repository
	ledger   ledger.Service
	tx       txRunner
	notifier notifier
}

func NewService(repo Repository, ledgerSvc ledger.Service, tx txRunner, n notifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("donation repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledgerSvc, tx: tx, notifier: n}, nil
}

// Donate debits the donor, credits the creator, adds the amount to the
// creator's cycle score and records the donation, all in one transaction.
func (s *service) Donate(ctx context.Context, input DonateInput) (*models.Donation, error) {
	if input.DonorID == uuid.Nil || input.CreatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "donor id and creator id are required")
	}
	if input.DonorID == input.CreatorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot donate to yourself")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var donation *models.Donation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		creator, err := repo.FindUser(ctx, input.CreatorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "creator not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load creator")
		}
		if !creator.IsCreator() || creator.Suspended {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "user cannot receive donations")
		}
		cycle, err := repo.CurrentCycle(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
		}

		donation = &models.Donation{
			ID:          uuid.New(),
			DonorID:     input.DonorID,
			CreatorID:   input.CreatorID,
			Amount:      input.Amount,
			CycleNumber: cycle,
		}
		ref := donation.ID
		if _, err := s.ledger.Debit(ctx, tx, ledger.MutationInput{
			UserID:      input.DonorID,
			Amount:      input.Amount,
			Type:        enums.SeedHistorySpent,
			Reason:      "donation",
			ReferenceID: &ref,
		}); err != nil {
			return err
		}
		if _, err := s.ledger.Credit(ctx, tx, ledger.MutationInput{
			UserID:      input.CreatorID,
			Amount:      input.Amount,
			Type:        enums.SeedHistoryEarned,
			Reason:      "donation received",
			ReferenceID: &ref,
		}); err != nil {
			return err
		}
		if err := repo.AddScore(ctx, input.CreatorID, input.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update creator score")
		}
		if err := repo.Insert(ctx, donation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record donation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyMany(ctx, []notifications.Message{{
			UserID: input.CreatorID,
			Kind:   enums.NotificationDonationReceived,
			Title:  "New donation",
			Body:   fmt.Sprintf("You received %d seeds.", input.Amount),
		}})
	}
	return donation, nil
}

func (s *service) ListForCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.Donation, error) {
	limit = listWindow.Clamp(limit)
	cycle, err := s.repo.CurrentCycle(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cycle")
	}
	rows, err := s.repo.ListByCreator(ctx, creatorID, cycle, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donations")
	}
	return rows, nil
}
