package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

// Service exposes content operations that matter to settlement and distribution.
type Service interface {
	PublishCreatorContent(ctx context.Context, ownerID uuid.UUID, title string) (ContentItem, error)
	PublishPartnerContent(ctx context.Context, partnerID, ownerID uuid.UUID, title string) (ContentItem, error)
	React(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (ContentItem, error)
	Remove(ctx context.Context, kind enums.ContentKind, id uuid.UUID) error
	CountActiveByOwner(ctx context.Context, tx *gorm.DB) (map[uuid.UUID]int64, error)
}

type service struct {
	repo Repository
}

// NewService wires the content service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) PublishCreatorContent(ctx context.Context, ownerID uuid.UUID, title string) (ContentItem, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	item := &CreatorContent{CreatorContent: models.CreatorContent{ID: uuid.New(), OwnerID: ownerID, Title: title}}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create creator content")
	}
	return item, nil
}

func (s *service) PublishPartnerContent(ctx context.Context, partnerID, ownerID uuid.UUID, title string) (ContentItem, error) {
	if partnerID == uuid.Nil || ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id and owner id are required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	item := &PartnerContent{PartnerContent: models.PartnerContent{ID: uuid.New(), PartnerID: partnerID, OwnerID: ownerID, Title: title}}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create partner content")
	}
	return item, nil
}

// React adds one reaction to a live item of either variant.
func (s *service) React(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (ContentItem, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid content kind %q", kind))
	}
	rows, err := s.repo.IncrementReactions(ctx, kind, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment reactions")
	}
	item, err := s.find(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 && item.IsRemoved() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "content has been removed")
	}
	return item, nil
}

func (s *service) Remove(ctx context.Context, kind enums.ContentKind, id uuid.UUID) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid content kind %q", kind))
	}
	rows, err := s.repo.MarkRemoved(ctx, kind, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove content")
	}
	if rows == 0 {
		if _, err := s.find(ctx, kind, id); err != nil {
			return err
		}
	}
	return nil
}

// CountActiveByOwner reads through tx when one is given.
func (s *service) CountActiveByOwner(ctx context.Context, tx *gorm.DB) (map[uuid.UUID]int64, error) {
	counts, err := s.repo.WithTx(tx).CountActiveByOwner(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active content")
	}
	return counts, nil
}

func (s *service) find(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (ContentItem, error) {
	item, err := s.repo.Find(ctx, kind, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
	}
	return item, nil
}
