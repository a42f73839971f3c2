package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/internal/repo"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// Repository persists both content variants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item ContentItem) error
	Find(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (ContentItem, error)
	IncrementReactions(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (int64, error)
	MarkRemoved(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (int64, error)
	CountActiveByOwner(ctx context.Context) (map[uuid.UUID]int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds the content repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, item ContentItem) error {
	switch v := item.(type) {
	case *CreatorContent:
		return r.DB(ctx).Create(&v.CreatorContent).Error
	case *PartnerContent:
		return r.DB(ctx).Create(&v.PartnerContent).Error
	default:
		return fmt.Errorf("unsupported content item %T", item)
	}
}

func (r *repository) Find(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (ContentItem, error) {
	switch kind {
	case enums.ContentKindCreator:
		var row models.CreatorContent
		if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
			return nil, err
		}
		return &CreatorContent{CreatorContent: row}, nil
	case enums.ContentKindPartner:
		var row models.PartnerContent
		if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
			return nil, err
		}
		return &PartnerContent{PartnerContent: row}, nil
	default:
		return nil, fmt.Errorf("unsupported content kind %q", kind)
	}
}

// IncrementReactions only touches live items.
func (r *repository) IncrementReactions(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (int64, error) {
	model, err := modelFor(kind)
	if err != nil {
		return 0, err
	}
	return repo.Affected(r.DB(ctx).Model(model).
		Where("id = ? AND removed = ?", id, false).
		Update("reactions", gorm.Expr("reactions + 1")))
}

func (r *repository) MarkRemoved(ctx context.Context, kind enums.ContentKind, id uuid.UUID) (int64, error) {
	model, err := modelFor(kind)
	if err != nil {
		return 0, err
	}
	return repo.Affected(r.DB(ctx).Model(model).
		Where("id = ? AND removed = ?", id, false).
		Update("removed", true))
}

type ownerCount struct {
	OwnerID uuid.UUID
	Total   int64
}

// CountActiveByOwner counts non-removed items of both variants per owner, skipping suspended owners.
func (r *repository) CountActiveByOwner(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []ownerCount
	err := r.DB(ctx).Raw(`
		SELECT c.owner_id AS owner_id, COUNT(*) AS total
		FROM (
			SELECT owner_id FROM creator_contents WHERE removed = ?
			UNION ALL
			SELECT owner_id FROM partner_contents WHERE removed = ?
		) c
		JOIN users u ON u.id = c.owner_id
		WHERE u.suspended = ?
		GROUP BY c.owner_id`, false, false, false).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.OwnerID] = row.Total
	}
	return counts, nil
}

func modelFor(kind enums.ContentKind) (any, error) {
	switch kind {
	case enums.ContentKindCreator:
		return &models.CreatorContent{}, nil
	case enums.ContentKindPartner:
		return &models.PartnerContent{}, nil
	default:
		return nil, fmt.Errorf("unsupported content kind %q", kind)
	}
}
