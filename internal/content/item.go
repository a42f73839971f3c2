// Package content exposes creator and partner posts through one ContentItem
// abstraction so reaction and counting rules are shared.
package content

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// ContentItem is the behaviour shared by every content variant.
type ContentItem interface {
	ItemID() uuid.UUID
	Owner() uuid.UUID
	Kind() enums.ContentKind
	IsRemoved() bool
	ReactionCount() int64
}

// CreatorContent wraps a creator post.
type CreatorContent struct {
	models.CreatorContent
}

func (c CreatorContent) ItemID() uuid.UUID       { return c.ID }
func (c CreatorContent) Owner() uuid.UUID        { return c.OwnerID }
func (c CreatorContent) Kind() enums.ContentKind { return enums.ContentKindCreator }
func (c CreatorContent) IsRemoved() bool         { return c.Removed }
func (c CreatorContent) ReactionCount() int64    { return c.Reactions }

// PartnerContent wraps a partner post attributed to a creator.
type PartnerContent struct {
	models.PartnerContent
}

func (p PartnerContent) ItemID() uuid.UUID       { return p.ID }
func (p PartnerContent) Owner() uuid.UUID        { return p.OwnerID }
func (p PartnerContent) Kind() enums.ContentKind { return enums.ContentKindPartner }
func (p PartnerContent) IsRemoved() bool         { return p.Removed }
func (p PartnerContent) ReactionCount() int64    { return p.Reactions }
