// Package notifications stores in-app notifications and fans them out to the
// notification topic. Delivery failures never propagate to settlement callers.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/pagination"
)

const fanOutLimit = 8

var errUserRequired = pkgerrors.New(pkgerrors.CodeValidation, "user id required")

// Message is one notification addressed to a user.
type Message struct {
	UserID uuid.UUID
	Kind   enums.NotificationKind
	Title  string
	Body   string
}

func (m Message) validate() error {
	if m.UserID == uuid.Nil {
		return errUserRequired
	}
	if !m.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification kind %q", m.Kind))
	}
	return nil
}

// Publisher pushes a stored notification to the delivery transport.
type Publisher interface {
	PublishNotification(ctx context.Context, notification models.Notification) error
}

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	Page(ctx context.Context, p PageQuery) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, now time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

type Service interface {
	Notify(ctx context.Context, msg Message) error
	NotifyMany(ctx context.Context, msgs []Message)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult carries one page; Cursor is empty on the last page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

type service struct {
	store     Store
	publisher Publisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the notification store. A nil publisher keeps
// notifications in-app only.
func NewService(store Store, publisher Publisher, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications store required")
	}
	return &service{
		store:     store,
		publisher: publisher,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Notify(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	row := models.Notification{
		ID:     uuid.New(),
		UserID: msg.UserID,
		Kind:   msg.Kind,
		Title:  msg.Title,
		Body:   msg.Body,
	}
	if err := s.store.Create(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishNotification(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish notification")
	}
	return nil
}

// NotifyMany delivers msgs with bounded concurrency. Failures are logged and
// dropped.
func (s *service) NotifyMany(ctx context.Context, msgs []Message) {
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for _, msg := range msgs {
		g.Go(func() error {
			if err := s.Notify(ctx, msg); err != nil && s.logg != nil {
				s.logg.Error(s.logg.WithFields(ctx, map[string]any{
					"user_id": msg.UserID.String(),
					"kind":    msg.Kind,
				}), "notification delivery failed", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, errUserRequired
	}
	p := PageQuery{UserID: params.UserID, Limit: params.Limit, UnreadOnly: params.UnreadOnly}
	if params.Cursor != "" {
		after, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		p.After = after
	}

	items, next, err := s.store.Page(ctx, p)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = next.Encode()
	}
	return result, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return errUserRequired
	case notificationID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := s.store.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, errUserRequired
	}
	count, err := s.store.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
