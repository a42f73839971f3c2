package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []models.Notification
	err       error
}

func (f *fakePublisher) PublishNotification(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, n)
	return nil
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newNotifications(t *testing.T, pub Publisher) (*service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t).DB())
	svc, err := NewService(repo, pub, nil)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return t0.Add(time.Hour) }
	return impl, repo
}

func seed(t *testing.T, repo *Repository, userID uuid.UUID, at time.Time, read bool) models.Notification {
	t.Helper()
	n := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      enums.NotificationDonationReceived,
		Title:     "Donation received",
		Body:      "10 seeds",
		CreatedAt: at,
	}
	if read {
		readAt := at.Add(time.Minute)
		n.ReadAt = &readAt
	}
	require.NoError(t, repo.Create(context.Background(), &n))
	return n
}

func TestNotifyStoresAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newNotifications(t, pub)
	userID := uuid.New()

	require.NoError(t, svc.Notify(context.Background(), Message{
		UserID: userID,
		Kind:   enums.NotificationCashbackReleased,
		Title:  "Cashback released",
		Body:   "50 seeds were added to your balance",
	}))

	res, err := svc.List(context.Background(), ListParams{UserID: userID})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Len(t, pub.published, 1)
	assert.Equal(t, res.Items[0].ID, pub.published[0].ID)
	assert.Empty(t, res.Cursor)
}

func TestNotifyValidationAndPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("topic gone")}
	svc, repo := newNotifications(t, pub)
	ctx := context.Background()
	userID := uuid.New()

	err := svc.Notify(ctx, Message{Kind: enums.NotificationCycleReset})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = svc.Notify(ctx, Message{UserID: userID, Kind: "birthday"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.Notify(ctx, Message{UserID: userID, Kind: enums.NotificationCycleReset, Title: "New cycle"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	// stored even though the push failed
	items, _, err := repo.Page(ctx, PageQuery{UserID: userID})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestNotifyManySkipsBadMessages(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newNotifications(t, pub)
	a, b := uuid.New(), uuid.New()

	svc.NotifyMany(context.Background(), []Message{
		{UserID: a, Kind: enums.NotificationFundDistribution, Title: "Fund paid"},
		{UserID: uuid.Nil, Kind: enums.NotificationFundDistribution},
		{UserID: b, Kind: enums.NotificationFundDistribution, Title: "Fund paid"},
	})

	assert.Len(t, pub.published, 2)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, repo := newNotifications(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	oldest := seed(t, repo, userID, t0, true)
	middle := seed(t, repo, userID, t0.Add(time.Minute), false)
	newest := seed(t, repo, userID, t0.Add(2*time.Minute), false)
	seed(t, repo, uuid.New(), t0.Add(3*time.Minute), false)

	first, err := svc.List(ctx, ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, newest.ID, first.Items[0].ID)
	assert.Equal(t, middle.ID, first.Items[1].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, ListParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, oldest.ID, second.Items[0].ID)
	assert.Empty(t, second.Cursor)

	unread, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 2)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newNotifications(t, nil)

	_, err := svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkRead(t *testing.T) {
	svc, repo := newNotifications(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	n := seed(t, repo, userID, t0, false)

	require.NoError(t, svc.MarkRead(ctx, userID, n.ID))
	require.NoError(t, svc.MarkRead(ctx, userID, n.ID), "already read stays a success")

	err := svc.MarkRead(ctx, uuid.New(), n.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "other users cannot see it")
	err = svc.MarkRead(ctx, userID, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unread, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

func TestMarkAllRead(t *testing.T) {
	svc, repo := newNotifications(t, nil)
	userID := uuid.New()
	seed(t, repo, userID, t0, false)
	seed(t, repo, userID, t0.Add(time.Minute), false)
	seed(t, repo, userID, t0.Add(2*time.Minute), true)

	count, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = svc.MarkAllRead(context.Background(), uuid.Nil)
	assert.Error(t, err)
}

func TestDeleteOlderThanKeepsUnread(t *testing.T) {
	_, repo := newNotifications(t, nil)
	userID := uuid.New()
	seed(t, repo, userID, t0, true)
	unread := seed(t, repo, userID, t0, false)
	seed(t, repo, userID, t0.Add(48*time.Hour), true)

	deleted, err := repo.DeleteOlderThan(context.Background(), nil, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	items, _, err := repo.Page(context.Background(), PageQuery{UserID: userID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, []uuid.UUID{items[0].ID, items[1].ID}, unread.ID)
}
