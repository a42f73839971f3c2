package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/pkg/db"
	"github.com/angelmondragon/seedfund-backend/pkg/db/dbtest"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/seedfund-backend/pkg/errors"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	return NewService(NewRepository(client.DB()), nil), client
}

func cycleReset(aggregate uuid.UUID) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventCycleReset,
		AggregateType: enums.AggregateCycle,
		AggregateID:   aggregate,
		Actor:         &ActorRef{UserID: uuid.New(), Role: "system"},
		Data:          map[string]int{"cycleNumber": 4},
	}
}

func storedRows(t *testing.T, client *db.Client) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Order("created_at").Find(&rows).Error)
	return rows
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, client := newService(t)
	occurred := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	aggregate := uuid.New()

	event := cycleReset(aggregate)
	event.OccurredAt = occurred
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	}))

	rows := storedRows(t, client)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventCycleReset, rows[0].EventType)
	assert.Equal(t, aggregate, rows[0].AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.True(t, env.OccurredAt.Equal(occurred))
	require.NotNil(t, env.Actor)
	assert.Equal(t, "system", env.Actor.Role)
	assert.JSONEq(t, `{"cycleNumber":4}`, string(env.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	svc, client := newService(t)
	boom := errors.New("business write failed")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, cycleReset(uuid.New())))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, storedRows(t, client))
}

func TestEmitValidation(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()

	err := svc.Emit(ctx, nil, cycleReset(uuid.New()))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	bad := cycleReset(uuid.New())
	bad.EventType = "cycle_archived"
	err = svc.Emit(ctx, client.DB(), bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad = cycleReset(uuid.New())
	bad.AggregateType = "wallet"
	err = svc.Emit(ctx, client.DB(), bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad = cycleReset(uuid.New())
	bad.Data = func() {}
	err = svc.Emit(ctx, client.DB(), bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestEmitIfNotExistsQueuesOnce(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	aggregate := uuid.New()

	for range 3 {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(ctx, tx, cycleReset(aggregate))
		}))
	}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.EmitIfNotExists(ctx, tx, cycleReset(uuid.New()))
	}))

	assert.Len(t, storedRows(t, client), 2)
}

func TestRepositoryRelayLifecycle(t *testing.T) {
	svc, client := newService(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	for range 3 {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, cycleReset(uuid.New()))
		}))
	}
	rows, err := repo.FetchUnpublishedForPublish(client.DB(), 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	gdb := client.DB()
	require.NoError(t, repo.MarkPublishedTx(gdb, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(gdb, rows[1].ID, errors.New("pubsub unavailable")))
	require.NoError(t, repo.MarkTerminalTx(gdb, rows[2].ID, errors.New("bad payload"), 5))

	pending, err := repo.FetchUnpublishedForPublish(gdb, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "pubsub unavailable", *pending[0].LastError)

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.Len(t, storedRows(t, client), 2)
}

func TestDLQRepositoryTruncatesAndLists(t *testing.T) {
	client := dbtest.Open(t)
	dlq := NewDLQRepository(client.DB())

	long := strings.Repeat("x", maxDLQErrorLen+200)
	older := time.Now().UTC().Add(-time.Hour)
	for i, failedAt := range []time.Time{older, time.Now().UTC()} {
		msg := long
		require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
			ID:            uuid.New(),
			EventID:       uuid.New(),
			EventType:     enums.EventFundDistributed,
			AggregateType: enums.AggregateSeedFund,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &msg,
			AttemptCount:  i + 1,
			FailedAt:      failedAt,
		}))
	}

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].AttemptCount)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Len(t, *rows[0].ErrorMessage, maxDLQErrorLen)

	assert.Error(t, dlq.InsertTx(nil, models.OutboxDLQ{}))
}
