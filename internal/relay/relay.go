// Package relay drains committed outbox rows onto Pub/Sub topics.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
	"github.com/angelmondragon/seedfund-backend/pkg/metrics"
	"github.com/angelmondragon/seedfund-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	ackTimeout          = 15 * time.Second
	maxIdleBackoff      = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rowStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Pinger is a dependency checked before the relay starts.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Topic publishes to one Pub/Sub topic.
type Topic interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) Ack
	Stop()
}

// Ack resolves once the server accepted or refused a message.
type Ack interface {
	Get(ctx context.Context) (string, error)
}

// TopicSource opens a Topic by name; nil means the topic is not configured.
type TopicSource func(name string) Topic

type Params struct {
	DB           txRunner
	Rows         rowStore
	DeadLetters  deadLetterStore
	Registry     resolver
	Topics       TopicSource
	Dependencies map[string]Pinger
	Metrics      *metrics.OutboxMetrics
	Logger       *logger.Logger
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

// Relay moves outbox rows to Pub/Sub. Rows are claimed inside one
// transaction per batch, so a crash mid-batch leaves them for the next pass.
type Relay struct {
	db          txRunner
	rows        rowStore
	deadLetters deadLetterStore
	registry    resolver
	topics      TopicSource
	deps        map[string]Pinger
	metrics     *metrics.OutboxMetrics
	logg        *logger.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
	open        map[string]Topic
}

func New(p Params) (*Relay, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Rows == nil:
		return nil, errors.New("outbox repository required")
	case p.DeadLetters == nil:
		return nil, errors.New("dlq repository required")
	case p.Registry == nil:
		return nil, errors.New("event registry required")
	case p.Topics == nil:
		return nil, errors.New("topic source required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	r := &Relay{
		db:          p.DB,
		rows:        p.Rows,
		deadLetters: p.DeadLetters,
		registry:    p.Registry,
		topics:      p.Topics,
		deps:        p.Dependencies,
		metrics:     p.Metrics,
		logg:        p.Logger,
		batchSize:   p.BatchSize,
		maxAttempts: p.MaxAttempts,
		interval:    p.PollInterval,
		open:        map[string]Topic{},
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.interval <= 0 {
		r.interval = defaultPollInterval
	}
	return r, nil
}

// Run polls until ctx is done. A full batch is followed immediately by
// another; an empty batch waits one interval; failures back off up to
// maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, dep := range r.deps {
		if err := dep.Ping(ctx); err != nil {
			r.logg.Error(r.logg.WithField(ctx, "dependency", name), "relay dependency unavailable", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}
	defer r.close()

	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := r.Drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay pass failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case stats.Claimed > 0:
			wait = r.interval
			continue
		default:
			wait = r.interval
		}
		if err := sleep(ctx, wait+time.Duration(rand.Int64N(int64(jitterWindow)))); err != nil {
			return err
		}
	}
}

// Stats counts the rows one Drain pass handled.
type Stats struct {
	Claimed      int
	Published    int
	Retried      int
	DeadLettered int
}

type inflight struct {
	row   models.OutboxEvent
	topic string
	ack   Ack
}

// Drain claims one batch, publishes every resolvable row, then waits for the
// acks and records each outcome.
func (r *Relay) Drain(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = Stats{}
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		stats.Claimed = len(rows)

		pending := make([]inflight, 0, len(rows))
		for _, row := range rows {
			resolved, err := r.registry.Resolve(row)
			if err != nil {
				if err := r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err); err != nil {
					return err
				}
				stats.DeadLettered++
				continue
			}
			topic := resolved.Descriptor.Topic
			pub := r.topic(topic)
			if pub == nil {
				if err := r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, fmt.Errorf("no publisher for topic %q", topic)); err != nil {
					return err
				}
				stats.DeadLettered++
				continue
			}
			pending = append(pending, inflight{row: row, topic: topic, ack: pub.Publish(ctx, message(row, resolved))})
		}

		ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
		defer cancel()
		for _, p := range pending {
			if err := r.settle(ctx, ackCtx, tx, p, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (r *Relay) settle(ctx, ackCtx context.Context, tx *gorm.DB, p inflight, stats *Stats) error {
	var pubErr error
	if p.ack == nil {
		pubErr = registry.NewNonRetryableError(errors.New("publisher returned no result"))
	} else {
		_, pubErr = p.ack.Get(ackCtx)
	}
	if pubErr == nil {
		if err := r.rows.MarkPublishedTx(tx, p.row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", p.row.ID, err)
		}
		stats.Published++
		r.metrics.IncPublished(string(p.row.EventType))
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		stats.DeadLettered++
		return r.deadLetter(ctx, tx, p.row, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if p.row.AttemptCount+1 >= r.maxAttempts {
		stats.DeadLettered++
		return r.deadLetter(ctx, tx, p.row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", p.row.AttemptCount+1, pubErr))
	}

	logCtx := r.logg.WithFields(ctx, rowFields(p.row, p.topic))
	r.logg.Warn(r.logg.WithField(logCtx, "error", pubErr.Error()), "outbox publish will be retried")
	if err := r.rows.MarkFailedTx(tx, p.row.ID, pubErr); err != nil {
		return fmt.Errorf("mark failed %s: %w", p.row.ID, err)
	}
	stats.Retried++
	r.metrics.IncRetried()
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.rows.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	fields := rowFields(row, "")
	fields["error_reason"] = string(reason)
	r.logg.Error(r.logg.WithFields(ctx, fields), "outbox event dead-lettered", cause)
	r.metrics.IncDeadLettered(string(reason))
	return nil
}

// topic keeps one publisher per topic so batching and ordering state carry
// across passes.
func (r *Relay) topic(name string) Topic {
	if t, ok := r.open[name]; ok {
		return t
	}
	t := r.topics(name)
	if t != nil {
		r.open[name] = t
	}
	return t
}

func (r *Relay) close() {
	for name, t := range r.open {
		t.Stop()
		delete(r.open, name)
	}
}

func message(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
		OrderingKey: row.AggregateID.String(),
	}
}

func rowFields(row models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
