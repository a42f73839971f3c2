package webhooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/square/square-go-sdk"
	"github.com/stripe/stripe-go/v84"

	squarewebhook "github.com/angelmondragon/seedfund-backend/internal/webhooks/square"
)

type signer struct {
	secret string
	url    string
}

func (s signer) SigningSecret() string   { return s.secret }
func (s signer) NotificationURL() string { return s.url }

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false, errors.New("redis unavailable")
	}
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

type squareRecorder struct {
	payments []string
	err      error
}

func (r *squareRecorder) HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error {
	if p := event.Data.Object.Payment; p != nil && p.GetID() != nil {
		r.payments = append(r.payments, *p.GetID())
	}
	return r.err
}

type stripeRecorder struct {
	events []stripe.EventType
	err    error
}

func (r *stripeRecorder) HandleEvent(ctx context.Context, event *stripe.Event) error {
	r.events = append(r.events, event.Type)
	return r.err
}

func squarePayment(id, status string) *sq.Payment {
	return &sq.Payment{ID: &id, Status: &status}
}
