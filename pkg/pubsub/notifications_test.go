package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

type stubResult struct {
	err error
}

func (r stubResult) Get(context.Context) (string, error) { return "msg-1", r.err }

type stubTopic struct {
	messages []*pubsub.Message
	err      error
}

func (s *stubTopic) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	s.messages = append(s.messages, msg)
	return stubResult{err: s.err}
}

func TestPublishNotificationEncodesMessage(t *testing.T) {
	topic := &stubTopic{}
	pub := &NotificationPublisher{topic: topic}
	n := models.Notification{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Kind:      enums.NotificationCashbackReleased,
		Title:     "Cashback released",
		Body:      "You earned 50 seeds.",
		CreatedAt: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
	}

	if err := pub.PublishNotification(context.Background(), n); err != nil {
		t.Fatalf("PublishNotification: %v", err)
	}
	if len(topic.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(topic.messages))
	}
	msg := topic.messages[0]
	if msg.OrderingKey != n.UserID.String() {
		t.Fatalf("expected ordering key %s, got %s", n.UserID, msg.OrderingKey)
	}
	if msg.Attributes["kind"] != string(enums.NotificationCashbackReleased) {
		t.Fatalf("unexpected kind attribute %q", msg.Attributes["kind"])
	}
	var decoded NotificationMessage
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != n.ID.String() || decoded.Body != n.Body {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestPublishNotificationReturnsPublishError(t *testing.T) {
	pub := &NotificationPublisher{topic: &stubTopic{err: errors.New("unavailable")}}
	if err := pub.PublishNotification(context.Background(), models.Notification{ID: uuid.New()}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestResourceName(t *testing.T) {
	cases := []struct {
		kind, name, want string
	}{
		{"topics", "sf-domain-events", "projects/p1/topics/sf-domain-events"},
		{"topics", "projects/other/topics/t", "projects/other/topics/t"},
		{"subscriptions", " sub ", "projects/p1/subscriptions/sub"},
		{"topics", "", ""},
	}
	for _, tc := range cases {
		if got := resourceName("p1", tc.kind, tc.name); got != tc.want {
			t.Fatalf("resourceName(%q, %q) = %q, want %q", tc.kind, tc.name, got, tc.want)
		}
	}
}
