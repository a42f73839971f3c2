package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
)

const notificationPublishTimeout = 10 * time.Second

// NotificationMessage is the JSON body pushed to the notification topic.
type NotificationMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type gcpTopic struct {
	*pubsub.Publisher
}

func (p gcpTopic) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

// NotificationPublisher delivers stored notifications to the notification topic.
type NotificationPublisher struct {
	topic topicPublisher
}

// NewNotificationPublisher wraps the client's notification topic.
func NewNotificationPublisher(client *Client) (*NotificationPublisher, error) {
	pub := client.NotificationPublisher()
	if pub == nil {
		return nil, errors.New("notification topic not configured")
	}
	pub.EnableMessageOrdering = true
	return &NotificationPublisher{topic: gcpTopic{Publisher: pub}}, nil
}

func (p *NotificationPublisher) PublishNotification(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(NotificationMessage{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	publishCtx, cancel := context.WithTimeout(ctx, notificationPublishTimeout)
	defer cancel()

	result := p.topic.Publish(publishCtx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"user_id": n.UserID.String(),
			"kind":    string(n.Kind),
		},
		// one ordering key per user keeps a user's notifications in order
		OrderingKey: n.UserID.String(),
	})
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}
