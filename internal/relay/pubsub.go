package relay

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubTopics opens ordered publishers on client.
func PubSubTopics(client publisherSource) TopicSource {
	return func(name string) Topic {
		pub := client.Publisher(name)
		if pub == nil {
			return nil
		}
		pub.EnableMessageOrdering = true
		return &orderedTopic{pub: pub}
	}
}

type orderedTopic struct {
	pub *gcppubsub.Publisher
}

func (t *orderedTopic) Publish(ctx context.Context, msg *gcppubsub.Message) Ack {
	return &orderedAck{
		res:    t.pub.Publish(ctx, msg),
		resume: func() { t.pub.ResumePublish(msg.OrderingKey) },
	}
}

func (t *orderedTopic) Stop() { t.pub.Stop() }

type orderedAck struct {
	res    *gcppubsub.PublishResult
	resume func()
}

// Get waits for the server ack. A failed ordered publish pauses its key
// until resumed, so the key is resumed for the retry on a later pass.
func (a *orderedAck) Get(ctx context.Context) (string, error) {
	if a.res == nil {
		return "", errors.New("publish result missing")
	}
	id, err := a.res.Get(ctx)
	if err != nil {
		a.resume()
	}
	return id, err
}
