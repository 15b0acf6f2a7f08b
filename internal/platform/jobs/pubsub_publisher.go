package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/inkwell-press/api/internal/services"
)

// PubSubSubmissionPublisher publishes customization submission events to a Pub/Sub topic.
type PubSubSubmissionPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSubmissionPublisher constructs a Pub/Sub backed submission event publisher.
func NewPubSubSubmissionPublisher(topic *pubsub.Topic) (*PubSubSubmissionPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub submission publisher: topic is required")
	}
	return &PubSubSubmissionPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSubmissionEvent enqueues a submission event message on the configured topic.
func (p *PubSubSubmissionPublisher) PublishSubmissionEvent(ctx context.Context, message services.SubmissionEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub submission publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal submission event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", message.Event)
	setAttr(attrs, "requestId", message.RequestID)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "paymentReference", message.PaymentReference)
	setAttr(attrs, "kind", message.Kind)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish submission event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
