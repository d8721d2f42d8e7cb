package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/wirashauma/FoodDelivery-app-sub000/pkg/logger"
)

// Event is one domain event to broadcast. Data is marshalled into the
// envelope as-is.
type Event struct {
	EventType  string
	Actor      *ActorRef
	Data       interface{}
	Version    int
	OccurredAt time.Time
}

// Publisher broadcasts domain events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubPublisher publishes envelopes to a single Pub/Sub topic.
type PubSubPublisher struct {
	topic topicPublisher
	logg  *logger.Logger
}

func NewPubSubPublisher(topic *pubsub.Publisher, logg *logger.Logger) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic is required")
	}
	return &PubSubPublisher{topic: topic, logg: logg}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	if event.EventType == "" {
		return errors.New("event type is required")
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	envelope := Envelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		EventType:  event.EventType,
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"eventType": event.EventType,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return err
	}
	if p.logg != nil {
		fields := map[string]any{
			"event_id":   envelope.EventID,
			"event_type": event.EventType,
		}
		p.logg.Info(p.logg.WithFields(ctx, fields), "event published")
	}
	return nil
}

// NoopPublisher drops events. Used when Pub/Sub is not configured and in
// tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
