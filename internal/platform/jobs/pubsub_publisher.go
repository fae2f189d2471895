package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

const eventSchemaVersion = "1"

// workflowEventMessage is the JSON body of a published workflow event.
type workflowEventMessage struct {
	EventID     string         `json:"eventId"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregateId"`
	OrderID     string         `json:"orderId,omitempty"`
	ActorID     string         `json:"actorId,omitempty"`
	ActorRole   string         `json:"actorRole,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PubSubEventPublisher publishes committed workflow events to a Pub/Sub topic.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	newID   func() string
}

// NewPubSubEventPublisher constructs a Pub/Sub backed workflow event publisher. Messages are
// ordered per aggregate when the topic enables message ordering.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
		newID:   func() string { return ulid.Make().String() },
	}, nil
}

// PublishWorkflowEvent enqueues the event and waits for the server acknowledgement.
func (p *PubSubEventPublisher) PublishWorkflowEvent(ctx context.Context, event services.WorkflowEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	message := workflowEventMessage{
		EventID:     p.newID(),
		Type:        event.Type,
		AggregateID: event.AggregateID,
		OrderID:     event.OrderID,
		ActorID:     event.ActorID,
		ActorRole:   string(event.ActorRole),
		OccurredAt:  event.OccurredAt.UTC(),
		Metadata:    event.Metadata,
	}
	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal workflow event: %w", err)
	}

	attrs := map[string]string{"schemaVersion": eventSchemaVersion}
	setAttr(attrs, "eventId", message.EventID)
	setAttr(attrs, "eventType", message.Type)
	setAttr(attrs, "aggregateId", message.AggregateID)
	setAttr(attrs, "orderId", message.OrderID)

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = orderingKey(event)
	}

	result := p.topic.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("publish workflow event: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubEventPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

// orderingKey groups an order's events together and falls back to the aggregate.
func orderingKey(event services.WorkflowEvent) string {
	if key := strings.TrimSpace(event.OrderID); key != "" {
		return key
	}
	return strings.TrimSpace(event.AggregateID)
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
