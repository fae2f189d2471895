package services

import (
	"context"
	"maps"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

const (
	eventCartCreated       = "cart.created"
	eventCartAbandoned     = "cart.abandoned"
	eventCartCheckedOut    = "cart.checked_out"
	eventOrderCreated      = "order.created"
	eventOrderStatus       = "order.status.changed"
	eventOrderPaymentState = "order.payment_status.changed"
	eventPaymentRecorded   = "payment.recorded"
	eventPaymentUpdated    = "payment.updated"
	eventPaymentDeleted    = "payment.deleted"
	eventDeliveryRecorded  = "delivery.recorded"
	eventDeliveryUpdated   = "delivery.updated"
	eventDeliveryDeleted   = "delivery.deleted"
)

// WorkflowEvent describes a committed state change for downstream consumers.
type WorkflowEvent struct {
	Type        string
	AggregateID string
	OrderID     string
	ActorID     string
	ActorRole   domain.Role
	OccurredAt  time.Time
	Metadata    map[string]any
}

// EventPublisher publishes workflow events. Publishing happens after the transaction commits and
// failures never fail the originating call.
type EventPublisher interface {
	PublishWorkflowEvent(ctx context.Context, event WorkflowEvent) error
}

type logFunc func(ctx context.Context, event string, fields map[string]any)

type eventEmitter struct {
	publisher EventPublisher
	logger    logFunc
}

func (e eventEmitter) emit(ctx context.Context, actor domain.Actor, event WorkflowEvent) {
	if e.publisher == nil {
		return
	}
	event.ActorID = actor.ID
	event.ActorRole = actor.Role
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := e.publisher.PublishWorkflowEvent(ctx, event); err != nil {
		e.logger(ctx, "workflow.event.publish.failed", map[string]any{
			"type":      event.Type,
			"aggregate": event.AggregateID,
			"error":     err.Error(),
		})
	}
}
