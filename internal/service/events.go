package service

import (
	"context"
	"time"

	"shop-service/internal/models"

	"github.com/google/uuid"
)

// EventPublisher publishes order domain events after their transaction commits
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error {
	return nil
}

func (noopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}

func (noopPublisher) PublishOrderDeleted(context.Context, *models.OrderDeletedEvent) error {
	return nil
}

const publishTimeout = 5 * time.Second

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// publishContext outlives the request: the transaction has already committed,
// so a client disconnect must not drop the event.
func publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
}
