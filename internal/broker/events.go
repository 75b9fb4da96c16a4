package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// EventWriter is the transport an EventPublisher writes through
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher publishes order domain events behind a circuit breaker,
// so an unreachable broker fails fast instead of stalling every request.
type EventPublisher struct {
	writer  EventWriter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

const publisherBreakerName = "order-events"

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	logger := util.GetLogger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        publisherBreakerName,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			util.PublisherBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("Event publisher circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	util.PublisherBreakerState.WithLabelValues(publisherBreakerName).Set(0)

	return &EventPublisher{writer: writer, breaker: breaker, logger: logger}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.publish(ctx, event.EventType, event.OrderID, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.publish(ctx, event.EventType, event.OrderID, event)
}

// PublishOrderDeleted publishes OrderDeleted event
func (ep *EventPublisher) PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error {
	return ep.publish(ctx, event.EventType, event.OrderID, event)
}

func (ep *EventPublisher) publish(ctx context.Context, eventType string, orderID int64, event interface{}) error {
	key := fmt.Sprintf("order-%d", orderID)

	_, err := ep.breaker.Execute(func() (interface{}, error) {
		return nil, ep.writer.PublishEvent(ctx, key, event)
	})
	if err != nil {
		util.EventsPublishFailed.WithLabelValues(eventType).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("event publisher unavailable (circuit %s): %w", ep.breaker.State(), err)
		}
		return err
	}
	return nil
}

// EventHandler routes incoming order events
type EventHandler struct {
	onStockChange func(context.Context, *models.StockEvent) error
	logger        *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnStockChange registers a handler for every event that carries stock deltas
func (eh *EventHandler) OnStockChange(handler func(context.Context, *models.StockEvent) error) {
	eh.onStockChange = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated, models.EventTypeOrderStatusChanged, models.EventTypeOrderDeleted:
		if eh.onStockChange == nil {
			return nil
		}
		var event models.StockEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
		}
		return eh.onStockChange(ctx, &event)

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
