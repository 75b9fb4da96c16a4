package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource delivers broker messages to a handler until ctx is cancelled
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// Mirror is the Redis-side inventory projection
type Mirror interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	UnmarkEventProcessed(ctx context.Context, eventID string) error
	ApplyStockDelta(ctx context.Context, productID int64, delta int) (bool, error)
}

// InventoryMirrorWorker projects order events onto the inventory mirror.
// Each event is applied at most once per dedupe window.
type InventoryMirrorWorker struct {
	consumer  MessageSource
	handler   *broker.EventHandler
	mirror    Mirror
	dedupeTTL time.Duration
	logger    *zap.Logger
}

// NewInventoryMirrorWorker creates a new inventory mirror worker
func NewInventoryMirrorWorker(consumer MessageSource, mirror Mirror, dedupeTTL time.Duration) *InventoryMirrorWorker {
	w := &InventoryMirrorWorker{
		consumer:  consumer,
		handler:   broker.NewEventHandler(),
		mirror:    mirror,
		dedupeTTL: dedupeTTL,
		logger:    util.GetLogger(),
	}
	w.handler.OnStockChange(w.Apply)
	return w
}

// Start consumes until ctx is cancelled
func (w *InventoryMirrorWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting inventory mirror worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *InventoryMirrorWorker) Stop() error {
	w.logger.Info("Stopping inventory mirror worker")
	return w.consumer.Close()
}

// Apply applies one event's stock deltas to the mirror
func (w *InventoryMirrorWorker) Apply(ctx context.Context, event *models.StockEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("%s event has no id", event.EventType)
	}
	if len(event.StockDeltas) == 0 {
		return nil
	}

	first, err := w.mirror.MarkEventProcessed(ctx, event.EventID, w.dedupeTTL)
	if err != nil {
		return fmt.Errorf("failed to mark event %s: %w", event.EventID, err)
	}
	if !first {
		w.logger.Debug("Skipping already processed event", zap.String("event_id", event.EventID))
		return nil
	}

	var errs []error
	touched := false
	for _, d := range event.StockDeltas {
		applied, err := w.mirror.ApplyStockDelta(ctx, d.ProductID, d.Delta)
		if err != nil {
			w.logger.Error("Failed to apply stock delta",
				zap.String("event_id", event.EventID),
				zap.Int64("product_id", d.ProductID),
				zap.Int("delta", d.Delta),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		touched = true
		if !applied {
			// not mirrored yet; the next startup sync seeds it from the database
			w.logger.Debug("Product not in mirror", zap.Int64("product_id", d.ProductID))
			continue
		}
		util.MirrorDeltasAppliedTotal.Inc()
	}
	if len(errs) > 0 && !touched {
		// nothing was written, so a redelivery may safely retry the whole event
		if err := w.mirror.UnmarkEventProcessed(ctx, event.EventID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
