package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	stock     map[int64]int
	processed map[string]bool
	applyErr  error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{stock: map[int64]int{}, processed: map[string]bool{}}
}

func (m *fakeMirror) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if m.processed[eventID] {
		return false, nil
	}
	m.processed[eventID] = true
	return true, nil
}

func (m *fakeMirror) UnmarkEventProcessed(ctx context.Context, eventID string) error {
	delete(m.processed, eventID)
	return nil
}

func (m *fakeMirror) ApplyStockDelta(ctx context.Context, productID int64, delta int) (bool, error) {
	if m.applyErr != nil {
		return false, m.applyErr
	}
	v, ok := m.stock[productID]
	if !ok {
		return false, nil
	}
	v += delta
	if v < 0 {
		v = 0
	}
	m.stock[productID] = v
	return true, nil
}

// replaySource feeds a fixed list of messages and then returns
type replaySource struct {
	msgs   []kafka.Message
	closed bool
}

func (s *replaySource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range s.msgs {
		_ = handler(ctx, msg)
	}
	return nil
}

func (s *replaySource) Close() error {
	s.closed = true
	return nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestInventoryMirrorWorker_ProjectsEvents(t *testing.T) {
	mirror := newFakeMirror()
	mirror.stock[1] = 5
	mirror.stock[2] = 10

	created := &models.OrderCreatedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderCreated},
		OrderID:     1,
		StockDeltas: []models.StockDelta{{ProductID: 1, Delta: -2}, {ProductID: 2, Delta: -3}},
	}
	cancelled := &models.OrderStatusChangedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e2", EventType: models.EventTypeOrderStatusChanged},
		OrderID:     1,
		StockDeltas: []models.StockDelta{{ProductID: 1, Delta: 2}, {ProductID: 2, Delta: 3}},
	}
	shipped := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "e3", EventType: models.EventTypeOrderStatusChanged},
		OrderID:   2,
	}

	source := &replaySource{msgs: []kafka.Message{
		message(t, created),
		message(t, created),
		message(t, shipped),
	}}
	w := NewInventoryMirrorWorker(source, mirror, time.Hour)

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, map[int64]int{1: 3, 2: 7}, mirror.stock, "duplicate delivery applied once")

	source.msgs = []kafka.Message{message(t, cancelled)}
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, map[int64]int{1: 5, 2: 10}, mirror.stock)

	require.NoError(t, w.Stop())
	assert.True(t, source.closed)
}

func TestInventoryMirrorWorker_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown product is skipped", func(t *testing.T) {
		mirror := newFakeMirror()
		w := NewInventoryMirrorWorker(&replaySource{}, mirror, time.Hour)

		err := w.Apply(ctx, &models.StockEvent{
			BaseEvent:   models.BaseEvent{EventID: "x"},
			StockDeltas: []models.StockDelta{{ProductID: 99, Delta: -1}},
		})

		require.NoError(t, err)
		assert.Empty(t, mirror.stock)
	})

	t.Run("missing event id", func(t *testing.T) {
		w := NewInventoryMirrorWorker(&replaySource{}, newFakeMirror(), time.Hour)

		assert.Error(t, w.Apply(ctx, &models.StockEvent{StockDeltas: []models.StockDelta{{ProductID: 1, Delta: 1}}}))
	})

	t.Run("redis failure is reported", func(t *testing.T) {
		mirror := newFakeMirror()
		mirror.applyErr = errors.New("redis: connection refused")
		w := NewInventoryMirrorWorker(&replaySource{}, mirror, time.Hour)

		err := w.Apply(ctx, &models.StockEvent{
			BaseEvent:   models.BaseEvent{EventID: "y"},
			StockDeltas: []models.StockDelta{{ProductID: 1, Delta: 1}, {ProductID: 2, Delta: 1}},
		})

		assert.ErrorIs(t, err, mirror.applyErr)
		assert.NotContains(t, mirror.processed, "y", "untouched event can be retried")
	})
}
