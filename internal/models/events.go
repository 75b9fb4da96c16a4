package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderDeleted       = "ORDER_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockDelta is a signed change to a product's available stock.
// Reservations are negative, releases positive.
type StockDelta struct {
	ProductID int64 `json:"product_id"`
	Delta     int   `json:"delta"`
}

// StockEvent is the subset of any order event needed to project stock
type StockEvent struct {
	BaseEvent
	StockDeltas []StockDelta `json:"stock_deltas"`
}

// OrderCreatedEvent published after a checkout commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Items       []OrderItemData `json:"items"`
	StockDeltas []StockDelta    `json:"stock_deltas"`
}

// OrderStatusChangedEvent published after a status transition commits
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     int64        `json:"order_id"`
	From        OrderStatus  `json:"from"`
	To          OrderStatus  `json:"to"`
	ChangedBy   int64        `json:"changed_by"`
	StockDeltas []StockDelta `json:"stock_deltas"`
}

// OrderDeletedEvent published after an order is removed
type OrderDeletedEvent struct {
	BaseEvent
	OrderID     int64        `json:"order_id"`
	DeletedBy   int64        `json:"deleted_by"`
	StockDeltas []StockDelta `json:"stock_deltas"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ReservationDeltas returns one negative delta per item
func ReservationDeltas(items []OrderItem) []StockDelta {
	deltas := make([]StockDelta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, Delta: -item.Quantity})
	}
	return deltas
}

// ReleaseDeltas returns one positive delta per item
func ReleaseDeltas(items []OrderItem) []StockDelta {
	deltas := make([]StockDelta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, Delta: item.Quantity})
	}
	return deltas
}
