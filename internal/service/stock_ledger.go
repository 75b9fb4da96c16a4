package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// StockLedger is the only path through which product stock changes.
// Every call takes the Querier of the caller's transaction so that stock
// moves commit or roll back together with the order rows they belong to.
type StockLedger struct {
	logger *zap.Logger
}

// NewStockLedger creates a new stock ledger
func NewStockLedger() *StockLedger {
	return &StockLedger{logger: util.GetLogger()}
}

// Reserve decrements stock by quantity iff at least quantity is available.
// It returns false, without mutating anything, when stock is short.
func (l *StockLedger) Reserve(ctx context.Context, q store.Querier, productID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "StockLedger.Reserve")
	defer span.End()
	span.SetAttributes(util.Int64Attr("product_id", productID), util.Int64Attr("quantity", int64(quantity)))

	if quantity <= 0 {
		return false, apperr.Invalid("StockLedger.Reserve", "Quantity must be positive")
	}

	start := time.Now()
	ok, err := q.ReserveStock(ctx, productID, quantity)
	util.StockReserveLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.StockReservationsFailed.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}
	if !ok {
		util.StockReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		l.logger.Debug("Stock reservation refused",
			zap.Int64("product_id", productID),
			zap.Int("quantity", quantity))
	}
	return ok, nil
}

// Release increments stock by quantity unconditionally
func (l *StockLedger) Release(ctx context.Context, q store.Querier, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "StockLedger.Release")
	defer span.End()
	span.SetAttributes(util.Int64Attr("product_id", productID), util.Int64Attr("quantity", int64(quantity)))

	if quantity <= 0 {
		return apperr.Invalid("StockLedger.Release", "Quantity must be positive")
	}

	if err := q.ReleaseStock(ctx, productID, quantity); err != nil {
		return fmt.Errorf("failed to release stock for product %d: %w", productID, err)
	}

	util.StockReleasedUnitsTotal.Add(float64(quantity))
	return nil
}

// ReleaseItems returns every item's quantity to stock
func (l *StockLedger) ReleaseItems(ctx context.Context, q store.Querier, items []models.OrderItem) error {
	needed, order := byProduct(items)
	for _, productID := range order {
		if err := l.Release(ctx, q, productID, needed[productID]); err != nil {
			return err
		}
	}
	return nil
}

// byProduct sums item quantities per product and returns the product ids in
// ascending order, the one order in which product rows are ever locked.
func byProduct(items []models.OrderItem) (map[int64]int, []int64) {
	needed := make(map[int64]int, len(items))
	order := make([]int64, 0, len(items))
	for _, item := range items {
		if _, seen := needed[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		needed[item.ProductID] += item.Quantity
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return needed, order
}

// ReserveItems reserves every item's quantity, or nothing at all.
// All products are locked and checked before the first decrement, so a
// shortage is reported as insufficient stock without a partial reservation.
func (l *StockLedger) ReserveItems(ctx context.Context, q store.Querier, items []models.OrderItem) error {
	const op = "StockLedger.ReserveItems"

	needed, order := byProduct(items)
	for _, productID := range order {
		product, err := q.GetProductForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
		if product.StockQuantity < needed[productID] {
			return apperr.InsufficientStock(op, productID, product.StockQuantity,
				"Insufficient stock for %s. Available: %d", product.Name, product.StockQuantity)
		}
	}

	for _, productID := range order {
		ok, err := l.Reserve(ctx, q, productID, needed[productID])
		if err != nil {
			return err
		}
		if !ok {
			return apperr.StockConflict(op, productID, "Stock for product %d changed while reserving", productID)
		}
	}
	return nil
}
