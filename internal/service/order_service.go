package service

import (
	"context"
	"errors"
	"fmt"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// UpdateStatusRequest represents a request to change an order's status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// OrderService handles order reads, status transitions and deletion
type OrderService struct {
	repo      store.Repository
	ledger    *StockLedger
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(repo store.Repository, ledger *StockLedger, publisher EventPublisher) *OrderService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &OrderService{
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ListOrders returns the principal's own orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, principal *models.User) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.repo.GetOrdersByUserID(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrderItems returns an order's line items to its owner or to staff
func (s *OrderService) GetOrderItems(ctx context.Context, principal *models.User, orderID int64) ([]models.OrderItemView, error) {
	const op = "OrderService.GetOrderItems"
	ctx, span := util.StartSpan(ctx, op)
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, orderLoadError(op, orderID, err)
	}
	if _, ok := roleFor(principal, order); !ok {
		return nil, apperr.Forbidden(op, "You do not have permission to view this order")
	}

	details, err := s.repo.GetOrderItemDetails(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return models.NewOrderItemViews(details), nil
}

// UpdateStatus applies a status transition and its stock effect in one transaction
func (s *OrderService) UpdateStatus(ctx context.Context, principal *models.User, orderID int64, rawStatus string) (*models.Order, error) {
	const op = "OrderService.UpdateStatus"
	ctx, span := util.StartSpan(ctx, op)
	span.SetAttributes(util.Int64Attr("order_id", orderID))

	var (
		updated *models.Order
		from    models.OrderStatus
		effect  StockEffect
		items   []models.OrderItem
	)
	err := s.repo.WithTx(ctx, func(q store.Querier) error {
		if rawStatus == "" {
			return apperr.Invalid(op, "Status is required")
		}
		to, ok := models.ParseOrderStatus(rawStatus)
		if !ok {
			return apperr.Invalid(op, "Invalid status %q", rawStatus)
		}

		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return orderLoadError(op, orderID, err)
		}
		from = order.Status

		role, ok := roleFor(principal, order)
		if !ok {
			return apperr.Forbidden(op, "You do not have permission to modify this order")
		}
		effect, ok = LookupTransition(role, from, to)
		if !ok {
			return apperr.Forbidden(op, "Cannot change order status from %s to %s", from, to)
		}

		items, err = q.GetOrderItemsByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}

		switch effect {
		case EffectRelease:
			if err := s.ledger.ReleaseItems(ctx, q, items); err != nil {
				return err
			}
		case EffectReserve:
			if err := s.ledger.ReserveItems(ctx, q, items); err != nil {
				return err
			}
		}

		if err := q.UpdateOrderStatus(ctx, orderID, to); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		updated, err = q.GetOrderByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to reload order: %w", err)
		}
		return nil
	})
	util.EndSpan(span, err)

	if err != nil {
		util.OrderTransitionsRejected.WithLabelValues(apperr.Code(err)).Inc()
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(string(from), string(updated.Status)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", from.String()),
		zap.String("to", updated.Status.String()),
		zap.String("stock_effect", effect.String()),
		zap.Int64("changed_by", principal.ID))

	var deltas []models.StockDelta
	switch effect {
	case EffectRelease:
		deltas = models.ReleaseDeltas(items)
	case EffectReserve:
		deltas = models.ReservationDeltas(items)
	}
	event := &models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     orderID,
		From:        from,
		To:          updated.Status,
		ChangedBy:   principal.ID,
		StockDeltas: deltas,
	}
	pubCtx, cancel := publishContext(ctx)
	defer cancel()
	if err := s.publisher.PublishOrderStatusChanged(pubCtx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", orderID), zap.Error(err))
	}

	return updated, nil
}

// DeleteOrder removes a pending or cancelled order, returning its stock unless already released
func (s *OrderService) DeleteOrder(ctx context.Context, principal *models.User, orderID int64) error {
	const op = "OrderService.DeleteOrder"
	ctx, span := util.StartSpan(ctx, op)
	span.SetAttributes(util.Int64Attr("order_id", orderID))

	var released []models.OrderItem
	err := s.repo.WithTx(ctx, func(q store.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return orderLoadError(op, orderID, err)
		}
		if _, ok := roleFor(principal, order); !ok {
			return apperr.Forbidden(op, "You do not have permission to delete this order")
		}
		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusCancelled {
			return apperr.Forbidden(op, "Only pending or cancelled orders can be deleted")
		}

		if order.Status != models.OrderStatusCancelled {
			items, err := q.GetOrderItemsByOrderID(ctx, orderID)
			if err != nil {
				return fmt.Errorf("failed to load order items: %w", err)
			}
			if err := s.ledger.ReleaseItems(ctx, q, items); err != nil {
				return err
			}
			released = items
		}

		if err := q.DeleteOrder(ctx, orderID); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
	util.EndSpan(span, err)

	if err != nil {
		return err
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted",
		zap.Int64("order_id", orderID),
		zap.Int64("deleted_by", principal.ID),
		zap.Int("released_items", len(released)))

	event := &models.OrderDeletedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderDeleted),
		OrderID:     orderID,
		DeletedBy:   principal.ID,
		StockDeltas: models.ReleaseDeltas(released),
	}
	pubCtx, cancel := publishContext(ctx)
	defer cancel()
	if err := s.publisher.PublishOrderDeleted(pubCtx, event); err != nil {
		s.logger.Error("Failed to publish OrderDeleted event", zap.Int64("order_id", orderID), zap.Error(err))
	}
	return nil
}

func orderLoadError(op string, orderID int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "order", orderID)
	}
	return fmt.Errorf("failed to load order %d: %w", orderID, err)
}
