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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyStore remembers which order a checkout key produced
type IdempotencyStore interface {
	GetIdempotentOrder(ctx context.Context, key string) (int64, bool, error)
	SetIdempotentOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error
}

// CheckoutService converts a cart into an immutable order
type CheckoutService struct {
	repo        store.Repository
	ledger      *StockLedger
	publisher   EventPublisher
	idempotency IdempotencyStore
	keyTTL      time.Duration
	logger      *zap.Logger
}

// NewCheckoutService creates a new checkout service.
// publisher and idempotency may be nil.
func NewCheckoutService(
	repo store.Repository,
	ledger *StockLedger,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	keyTTL time.Duration,
) *CheckoutService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &CheckoutService{
		repo:        repo,
		ledger:      ledger,
		publisher:   publisher,
		idempotency: idempotency,
		keyTTL:      keyTTL,
		logger:      util.GetLogger(),
	}
}

// Checkout places an order for everything in the user's cart.
// Order, items, stock reservations and cart clearing commit together or not at all.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64, idempotencyKey string) (*models.CheckoutResult, error) {
	const op = "CheckoutService.Checkout"
	ctx, span := util.StartSpan(ctx, op)
	span.SetAttributes(util.Int64Attr("user_id", userID))

	key := ""
	if idempotencyKey != "" && s.idempotency != nil {
		key = fmt.Sprintf("%d:%s", userID, idempotencyKey)
		if result, ok := s.replay(ctx, userID, key); ok {
			util.EndSpan(span, nil)
			return result, nil
		}
	}

	var (
		order *models.Order
		items []models.OrderItem
	)
	err := s.repo.WithTx(ctx, func(q store.Querier) error {
		cart, err := lockedCart(ctx, q, userID)
		if err != nil {
			return err
		}

		lines, err := q.GetCartLines(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to load cart lines: %w", err)
		}
		if len(lines) == 0 {
			return apperr.EmptyCart(op)
		}
		// product rows are always locked in id order so concurrent checkouts cannot deadlock
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		names := make(map[int64]string, len(lines))
		total := decimal.Zero
		items = make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, err := q.GetProductForUpdate(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("failed to lock product %d: %w", line.ProductID, err)
			}
			if product.StockQuantity < line.Quantity {
				return apperr.InsufficientStock(op, product.ID, product.StockQuantity,
					"Insufficient stock for %s. Available: %d", product.Name, product.StockQuantity)
			}
			names[product.ID] = product.Name

			unitPrice := line.UnitPrice()
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(lineTotal)
			items = append(items, models.OrderItem{
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitPrice:  unitPrice,
				TotalPrice: lineTotal,
			})
		}

		order = &models.Order{
			UserID: userID,
			Total:  total,
			Status: models.OrderStatusPending,
		}
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := q.CreateOrderItem(ctx, &items[i]); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		for _, item := range items {
			ok, err := s.ledger.Reserve(ctx, q, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.StockConflict(op, item.ProductID, "Stock for %s was taken by another order. Please try again", names[item.ProductID])
			}
		}

		if _, err := q.ClearCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	util.EndSpan(span, err)

	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues(apperr.Code(err)).Inc()
		if apperr.Is(err, apperr.EINTERNAL) {
			s.logger.Error("Checkout failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	util.CheckoutsTotal.Inc()
	util.OrderValue.Observe(order.Total.InexactFloat64())
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)))

	s.publishCreated(ctx, order, items)
	if key != "" {
		if err := s.idempotency.SetIdempotentOrder(ctx, key, order.ID, s.keyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return &models.CheckoutResult{
		Message: "Order placed successfully",
		OrderID: order.ID,
		Total:   order.Total,
	}, nil
}

// replay returns the order an earlier checkout with the same key produced, if it still exists
func (s *CheckoutService) replay(ctx context.Context, userID int64, key string) (*models.CheckoutResult, bool) {
	orderID, ok, err := s.idempotency.GetIdempotentOrder(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed, proceeding with checkout", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil || order.UserID != userID {
		return nil, false
	}

	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", order.ID))
	return &models.CheckoutResult{
		Message: "Order already placed",
		OrderID: order.ID,
		Total:   order.Total,
	}, true
}

func (s *CheckoutService) publishCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		UserID:      order.UserID,
		Total:       order.Total,
		Items:       data,
		StockDeltas: models.ReservationDeltas(items),
	}

	pubCtx, cancel := publishContext(ctx)
	defer cancel()
	if err := s.publisher.PublishOrderCreated(pubCtx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
