package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, total, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	row := s.q.QueryRowxContext(ctx, query, order.UserID, order.Total, order.Status)
	return row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.q.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.getOne(ctx, &order, fmt.Sprintf("order %d", id),
		"SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderForUpdate retrieves an order and locks its row until the transaction ends
func (s *Store) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.getOne(ctx, &order, fmt.Sprintf("order %d", id),
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.q.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.q.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrderItemDetails retrieves an order's items with each product's current name and price
func (s *Store) GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error) {
	items := []models.OrderItemDetail{}
	err := s.q.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.total_price,
			p.name AS product_name, p.price AS product_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	return items, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// DeleteOrder removes an order; its items go with it (ON DELETE CASCADE)
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	return err
}
