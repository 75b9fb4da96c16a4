package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

const cartLineColumns = `
	ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.discounted_price, ci.discount_applied,
	p.id AS "product.id", p.name AS "product.name", p.description AS "product.description",
	p.category_id AS "product.category_id", p.price AS "product.price",
	p.stock_quantity AS "product.stock_quantity", p.weight AS "product.weight",
	p.dimensions AS "product.dimensions", p.created_at AS "product.created_at",
	c.id AS "category.id", c.name AS "category.name", c.description AS "category.description"`

// GetOrCreateCart returns the user's cart, creating an empty one on first access
func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	var cart models.Cart
	if err := s.getOne(ctx, &cart, fmt.Sprintf("cart for user %d", userID),
		"SELECT id, user_id, created_at FROM carts WHERE user_id = $1", userID); err != nil {
		return nil, err
	}
	return &cart, nil
}

// LockCart takes a row lock on the cart so concurrent mutations of one cart serialize
func (s *Store) LockCart(ctx context.Context, cartID int64) error {
	var id int64
	return s.getOne(ctx, &id, fmt.Sprintf("cart %d", cartID),
		"SELECT id FROM carts WHERE id = $1 FOR UPDATE", cartID)
}

// GetCartLines retrieves the cart's items with product and category
func (s *Store) GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := s.q.SelectContext(ctx, &lines, `
		SELECT `+cartLineColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cartID)
	return lines, err
}

// GetCarts lists every cart, oldest first
func (s *Store) GetCarts(ctx context.Context) ([]models.Cart, error) {
	carts := []models.Cart{}
	err := s.q.SelectContext(ctx, &carts, "SELECT id, user_id, created_at FROM carts ORDER BY id")
	return carts, err
}

// GetAllCartLines retrieves the lines of every cart, grouped by cart
func (s *Store) GetAllCartLines(ctx context.Context) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := s.q.SelectContext(ctx, &lines, `
		SELECT `+cartLineColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		ORDER BY ci.cart_id, ci.id`)
	return lines, err
}

// GetCartItemByProduct retrieves the cart's line for a product
func (s *Store) GetCartItemByProduct(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	var item models.CartItem
	if err := s.getOne(ctx, &item, fmt.Sprintf("cart item for product %d", productID), `
		SELECT id, cart_id, product_id, quantity, discounted_price, discount_applied
		FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateCartItem inserts a new cart line
func (s *Store) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, discounted_price, discount_applied)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := s.q.GetContext(ctx, &item.ID, query,
		item.CartID, item.ProductID, item.Quantity, item.DiscountedPrice, item.DiscountApplied)
	if isUniqueViolation(err) {
		return fmt.Errorf("cart item for product %d: %w", item.ProductID, ErrDuplicate)
	}
	return err
}

// UpdateCartItemQuantity sets a line's quantity
func (s *Store) UpdateCartItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2", quantity, itemID)
	return err
}

// ApplyCartItemDiscount stores a discounted price and marks the line discounted
func (s *Store) ApplyCartItemDiscount(ctx context.Context, itemID int64, price decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE cart_items SET discounted_price = $1, discount_applied = TRUE WHERE id = $2 AND NOT discount_applied",
		price, itemID)
	return err
}

// ClearCart removes every line from the cart, keeping the cart itself
func (s *Store) ClearCart(ctx context.Context, cartID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
