package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddItemRequest represents a request to add a product to the cart
type AddItemRequest struct {
	ProductID int64 `json:"product" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// CartService owns per-user cart contents and discount application
type CartService struct {
	repo      store.Repository
	discounts *DiscountCatalog
	logger    *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repo store.Repository, discounts *DiscountCatalog) *CartService {
	return &CartService{
		repo:      repo,
		discounts: discounts,
		logger:    util.GetLogger(),
	}
}

// GetCart returns the user's cart, creating an empty one on first access
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	cart, err := s.repo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return s.view(ctx, s.repo, cart)
}

// AddItem adds quantity of a product to the cart, merging with an existing line.
// Stock is checked, never reserved; a failed add leaves the cart untouched.
func (s *CartService) AddItem(ctx context.Context, userID int64, req *AddItemRequest) (*models.CartView, error) {
	const op = "CartService.AddItem"
	ctx, span := util.StartSpan(ctx, op)
	span.SetAttributes(util.Int64Attr("product_id", req.ProductID))

	var view *models.CartView
	err := s.repo.WithTx(ctx, func(q store.Querier) error {
		if req.Quantity <= 0 {
			return apperr.Invalid(op, "Quantity must be positive")
		}

		cart, err := lockedCart(ctx, q, userID)
		if err != nil {
			return err
		}

		product, err := q.GetProductByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound(op, "product", req.ProductID)
			}
			return fmt.Errorf("failed to load product: %w", err)
		}

		if req.Quantity > product.StockQuantity {
			return apperr.InsufficientStock(op, product.ID, product.StockQuantity,
				"Not enough stock for %s. Available: %d", product.Name, product.StockQuantity)
		}

		existing, err := q.GetCartItemByProduct(ctx, cart.ID, product.ID)
		switch {
		case err == nil:
			newTotal := existing.Quantity + req.Quantity
			if newTotal > product.StockQuantity {
				remaining := product.StockQuantity - existing.Quantity
				if remaining < 0 {
					remaining = 0
				}
				return apperr.InsufficientStock(op, product.ID, remaining,
					"Cannot add %d more of %s. You already have %d in your cart and can add at most %d more",
					req.Quantity, product.Name, existing.Quantity, remaining)
			}
			if err := q.UpdateCartItemQuantity(ctx, existing.ID, newTotal); err != nil {
				return fmt.Errorf("failed to update cart item: %w", err)
			}
		case errors.Is(err, store.ErrNotFound):
			item := &models.CartItem{
				CartID:          cart.ID,
				ProductID:       product.ID,
				Quantity:        req.Quantity,
				DiscountedPrice: decimal.NullDecimal{Decimal: product.Price, Valid: true},
			}
			if err := q.CreateCartItem(ctx, item); err != nil {
				return fmt.Errorf("failed to create cart item: %w", err)
			}
		default:
			return fmt.Errorf("failed to load cart item: %w", err)
		}

		view, err = s.view(ctx, q, cart)
		return err
	})
	util.EndSpan(span, err)

	if err != nil {
		util.CartOperationsFailedTotal.WithLabelValues("add", apperr.Code(err)).Inc()
		return nil, err
	}

	util.CartItemsAddedTotal.Inc()
	s.logger.Info("Item added to cart",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity))
	return view, nil
}

// Clear removes every item; the cart itself persists
func (s *CartService) Clear(ctx context.Context, userID int64) (*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")

	var view *models.CartView
	err := s.repo.WithTx(ctx, func(q store.Querier) error {
		cart, err := lockedCart(ctx, q, userID)
		if err != nil {
			return err
		}
		removed, err := q.ClearCart(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		s.logger.Debug("Cart cleared", zap.Int64("cart_id", cart.ID), zap.Int64("removed", removed))
		view = models.NewCartView(cart, nil)
		return nil
	})
	util.EndSpan(span, err)

	if err != nil {
		util.CartOperationsFailedTotal.WithLabelValues("clear", apperr.Code(err)).Inc()
		return nil, err
	}
	return view, nil
}

// ApplyDiscount prices every not-yet-discounted item of the discount's category.
// Items already discounted keep their price, so repeated calls are harmless.
func (s *CartService) ApplyDiscount(ctx context.Context, userID int64, code string) (*models.CartView, error) {
	const op = "CartService.ApplyDiscount"
	ctx, span := util.StartSpan(ctx, op)

	code = strings.TrimSpace(code)
	applied := 0

	var view *models.CartView
	err := s.repo.WithTx(ctx, func(q store.Querier) error {
		if code == "" {
			return apperr.Invalid(op, "Discount code is required")
		}

		cart, err := lockedCart(ctx, q, userID)
		if err != nil {
			return err
		}

		discount, err := s.discounts.Lookup(ctx, q, code)
		if err != nil {
			return err
		}
		if !s.discounts.IsValid(discount) {
			return apperr.Invalid(op, "Discount code %s has expired", discount.Code)
		}

		lines, err := q.GetCartLines(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to load cart lines: %w", err)
		}
		for _, line := range lines {
			if line.DiscountApplied || line.Product.CategoryID != discount.CategoryID {
				continue
			}
			price := discount.Apply(line.Product.Price)
			if err := q.ApplyCartItemDiscount(ctx, line.ID, price); err != nil {
				return fmt.Errorf("failed to apply discount to item %d: %w", line.ID, err)
			}
			applied++
		}

		view, err = s.view(ctx, q, cart)
		return err
	})
	util.EndSpan(span, err)

	if err != nil {
		util.CartOperationsFailedTotal.WithLabelValues("apply_discount", apperr.Code(err)).Inc()
		return nil, err
	}

	util.DiscountedItemsTotal.Add(float64(applied))
	s.logger.Info("Discount applied",
		zap.Int64("user_id", userID),
		zap.String("code", code),
		zap.Int("items", applied))
	return view, nil
}

// ListCarts returns every user's cart with its totals; staff only
func (s *CartService) ListCarts(ctx context.Context, principal *models.User) ([]*models.CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ListCarts")
	defer span.End()

	if !principal.IsStaff {
		return nil, apperr.Forbidden("CartService.ListCarts", "Only staff can list carts")
	}

	carts, err := s.repo.GetCarts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	lines, err := s.repo.GetAllCartLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart lines: %w", err)
	}

	byCart := make(map[int64][]models.CartLine, len(carts))
	for _, line := range lines {
		byCart[line.CartID] = append(byCart[line.CartID], line)
	}
	views := make([]*models.CartView, 0, len(carts))
	for i := range carts {
		views = append(views, models.NewCartView(&carts[i], byCart[carts[i].ID]))
	}
	return views, nil
}

func (s *CartService) view(ctx context.Context, q store.Querier, cart *models.Cart) (*models.CartView, error) {
	lines, err := q.GetCartLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart lines: %w", err)
	}
	return models.NewCartView(cart, lines), nil
}

// lockedCart loads (or creates) the user's cart and locks it for the rest of the transaction
func lockedCart(ctx context.Context, q store.Querier, userID int64) (*models.Cart, error) {
	cart, err := q.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if err := q.LockCart(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return cart, nil
}
