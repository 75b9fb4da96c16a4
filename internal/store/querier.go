package store

import (
	"context"
	"errors"

	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned (wrapped) when a row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned (wrapped) on a unique constraint violation
	ErrDuplicate = errors.New("duplicate")
)

// Querier is every query the cart and order core issues.
// It is satisfied both by the pooled store and by a store bound to a transaction.
type Querier interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GrantStaff(ctx context.Context, usernames []string) (int64, error)

	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID int64, quantity int) error

	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	LockCart(ctx context.Context, cartID int64) error
	GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error)
	GetCarts(ctx context.Context) ([]models.Cart, error)
	GetAllCartLines(ctx context.Context) ([]models.CartLine, error)
	GetCartItemByProduct(ctx context.Context, cartID, productID int64) (*models.CartItem, error)
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, itemID int64, quantity int) error
	ApplyCartItemDiscount(ctx context.Context, itemID int64, price decimal.Decimal) error
	ClearCart(ctx context.Context, cartID int64) (int64, error)

	CreateDiscount(ctx context.Context, discount *models.Discount) error
	GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error)
	GetDiscounts(ctx context.Context) ([]models.Discount, error)
	DeleteDiscount(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
	DeleteOrder(ctx context.Context, orderID int64) error
}

// Repository is a Querier that can also open transactions
type Repository interface {
	Querier

	// WithTx runs fn inside one transaction. Any error from fn, or a cancelled
	// context, rolls back every write fn made.
	WithTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
}
