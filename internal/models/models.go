package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products; a discount is bound to exactly one category
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Product is a catalog record. Its stock is only mutated through the stock ledger.
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	CategoryID    int64           `db:"category_id" json:"category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	Weight        string          `db:"weight" json:"weight"`
	Dimensions    string          `db:"dimensions" json:"dimensions"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// User is the authenticated principal as seen by the cart and order core
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	IsStaff   bool      `db:"is_staff" json:"is_staff"`
	IsBanned  bool      `db:"is_banned" json:"is_banned"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Cart is owned by exactly one user and outlives its items
type Cart struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartItem is a single product line in a cart
type CartItem struct {
	ID              int64               `db:"id" json:"id"`
	CartID          int64               `db:"cart_id" json:"cart_id"`
	ProductID       int64               `db:"product_id" json:"product_id"`
	Quantity        int                 `db:"quantity" json:"quantity"`
	DiscountedPrice decimal.NullDecimal `db:"discounted_price" json:"discounted_price"`
	DiscountApplied bool                `db:"discount_applied" json:"discount_applied"`
}

// CartLine is a cart item joined with its product and the product's category
type CartLine struct {
	CartItem
	Product  Product  `db:"product"`
	Category Category `db:"category"`
}

// UnitPrice is the price a line will be charged at: the discounted price when set, else the product price
func (l CartLine) UnitPrice() decimal.Decimal {
	if l.DiscountedPrice.Valid {
		return l.DiscountedPrice.Decimal
	}
	return l.Product.Price
}

// Total is UnitPrice times quantity
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OriginalTotal is the undiscounted current product price times quantity
func (l CartLine) OriginalTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Discount is a percentage off every product of one category until expiry
type Discount struct {
	ID         int64           `db:"id" json:"id"`
	Code       string          `db:"code" json:"code"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
	ExpiryDate time.Time       `db:"expiry_date" json:"expiry_date"`
	CategoryID int64           `db:"category_id" json:"category"`
}

// IsValid reports whether the discount is still usable at now
func (d *Discount) IsValid(now time.Time) bool {
	return now.Before(d.ExpiryDate)
}

// Apply returns price reduced by the discount percentage, rounded to cents
func (d *Discount) Apply(price decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(d.Percentage.Div(decimal.NewFromInt(100)))
	return price.Mul(factor).Round(2)
}

// OrderStatus is the persisted single-letter order state
type OrderStatus string

// Order statuses
const (
	OrderStatusPending   OrderStatus = "P"
	OrderStatusShipped   OrderStatus = "S"
	OrderStatusDelivered OrderStatus = "D"
	OrderStatusCancelled OrderStatus = "C"
)

// OrderStatuses lists every state in declaration order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var statusNames = map[OrderStatus]string{
	OrderStatusPending:   "Pending",
	OrderStatusShipped:   "Shipped",
	OrderStatusDelivered: "Delivered",
	OrderStatusCancelled: "Cancelled",
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return string(s)
}

// ParseOrderStatus accepts either the status letter or its name, case-insensitively
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	raw = strings.TrimSpace(raw)
	for status, name := range statusNames {
		if strings.EqualFold(raw, string(status)) || strings.EqualFold(raw, name) {
			return status, true
		}
	}
	return "", false
}

// Order is an immutable priced record of a checkout; only its status changes
type Order struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user"`
	Total     decimal.Decimal `db:"total" json:"total"`
	Status    OrderStatus     `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"date"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem freezes the price paid for one product line
type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	ProductID  int64           `db:"product_id" json:"product_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
}

// OrderItemDetail is an order item joined with the product's current name and price
type OrderItemDetail struct {
	OrderItem
	ProductName  string          `db:"product_name"`
	ProductPrice decimal.Decimal `db:"product_price"`
}
