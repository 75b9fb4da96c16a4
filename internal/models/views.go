package models

import "github.com/shopspring/decimal"

// ProductSimple is the flat product projection, category by id
type ProductSimple struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      int64           `json:"category"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Weight        string          `json:"weight"`
	Dimensions    string          `json:"dimensions"`
}

// ProductFull is the product projection with the category nested
type ProductFull struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Description   string          `json:"description"`
	Category      Category        `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
	Weight        string          `json:"weight"`
	Dimensions    string          `json:"dimensions"`
}

// NewProductSimple projects p without its category
func NewProductSimple(p Product) ProductSimple {
	return ProductSimple{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.CategoryID,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Weight:        p.Weight,
		Dimensions:    p.Dimensions,
	}
}

// NewProductFull projects p with c nested
func NewProductFull(p Product, c Category) ProductFull {
	return ProductFull{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		Description:   p.Description,
		Category:      c,
		StockQuantity: p.StockQuantity,
		Weight:        p.Weight,
		Dimensions:    p.Dimensions,
	}
}

// CartItemView is a cart line as returned to clients
type CartItemView struct {
	ID              int64               `json:"id"`
	Product         ProductFull         `json:"product"`
	Quantity        int                 `json:"quantity"`
	DiscountedPrice decimal.NullDecimal `json:"discounted_price"`
	DiscountApplied bool                `json:"discount_applied"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
}

// CartView is a cart with its computed totals
type CartView struct {
	ID            int64           `json:"id"`
	User          int64           `json:"user"`
	Items         []CartItemView  `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	TotalSavings  decimal.Decimal `json:"total_savings"`
}

// NewCartItemView projects a single line
func NewCartItemView(line CartLine) CartItemView {
	return CartItemView{
		ID:              line.ID,
		Product:         NewProductFull(line.Product, line.Category),
		Quantity:        line.Quantity,
		DiscountedPrice: line.DiscountedPrice,
		DiscountApplied: line.DiscountApplied,
		TotalPrice:      line.Total(),
	}
}

// NewCartView projects a cart and computes total, original total and savings
func NewCartView(cart *Cart, lines []CartLine) *CartView {
	view := &CartView{
		ID:            cart.ID,
		User:          cart.UserID,
		Items:         make([]CartItemView, 0, len(lines)),
		TotalAmount:   decimal.Zero,
		OriginalTotal: decimal.Zero,
	}
	for _, line := range lines {
		view.Items = append(view.Items, NewCartItemView(line))
		view.TotalAmount = view.TotalAmount.Add(line.Total())
		view.OriginalTotal = view.OriginalTotal.Add(line.OriginalTotal())
	}
	view.TotalSavings = view.OriginalTotal.Sub(view.TotalAmount)
	return view
}

// OrderItemView is an order line as returned to clients
type OrderItemView struct {
	Product          string          `json:"product"`
	ProductPrice     decimal.Decimal `json:"product_price"`
	PaidPricePerUnit decimal.Decimal `json:"paid_price_per_unit"`
	Quantity         int             `json:"quantity"`
	TotalPrice       decimal.Decimal `json:"total_price"`
}

// NewOrderItemViews projects order item details
func NewOrderItemViews(items []OrderItemDetail) []OrderItemView {
	views := make([]OrderItemView, 0, len(items))
	for _, item := range items {
		views = append(views, OrderItemView{
			Product:          item.ProductName,
			ProductPrice:     item.ProductPrice,
			PaidPricePerUnit: item.UnitPrice,
			Quantity:         item.Quantity,
			TotalPrice:       item.TotalPrice,
		})
	}
	return views
}

// CheckoutResult is returned after a successful checkout
type CheckoutResult struct {
	Message string          `json:"message"`
	OrderID int64           `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
}
