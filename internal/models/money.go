package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amounts leave the service with exactly two decimals ("18.00", not "18").
// Each type below overrides only its money fields; the rest marshal as tagged.

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		Price string `json:"price"`
	}{product(p), money(p.Price)})
}

func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		Total string `json:"total"`
	}{order(o), money(o.Total)})
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	type orderItem OrderItem
	return json.Marshal(struct {
		orderItem
		UnitPrice  string `json:"unit_price"`
		TotalPrice string `json:"total_price"`
	}{orderItem(i), money(i.UnitPrice), money(i.TotalPrice)})
}

func (p ProductSimple) MarshalJSON() ([]byte, error) {
	type productSimple ProductSimple
	return json.Marshal(struct {
		productSimple
		Price string `json:"price"`
	}{productSimple(p), money(p.Price)})
}

func (p ProductFull) MarshalJSON() ([]byte, error) {
	type productFull ProductFull
	return json.Marshal(struct {
		productFull
		Price string `json:"price"`
	}{productFull(p), money(p.Price)})
}

func (v CartItemView) MarshalJSON() ([]byte, error) {
	type cartItemView CartItemView
	return json.Marshal(struct {
		cartItemView
		DiscountedPrice *string `json:"discounted_price"`
		TotalPrice      string  `json:"total_price"`
	}{cartItemView(v), nullMoney(v.DiscountedPrice), money(v.TotalPrice)})
}

func (v CartView) MarshalJSON() ([]byte, error) {
	type cartView CartView
	return json.Marshal(struct {
		cartView
		TotalAmount   string `json:"total_amount"`
		OriginalTotal string `json:"original_total"`
		TotalSavings  string `json:"total_savings"`
	}{cartView(v), money(v.TotalAmount), money(v.OriginalTotal), money(v.TotalSavings)})
}

func (v OrderItemView) MarshalJSON() ([]byte, error) {
	type orderItemView OrderItemView
	return json.Marshal(struct {
		orderItemView
		ProductPrice     string `json:"product_price"`
		PaidPricePerUnit string `json:"paid_price_per_unit"`
		TotalPrice       string `json:"total_price"`
	}{orderItemView(v), money(v.ProductPrice), money(v.PaidPricePerUnit), money(v.TotalPrice)})
}

func (r CheckoutResult) MarshalJSON() ([]byte, error) {
	type checkoutResult CheckoutResult
	return json.Marshal(struct {
		checkoutResult
		Total string `json:"total"`
	}{checkoutResult(r), money(r.Total)})
}
