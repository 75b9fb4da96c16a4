package service

import (
	"context"
	"testing"
	"time"

	"shop-service/internal/models"

	"github.com/stretchr/testify/require"
)

const (
	productA = int64(1) // Books, 10.00, stock 5
	productB = int64(2) // Toys, 4.50, stock 10
	productC = int64(3) // Books, 20.00, stock 1

	booksCategory = int64(10)
	toysCategory  = int64(20)
)

type fixture struct {
	repo      *fakeRepo
	pub       *recordingPublisher
	idem      *memoryIdempotency
	discounts *DiscountCatalog
	carts     *CartService
	checkout  *CheckoutService
	orders    *OrderService

	owner *models.User
	other *models.User
	staff *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	repo.addCategory(booksCategory, "Books")
	repo.addCategory(toysCategory, "Toys")
	repo.addProduct(productA, booksCategory, "Product A", "10.00", 5)
	repo.addProduct(productB, toysCategory, "Product B", "4.50", 10)
	repo.addProduct(productC, booksCategory, "Product C", "20.00", 1)
	repo.addDiscount("SAVE10", "10", time.Now().Add(24*time.Hour), booksCategory)
	repo.addDiscount("EXPIRED50", "50", time.Now().Add(-time.Hour), booksCategory)

	pub := &recordingPublisher{}
	idem := &memoryIdempotency{keys: map[string]int64{}}
	ledger := NewStockLedger()
	discounts := NewDiscountCatalog(repo)

	return &fixture{
		repo:      repo,
		pub:       pub,
		idem:      idem,
		discounts: discounts,
		carts:     NewCartService(repo, discounts),
		checkout:  NewCheckoutService(repo, ledger, pub, idem, time.Hour),
		orders:    NewOrderService(repo, ledger, pub),
		owner:     repo.addUser(1, "alice", false),
		other:     repo.addUser(2, "bob", false),
		staff:     repo.addUser(3, "carol", true),
	}
}

func (f *fixture) add(t *testing.T, user *models.User, productID int64, qty int) *models.CartView {
	t.Helper()
	view, err := f.carts.AddItem(context.Background(), user.ID, &AddItemRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
	return view
}

// placeOrder puts qty of a product in the user's cart and checks it out
func (f *fixture) placeOrder(t *testing.T, user *models.User, productID int64, qty int) int64 {
	t.Helper()
	f.add(t, user, productID, qty)
	res, err := f.checkout.Checkout(context.Background(), user.ID, "")
	require.NoError(t, err)
	return res.OrderID
}

// forceStatus moves an order to status directly, keeping stock consistent with it
func (f *fixture) forceStatus(orderID int64, status models.OrderStatus) {
	order := f.repo.st.orders[orderID]
	wasCancelled := order.Status == models.OrderStatusCancelled
	isCancelled := status == models.OrderStatusCancelled
	for _, item := range f.repo.st.orderItems {
		if item.OrderID != orderID {
			continue
		}
		p := f.repo.st.products[item.ProductID]
		switch {
		case isCancelled && !wasCancelled:
			p.StockQuantity += item.Quantity
		case wasCancelled && !isCancelled:
			p.StockQuantity -= item.Quantity
		}
		f.repo.st.products[item.ProductID] = p
	}
	order.Status = status
	f.repo.st.orders[orderID] = order
}

// supply is stock plus every quantity held by a non-cancelled order
func (f *fixture) supply(productID int64) int {
	return f.repo.stock(productID) + f.repo.reservedQuantity(productID)
}
