package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/shopspring/decimal"
)

// fakeState is the whole in-memory database. It is copied on WithTx so a failed
// transaction can be rolled back by restoring the copy.
type fakeState struct {
	users      map[int64]models.User
	categories map[int64]models.Category
	products   map[int64]models.Product
	carts      map[int64]models.Cart
	cartItems  map[int64]models.CartItem
	discounts  map[int64]models.Discount
	orders     map[int64]models.Order
	orderItems map[int64]models.OrderItem
	nextID     int64
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeState) clone() *fakeState {
	return &fakeState{
		users:      copyMap(s.users),
		categories: copyMap(s.categories),
		products:   copyMap(s.products),
		carts:      copyMap(s.carts),
		cartItems:  copyMap(s.cartItems),
		discounts:  copyMap(s.discounts),
		orders:     copyMap(s.orders),
		orderItems: copyMap(s.orderItems),
		nextID:     s.nextID,
	}
}

type fakeRepo struct {
	st *fakeState

	// failOn makes the named method return the error
	failOn map[string]error
	// beforeReserve runs before every ReserveStock, e.g. to simulate a concurrent checkout
	beforeReserve func(st *fakeState, productID int64)

	txCount  int
	rollback int

	// lockOrder lists product ids in the order the last transaction first locked their rows
	lockOrder []int64
	locked    map[int64]bool
}

var _ store.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		st: &fakeState{
			users:      map[int64]models.User{},
			categories: map[int64]models.Category{},
			products:   map[int64]models.Product{},
			carts:      map[int64]models.Cart{},
			cartItems:  map[int64]models.CartItem{},
			discounts:  map[int64]models.Discount{},
			orders:     map[int64]models.Order{},
			orderItems: map[int64]models.OrderItem{},
			nextID:     1000,
		},
		failOn: map[string]error{},
	}
}

func (r *fakeRepo) id() int64 {
	r.st.nextID++
	return r.st.nextID
}

func (r *fakeRepo) fail(method string) error {
	return r.failOn[method]
}

// seeding helpers

func (r *fakeRepo) addUser(id int64, username string, staff bool) *models.User {
	u := models.User{ID: id, Username: username, IsStaff: staff}
	r.st.users[id] = u
	return &u
}

func (r *fakeRepo) addCategory(id int64, name string) {
	r.st.categories[id] = models.Category{ID: id, Name: name}
}

func (r *fakeRepo) addProduct(id, categoryID int64, name, price string, stock int) {
	r.st.products[id] = models.Product{
		ID:            id,
		Name:          name,
		CategoryID:    categoryID,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func (r *fakeRepo) addDiscount(code, percentage string, expiry time.Time, categoryID int64) {
	id := r.id()
	r.st.discounts[id] = models.Discount{
		ID:         id,
		Code:       code,
		Percentage: decimal.RequireFromString(percentage),
		ExpiryDate: expiry,
		CategoryID: categoryID,
	}
}

func (r *fakeRepo) stock(productID int64) int {
	return r.st.products[productID].StockQuantity
}

func (r *fakeRepo) cartItemsOf(userID int64) []models.CartItem {
	var items []models.CartItem
	for _, cart := range r.st.carts {
		if cart.UserID != userID {
			continue
		}
		for _, item := range r.st.cartItems {
			if item.CartID == cart.ID {
				items = append(items, item)
			}
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (r *fakeRepo) reservedQuantity(productID int64) int {
	total := 0
	for _, item := range r.st.orderItems {
		if item.ProductID != productID {
			continue
		}
		if r.st.orders[item.OrderID].Status != models.OrderStatusCancelled {
			total += item.Quantity
		}
	}
	return total
}

// store.Repository

func (r *fakeRepo) WithTx(ctx context.Context, fn func(q store.Querier) error) error {
	r.txCount++
	r.lockOrder, r.locked = nil, map[int64]bool{}
	snapshot := r.st.clone()
	err := fn(r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.rollback++
		r.st = snapshot
		return err
	}
	return nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return r.fail("Ping") }

func (r *fakeRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	if err := r.fail("GetProductByID"); err != nil {
		return nil, err
	}
	p, ok := r.st.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

// lockRow records the first time a transaction takes a product row lock
func (r *fakeRepo) lockRow(productID int64) {
	if r.locked == nil || r.locked[productID] {
		return
	}
	r.locked[productID] = true
	r.lockOrder = append(r.lockOrder, productID)
}

func (r *fakeRepo) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	r.lockRow(id)
	return r.GetProductByID(ctx, id)
}

func (r *fakeRepo) GetProducts(ctx context.Context) ([]models.Product, error) {
	if err := r.fail("GetProducts"); err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(r.st.products))
	for _, p := range r.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	c, ok := r.st.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, store.ErrNotFound)
	}
	return &c, nil
}

func (r *fakeRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return &u, nil
}

func (r *fakeRepo) GrantStaff(ctx context.Context, usernames []string) (int64, error) {
	var n int64
	for id, u := range r.st.users {
		for _, name := range usernames {
			if u.Username == name && !u.IsStaff {
				u.IsStaff = true
				r.st.users[id] = u
				n++
			}
		}
	}
	return n, nil
}

func (r *fakeRepo) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	if err := r.fail("ReserveStock"); err != nil {
		return false, err
	}
	r.lockRow(productID)
	if r.beforeReserve != nil {
		r.beforeReserve(r.st, productID)
	}
	p, ok := r.st.products[productID]
	if !ok || p.StockQuantity < quantity {
		return false, nil
	}
	p.StockQuantity -= quantity
	r.st.products[productID] = p
	return true, nil
}

func (r *fakeRepo) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	if err := r.fail("ReleaseStock"); err != nil {
		return err
	}
	r.lockRow(productID)
	p, ok := r.st.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	p.StockQuantity += quantity
	r.st.products[productID] = p
	return nil
}

func (r *fakeRepo) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	for _, c := range r.st.carts {
		if c.UserID == userID {
			cart := c
			return &cart, nil
		}
	}
	cart := models.Cart{ID: r.id(), UserID: userID, CreatedAt: time.Now()}
	r.st.carts[cart.ID] = cart
	return &cart, nil
}

func (r *fakeRepo) LockCart(ctx context.Context, cartID int64) error {
	if _, ok := r.st.carts[cartID]; !ok {
		return fmt.Errorf("cart %d: %w", cartID, store.ErrNotFound)
	}
	return nil
}

func (r *fakeRepo) GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	var lines []models.CartLine
	for _, item := range r.st.cartItems {
		if item.CartID != cartID {
			continue
		}
		product := r.st.products[item.ProductID]
		lines = append(lines, models.CartLine{
			CartItem: item,
			Product:  product,
			Category: r.st.categories[product.CategoryID],
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (r *fakeRepo) GetCarts(ctx context.Context) ([]models.Cart, error) {
	if err := r.fail("GetCarts"); err != nil {
		return nil, err
	}
	carts := []models.Cart{}
	for _, cart := range r.st.carts {
		carts = append(carts, cart)
	}
	sort.Slice(carts, func(i, j int) bool { return carts[i].ID < carts[j].ID })
	return carts, nil
}

func (r *fakeRepo) GetAllCartLines(ctx context.Context) ([]models.CartLine, error) {
	var lines []models.CartLine
	for cartID := range r.st.carts {
		cartLines, _ := r.GetCartLines(ctx, cartID)
		lines = append(lines, cartLines...)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].CartID < lines[j].CartID })
	return lines, nil
}

func (r *fakeRepo) GetCartItemByProduct(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	for _, item := range r.st.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			found := item
			return &found, nil
		}
	}
	return nil, fmt.Errorf("cart item: %w", store.ErrNotFound)
}

func (r *fakeRepo) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	if err := r.fail("CreateCartItem"); err != nil {
		return err
	}
	item.ID = r.id()
	r.st.cartItems[item.ID] = *item
	return nil
}

func (r *fakeRepo) UpdateCartItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	item := r.st.cartItems[itemID]
	item.Quantity = quantity
	r.st.cartItems[itemID] = item
	return nil
}

func (r *fakeRepo) ApplyCartItemDiscount(ctx context.Context, itemID int64, price decimal.Decimal) error {
	item := r.st.cartItems[itemID]
	if item.DiscountApplied {
		return nil
	}
	item.DiscountedPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	item.DiscountApplied = true
	r.st.cartItems[itemID] = item
	return nil
}

func (r *fakeRepo) ClearCart(ctx context.Context, cartID int64) (int64, error) {
	if err := r.fail("ClearCart"); err != nil {
		return 0, err
	}
	var n int64
	for id, item := range r.st.cartItems {
		if item.CartID == cartID {
			delete(r.st.cartItems, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CreateDiscount(ctx context.Context, discount *models.Discount) error {
	for _, d := range r.st.discounts {
		if d.Code == discount.Code {
			return fmt.Errorf("discount %s: %w", discount.Code, store.ErrDuplicate)
		}
	}
	discount.ID = r.id()
	r.st.discounts[discount.ID] = *discount
	return nil
}

func (r *fakeRepo) GetDiscountByCode(ctx context.Context, code string) (*models.Discount, error) {
	for _, d := range r.st.discounts {
		if d.Code == code {
			found := d
			return &found, nil
		}
	}
	return nil, fmt.Errorf("discount %s: %w", code, store.ErrNotFound)
}

func (r *fakeRepo) GetDiscounts(ctx context.Context) ([]models.Discount, error) {
	out := make([]models.Discount, 0, len(r.st.discounts))
	for _, d := range r.st.discounts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) DeleteDiscount(ctx context.Context, id int64) error {
	if _, ok := r.st.discounts[id]; !ok {
		return fmt.Errorf("discount %d: %w", id, store.ErrNotFound)
	}
	delete(r.st.discounts, id)
	return nil
}

func (r *fakeRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.fail("CreateOrder"); err != nil {
		return err
	}
	order.ID = r.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	r.st.orders[order.ID] = *order
	return nil
}

func (r *fakeRepo) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	item.ID = r.id()
	r.st.orderItems[item.ID] = *item
	return nil
}

func (r *fakeRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (r *fakeRepo) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return r.GetOrderByID(ctx, id)
}

func (r *fakeRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.st.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var out []models.OrderItem
	for _, item := range r.st.orderItems {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error) {
	items, _ := r.GetOrderItemsByOrderID(ctx, orderID)
	out := make([]models.OrderItemDetail, 0, len(items))
	for _, item := range items {
		p := r.st.products[item.ProductID]
		out = append(out, models.OrderItemDetail{OrderItem: item, ProductName: p.Name, ProductPrice: p.Price})
	}
	return out, nil
}

func (r *fakeRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	if err := r.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	o := r.st.orders[orderID]
	o.Status = status
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return nil
}

func (r *fakeRepo) DeleteOrder(ctx context.Context, orderID int64) error {
	if _, ok := r.st.orders[orderID]; !ok {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	delete(r.st.orders, orderID)
	for id, item := range r.st.orderItems {
		if item.OrderID == orderID {
			delete(r.st.orderItems, id)
		}
	}
	return nil
}

// recordingPublisher captures published events
type recordingPublisher struct {
	created []*models.OrderCreatedEvent
	changed []*models.OrderStatusChangedEvent
	deleted []*models.OrderDeletedEvent
	err     error
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	p.created = append(p.created, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	p.changed = append(p.changed, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderDeleted(ctx context.Context, e *models.OrderDeletedEvent) error {
	p.deleted = append(p.deleted, e)
	return p.err
}

// memoryIdempotency is an in-memory IdempotencyStore
type memoryIdempotency struct {
	keys map[string]int64
}

func (m *memoryIdempotency) GetIdempotentOrder(ctx context.Context, key string) (int64, bool, error) {
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *memoryIdempotency) SetIdempotentOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	m.keys[key] = orderID
	return nil
}
