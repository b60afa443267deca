package estore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"goflare.io/estore/broker"
	"goflare.io/estore/models"
	"goflare.io/estore/models/enum"
	"goflare.io/estore/stock"
)

// memStore 以 map 模擬資料庫，回傳值一律為複本
type memStore struct {
	mu sync.Mutex

	nextID            uint64
	users             map[uint64]models.User
	categories        map[uint64]models.Category
	productCategories map[uint64][]uint64
	products          map[uint64]models.Product
	plans             map[uint64]models.ProductPlan
	carts             map[uint64]models.Cart
	cartItems         map[uint64]models.CartItem
	orders            map[uint64]models.Order
	orderItems        map[uint64]models.ProductOrder
	payments          map[uint64]models.Payment
	movements         []models.StockMovement
	events            map[string]models.Event
}

func newMemStore() *memStore {
	return &memStore{
		users:             make(map[uint64]models.User),
		categories:        make(map[uint64]models.Category),
		productCategories: make(map[uint64][]uint64),
		products:          make(map[uint64]models.Product),
		plans:             make(map[uint64]models.ProductPlan),
		carts:             make(map[uint64]models.Cart),
		cartItems:         make(map[uint64]models.CartItem),
		orders:            make(map[uint64]models.Order),
		orderItems:        make(map[uint64]models.ProductOrder),
		payments:          make(map[uint64]models.Payment),
		events:            make(map[string]models.Event),
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) snapshot() *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	pc := make(map[uint64][]uint64, len(m.productCategories))
	for k, v := range m.productCategories {
		pc[k] = append([]uint64(nil), v...)
	}
	return &memStore{
		nextID:            m.nextID,
		users:             cloneMap(m.users),
		categories:        cloneMap(m.categories),
		productCategories: pc,
		products:          cloneMap(m.products),
		plans:             cloneMap(m.plans),
		carts:             cloneMap(m.carts),
		cartItems:         cloneMap(m.cartItems),
		orders:            cloneMap(m.orders),
		orderItems:        cloneMap(m.orderItems),
		payments:          cloneMap(m.payments),
		movements:         append([]models.StockMovement(nil), m.movements...),
		events:            cloneMap(m.events),
	}
}

func (m *memStore) restore(s *memStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = s.nextID
	m.users = s.users
	m.categories = s.categories
	m.productCategories = s.productCategories
	m.products = s.products
	m.plans = s.plans
	m.carts = s.carts
	m.cartItems = s.cartItems
	m.orders = s.orders
	m.orderItems = s.orderItems
	m.payments = s.payments
	m.movements = s.movements
	m.events = s.events
}

func (m *memStore) repositories() Repositories {
	return Repositories{
		User:     m,
		Category: memCategories{m},
		Product:  m,
		Cart:     m,
		Order:    m,
		Payment:  m,
		Stock:    m,
		Event:    memEvents{m},
	}
}

// memTx 失敗時還原交易開始前的狀態
type memTx struct {
	store        *memStore
	commits      int
	aborts       int
	serializable int

	// conflict 在第一次序列化嘗試前執行，模擬並行交易先提交而被迫重試
	conflict func()
}

func (t *memTx) ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	before := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(before)
		t.aborts++
		return err
	}
	t.commits++
	return nil
}

func (t *memTx) ExecuteSerializableTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	t.serializable++
	if t.conflict != nil {
		conflict := t.conflict
		t.conflict = nil
		conflict()
		t.aborts++
	}
	return t.ExecuteTransaction(ctx, fn)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broker.Envelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, env broker.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []broker.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]broker.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// users

func (m *memStore) CreateUser(_ context.Context, _ pgx.Tx, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, models.ErrEmailTaken
		}
	}
	stored := *u
	stored.ID = m.id()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.users[stored.ID] = stored
	return &stored, nil
}

func (m *memStore) GetUser(_ context.Context, _ pgx.Tx, userID uint64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, _ pgx.Tx, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

// categories

type memCategories struct{ *memStore }

func (m memCategories) Create(_ context.Context, _ pgx.Tx, c *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	stored.ID = m.id()
	m.categories[stored.ID] = stored
	return &stored, nil
}

func (m memCategories) GetByID(_ context.Context, _ pgx.Tx, id uint64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, models.ErrCategoryNotFound
	}
	return &c, nil
}

func (m memCategories) Update(_ context.Context, _ pgx.Tx, c *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return nil, models.ErrCategoryNotFound
	}
	stored := *c
	m.categories[c.ID] = stored
	return &stored, nil
}

func (m memCategories) Delete(_ context.Context, _ pgx.Tx, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return models.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m memCategories) List(_ context.Context, _ pgx.Tx) ([]*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedCategories(func(models.Category) bool { return true }), nil
}

func (m memCategories) ListSubcategories(_ context.Context, _ pgx.Tx, parentID uint64) ([]*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedCategories(func(c models.Category) bool {
		return c.ParentID != nil && *c.ParentID == parentID
	}), nil
}

func (m memCategories) SetProductCategories(_ context.Context, _ pgx.Tx, productID uint64, ids []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCategories[productID] = append([]uint64(nil), ids...)
	return nil
}

func (m memCategories) ListByProductIDs(_ context.Context, _ pgx.Tx, productIDs []uint64) (map[uint64][]*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64][]*models.Category)
	for _, pid := range productIDs {
		for _, cid := range m.productCategories[pid] {
			if c, ok := m.categories[cid]; ok {
				out[pid] = append(out[pid], &c)
			}
		}
	}
	return out, nil
}

func (m *memStore) sortedCategories(keep func(models.Category) bool) []*models.Category {
	out := make([]*models.Category, 0)
	for _, c := range m.categories {
		if keep(c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// products

func (m *memStore) CreateProduct(_ context.Context, _ pgx.Tx, p *models.Product) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *p
	stored.ID = m.id()
	stored.Plans = nil
	stored.Categories = nil
	m.products[stored.ID] = stored
	return m.productLocked(stored.ID), nil
}

func (m *memStore) UpdateProduct(_ context.Context, _ pgx.Tx, p *models.Product) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	stored := *p
	stored.Quantity = existing.Quantity
	stored.Plans = nil
	stored.Categories = nil
	m.products[p.ID] = stored
	return m.productLocked(p.ID), nil
}

func (m *memStore) productLocked(id uint64) *models.Product {
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	p.Plans = make([]*models.ProductPlan, 0)
	for _, plan := range m.plans {
		if plan.ProductID == id {
			plan := plan
			p.Plans = append(p.Plans, &plan)
		}
	}
	sort.Slice(p.Plans, func(i, j int) bool { return p.Plans[i].ID < p.Plans[j].ID })
	return &p
}

func (m *memStore) GetProduct(_ context.Context, _ pgx.Tx, productID uint64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.productLocked(productID); p != nil {
		return p, nil
	}
	return nil, models.ErrProductNotFound
}

func (m *memStore) GetProductBySlug(_ context.Context, _ pgx.Tx, slug string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.products {
		if p.Slug == slug {
			return m.productLocked(id), nil
		}
	}
	return nil, models.ErrProductNotFound
}

func (m *memStore) ListProducts(_ context.Context, _ pgx.Tx, categoryID *uint64, limit, offset uint64) ([]*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.products))
	for id := range m.products {
		if categoryID != nil && !containsID(m.productCategories[id], *categoryID) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ids = page(ids, limit, offset)

	out := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.productLocked(id))
	}
	return out, nil
}

func (m *memStore) DeleteProduct(_ context.Context, _ pgx.Tx, productID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return models.ErrProductNotFound
	}
	delete(m.products, productID)
	delete(m.productCategories, productID)
	for id, plan := range m.plans {
		if plan.ProductID == productID {
			delete(m.plans, id)
		}
	}
	return nil
}

func (m *memStore) SlugTaken(_ context.Context, _ pgx.Tx, slug string, excludeID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.products {
		if p.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreatePlan(_ context.Context, _ pgx.Tx, plan *models.ProductPlan) (*models.ProductPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *plan
	stored.ID = m.id()
	m.plans[stored.ID] = stored
	return &stored, nil
}

func (m *memStore) UpdatePlan(_ context.Context, _ pgx.Tx, plan *models.ProductPlan) (*models.ProductPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[plan.ID]; !ok {
		return nil, models.ErrPlanNotFound
	}
	stored := *plan
	m.plans[plan.ID] = stored
	return &stored, nil
}

func (m *memStore) GetPlan(_ context.Context, _ pgx.Tx, planID uint64) (*models.ProductPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok {
		return nil, models.ErrPlanNotFound
	}
	return &plan, nil
}

func (m *memStore) ListPlans(_ context.Context, _ pgx.Tx, productID uint64) ([]*models.ProductPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.productLocked(productID).Plans, nil
}

func (m *memStore) DeletePlan(_ context.Context, _ pgx.Tx, planID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[planID]; !ok {
		return models.ErrPlanNotFound
	}
	delete(m.plans, planID)
	return nil
}

// carts

func (m *memStore) CreateCart(_ context.Context, _ pgx.Tx, c *models.Cart) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	stored.ID = m.id()
	stored.Items = nil
	m.carts[stored.ID] = stored
	return m.cartLocked(stored.ID), nil
}

func (m *memStore) cartLocked(id uint64) *models.Cart {
	c, ok := m.carts[id]
	if !ok {
		return nil
	}
	c.Items = m.cartItemsLocked(id)
	return &c
}

func (m *memStore) cartItemsLocked(cartID uint64) []*models.CartItem {
	items := make([]*models.CartItem, 0)
	for _, item := range m.cartItems {
		if item.CartID == cartID {
			item := item
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (m *memStore) GetCart(_ context.Context, _ pgx.Tx, id uint64) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.cartLocked(id); c != nil {
		return c, nil
	}
	return nil, models.ErrCartNotFound
}

func (m *memStore) GetActiveCartByCustomerID(_ context.Context, _ pgx.Tx, customerID uint64) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.carts {
		if c.CustomerID == customerID && c.Status == enum.CartStatusActive {
			return m.cartLocked(id), nil
		}
	}
	return nil, models.ErrCartNotFound
}

func (m *memStore) UpdateCartStatus(_ context.Context, _ pgx.Tx, id uint64, status enum.CartStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return models.ErrCartNotFound
	}
	c.Status = status
	m.carts[id] = c
	return nil
}

func (m *memStore) AbandonExpiredCarts(_ context.Context, _ pgx.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.carts {
		if c.Status == enum.CartStatusActive && c.ExpiresAt.Before(now) {
			c.Status = enum.CartStatusAbandoned
			m.carts[id] = c
			n++
		}
	}
	return n, nil
}

func (m *memStore) AddCartItem(_ context.Context, _ pgx.Tx, item *models.CartItem) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *item
	stored.ID = m.id()
	m.cartItems[stored.ID] = stored
	return &stored, nil
}

func (m *memStore) GetCartItem(_ context.Context, _ pgx.Tx, cartID, itemID uint64) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return nil, models.ErrItemNotFound
	}
	return &item, nil
}

func (m *memStore) UpdateCartItem(_ context.Context, _ pgx.Tx, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.cartItems[item.ID]
	if !ok || existing.CartID != item.CartID {
		return models.ErrItemNotFound
	}
	m.cartItems[item.ID] = *item
	return nil
}

func (m *memStore) RemoveCartItem(_ context.Context, _ pgx.Tx, cartID, itemID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return models.ErrItemNotFound
	}
	delete(m.cartItems, itemID)
	return nil
}

func (m *memStore) ListCartItems(_ context.Context, _ pgx.Tx, cartID uint64) ([]*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartItemsLocked(cartID), nil
}

func (m *memStore) ClearCartItems(_ context.Context, _ pgx.Tx, cartID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.cartItems {
		if item.CartID == cartID {
			delete(m.cartItems, id)
		}
	}
	return nil
}

// orders

func (m *memStore) CreateOrder(_ context.Context, _ pgx.Tx, o *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *o
	stored.ID = m.id()
	stored.Items = nil
	stored.Payment = nil
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.orders[stored.ID] = stored
	return m.orderLocked(stored.ID), nil
}

func (m *memStore) orderLocked(id uint64) *models.Order {
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	o.Items = make([]*models.ProductOrder, 0)
	for _, item := range m.orderItems {
		if item.OrderID == id {
			item := item
			o.Items = append(o.Items, &item)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	return &o
}

func (m *memStore) GetOrder(_ context.Context, _ pgx.Tx, orderID uint64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o := m.orderLocked(orderID); o != nil {
		return o, nil
	}
	return nil, models.ErrOrderNotFound
}

func (m *memStore) listOrders(keep func(models.Order) bool, limit, offset uint64) []*models.Order {
	ids := make([]uint64, 0)
	for id, o := range m.orders {
		if keep(o) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	ids = page(ids, limit, offset)

	out := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.orderLocked(id))
	}
	return out
}

func (m *memStore) ListOrdersByCustomer(_ context.Context, _ pgx.Tx, customerID uint64, limit, offset uint64) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listOrders(func(o models.Order) bool { return o.CustomerID == customerID }, limit, offset), nil
}

func (m *memStore) ListOrders(_ context.Context, _ pgx.Tx, status *enum.OrderStatus, limit, offset uint64) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listOrders(func(o models.Order) bool { return status == nil || o.Status == *status }, limit, offset), nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, _ pgx.Tx, orderID uint64, status enum.OrderStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	m.orders[orderID] = o
	return nil
}

func (m *memStore) AddOrderItems(_ context.Context, _ pgx.Tx, items []*models.ProductOrder) ([]*models.ProductOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ProductOrder, 0, len(items))
	for _, item := range items {
		stored := *item
		stored.ID = m.id()
		m.orderItems[stored.ID] = stored
		out = append(out, &stored)
	}
	return out, nil
}

func (m *memStore) ListOrderItems(_ context.Context, _ pgx.Tx, orderID uint64) ([]*models.ProductOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderLocked(orderID).Items, nil
}

func (m *memStore) MarkReturnRequested(_ context.Context, _ pgx.Tx, orderID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.orderItems {
		if item.OrderID == orderID {
			item.ReturnRequested = true
			m.orderItems[id] = item
		}
	}
	return nil
}

func (m *memStore) MarkItemReturned(_ context.Context, _ pgx.Tx, orderID, itemID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.orderItems[itemID]
	if !ok || item.OrderID != orderID {
		return models.ErrItemNotFound
	}
	item.IsReturned = true
	m.orderItems[itemID] = item
	return nil
}

func (m *memStore) MarkAllItemsReturned(_ context.Context, _ pgx.Tx, orderID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.orderItems {
		if item.OrderID == orderID {
			item.IsReturned = true
			item.Amount = decimal.Zero
			item.Quantity = 0
			m.orderItems[id] = item
		}
	}
	return nil
}

// payments

func (m *memStore) CreatePayment(_ context.Context, _ pgx.Tx, p *models.Payment) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *p
	stored.ID = m.id()
	m.payments[stored.ID] = stored
	return &stored, nil
}

func (m *memStore) GetPaymentByOrderID(_ context.Context, _ pgx.Tx, orderID uint64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (m *memStore) GetPaymentByIntentID(_ context.Context, _ pgx.Tx, paymentIntentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.PaymentIntentID != "" && p.PaymentIntentID == paymentIntentID {
			return &p, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (m *memStore) ListPaymentsByOrderIDs(_ context.Context, _ pgx.Tx, orderIDs []uint64) (map[uint64]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]*models.Payment)
	for _, p := range m.payments {
		if containsID(orderIDs, p.OrderID) {
			p := p
			out[p.OrderID] = &p
		}
	}
	return out, nil
}

func (m *memStore) UpdatePaymentAmount(_ context.Context, _ pgx.Tx, paymentID uint64, amount decimal.Decimal, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return models.ErrPaymentNotFound
	}
	p.Amount = amount
	p.UpdatedAt = updatedAt
	m.payments[paymentID] = p
	return nil
}

func (m *memStore) UpdatePaymentStatus(_ context.Context, _ pgx.Tx, paymentID uint64, status enum.PaymentStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return models.ErrPaymentNotFound
	}
	p.Status = status
	p.UpdatedAt = updatedAt
	m.payments[paymentID] = p
	return nil
}

// stock

func (m *memStore) ReduceStock(_ context.Context, _ pgx.Tx, params []stock.ReduceStockParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, param := range params {
		p, ok := m.products[param.ProductID]
		if !ok {
			return models.ErrProductNotFound
		}
		p.Quantity -= int64(param.Quantity)
		m.products[param.ProductID] = p
		if p.Quantity < 0 {
			return models.ErrInsufficientStock
		}
	}
	return nil
}

func (m *memStore) Restock(_ context.Context, _ pgx.Tx, params []stock.RestockParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, param := range params {
		p, ok := m.products[param.ProductID]
		if !ok {
			return models.ErrProductNotFound
		}
		p.Quantity += int64(param.Quantity)
		m.products[param.ProductID] = p
	}
	return nil
}

func (m *memStore) AdjustStock(_ context.Context, _ pgx.Tx, params stock.AdjustStockParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[params.ProductID]
	if !ok {
		return 0, models.ErrProductNotFound
	}
	p.Quantity += params.Delta
	m.products[params.ProductID] = p
	if p.Quantity < 0 {
		return 0, models.ErrInsufficientStock
	}
	return p.Quantity, nil
}

func (m *memStore) CreateStockMovements(_ context.Context, _ pgx.Tx, params []stock.CreateStockMovementParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, param := range params {
		m.movements = append(m.movements, models.StockMovement{
			ID:            m.id(),
			ProductID:     param.ProductID,
			Quantity:      param.Quantity,
			Type:          param.Type,
			ReferenceType: param.ReferenceType,
			ReferenceID:   param.ReferenceID,
			CreatedAt:     time.Now(),
		})
	}
	return nil
}

func (m *memStore) ListStockMovements(_ context.Context, _ pgx.Tx, productID uint64, limit, offset uint64) ([]*models.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.StockMovement, 0)
	for i := len(m.movements) - 1; i >= 0; i-- {
		if m.movements[i].ProductID == productID {
			mv := m.movements[i]
			out = append(out, &mv)
		}
	}
	return page(out, limit, offset), nil
}

// events

type memEvents struct{ *memStore }

func (m memEvents) Create(_ context.Context, _ pgx.Tx, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		m.events[e.ID] = *e
	}
	return nil
}

func (m memEvents) GetByID(_ context.Context, _ pgx.Tx, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &e, nil
}

func (m memEvents) MarkAsProcessed(_ context.Context, _ pgx.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return models.ErrNotFound
	}
	e.Processed = true
	m.events[id] = e
	return nil
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset uint64) []T {
	if offset >= uint64(len(items)) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < uint64(len(items)) {
		items = items[:limit]
	}
	return items
}
