package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/factory-orders/internal/core/domain"
	"github.com/rl1809/factory-orders/internal/port"
)

var errDuplicateOrderNumber = errors.New("duplicate order number")

// memStore is an in-memory DatabaseRepository. Transactions hold the store
// lock for their whole duration and restore a snapshot when fn fails.
type memStore struct {
	mu        sync.Mutex
	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	users     map[int64]domain.User
	orders    map[int64]domain.Order
	items     []domain.OrderItem
	ledger    []domain.InventoryTransaction
	nextID    int64

	failOrderItems error
	failGetOrder   error // returned once by GetOrder
	commits        int
	rollbacks      int
}

func newMemStore() *memStore {
	return &memStore{
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
		users:     make(map[int64]domain.User),
		orders:    make(map[int64]domain.Order),
		nextID:    1000,
	}
}

func (s *memStore) addCustomer(id int64, active bool) {
	s.customers[id] = domain.Customer{ID: id, CompanyName: fmt.Sprintf("Customer %d", id), IsActive: active}
}

func (s *memStore) addProduct(p domain.Product) {
	if p.SKU == "" {
		p.SKU = fmt.Sprintf("SKU-%d", p.ID)
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("Product %d", p.ID)
	}
	s.products[p.ID] = p
}

func (s *memStore) addUser(u domain.User) {
	s.users[u.ID] = u
}

func (s *memStore) stock(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].StockQuantity
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) ledgerEntries() []domain.InventoryTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ledger)
}

type memSnapshot struct {
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    []domain.OrderItem
	ledger   []domain.InventoryTransaction
	nextID   int64
}

func (s *memStore) RunInTx(ctx context.Context, fn func(tx port.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memSnapshot{
		products: maps.Clone(s.products),
		orders:   maps.Clone(s.orders),
		items:    slices.Clone(s.items),
		ledger:   slices.Clone(s.ledger),
		nextID:   s.nextID,
	}

	if err := fn(&memTx{s: s}); err != nil {
		s.products = snap.products
		s.orders = snap.orders
		s.items = snap.items
		s.ledger = snap.ledger
		s.nextID = snap.nextID
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failGetOrder; err != nil {
		s.failGetOrder = nil
		return nil, err
	}

	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	o.CustomerName = s.customers[o.CustomerID].CompanyName
	o.CreatedByName = s.users[o.CreatedBy].FullName
	o.Items = nil
	for _, item := range s.items {
		if item.OrderID == orderID {
			o.Items = append(o.Items, item)
		}
	}
	return &o, nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, shippedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	o.Status = status
	o.ShippedAt = shippedAt
	s.orders[orderID] = o
	return nil
}

func (s *memStore) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product(productID), nil
}

func (s *memStore) product(productID int64) *domain.Product {
	p, ok := s.products[productID]
	if !ok {
		return nil
	}
	return &p
}

func (s *memStore) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateUser(ctx context.Context, user domain.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	s.users[user.ID] = user
	return user.ID, nil
}

func (s *memStore) TouchLastLogin(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	now := time.Now()
	u.LastLoginAt = &now
	s.users[userID] = u
	return nil
}

func (s *memStore) ListInventoryTransactions(ctx context.Context, productID int64, limit int) ([]domain.InventoryTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.InventoryTransaction
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].ProductID == productID {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

type memTx struct {
	s *memStore
}

func (t *memTx) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	c, ok := t.s.customers[customerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return t.s.product(productID), nil
}

func (t *memTx) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	for _, o := range t.s.orders {
		if o.OrderNumber == order.OrderNumber {
			return 0, errDuplicateOrderNumber
		}
	}
	t.s.nextID++
	order.ID = t.s.nextID
	t.s.orders[order.ID] = order
	return order.ID, nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, item domain.OrderItem) (int64, error) {
	if t.s.failOrderItems != nil {
		return 0, t.s.failOrderItems
	}
	t.s.nextID++
	item.ID = t.s.nextID
	t.s.items = append(t.s.items, item)
	return item.ID, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	p, ok := t.s.products[productID]
	if !ok || !p.IsActive || p.StockQuantity < quantity {
		return false, nil
	}
	p.StockQuantity -= quantity
	t.s.products[productID] = p
	return true, nil
}

func (t *memTx) AdjustStock(ctx context.Context, productID int64, delta int) (bool, error) {
	p, ok := t.s.products[productID]
	if !ok || p.StockQuantity+delta < 0 {
		return false, nil
	}
	p.StockQuantity += delta
	t.s.products[productID] = p
	return true, nil
}

func (t *memTx) InsertInventoryTransaction(ctx context.Context, entry domain.InventoryTransaction) (int64, error) {
	t.s.nextID++
	entry.ID = t.s.nextID
	t.s.ledger = append(t.s.ledger, entry)
	return entry.ID, nil
}

// memCache is an in-memory CacheRepository.
type memCache struct {
	mu       sync.Mutex
	keys     map[string]time.Duration
	numbers  map[string]bool
	rejectN  int
	released []string
	err      error
}

func newMemCache() *memCache {
	return &memCache{
		keys:    make(map[string]time.Duration),
		numbers: make(map[string]bool),
	}
}

func (c *memCache) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, held := c.keys[key]; held {
		return false, nil
	}
	c.keys[key] = ttl
	return true, nil
}

func (c *memCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	c.released = append(c.released, key)
	return nil
}

// ReserveOrderNumber refuses the first rejectN reservations.
func (c *memCache) ReserveOrderNumber(ctx context.Context, number string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.rejectN > 0 {
		c.rejectN--
		return false, nil
	}
	if c.numbers[number] {
		return false, nil
	}
	c.numbers[number] = true
	return true, nil
}

func (c *memCache) Ping(ctx context.Context) error { return c.err }

// stubTokens maps tokens to user ids.
type stubTokens struct {
	tokens map[string]int64
	issued int
}

func (s *stubTokens) Issue(userID int64) (string, time.Time, error) {
	s.issued++
	token := fmt.Sprintf("token-%d-%d", userID, s.issued)
	if s.tokens == nil {
		s.tokens = make(map[string]int64)
	}
	s.tokens[token] = userID
	return token, time.Now().Add(time.Hour), nil
}

func (s *stubTokens) Verify(token string) (int64, error) {
	id, ok := s.tokens[token]
	if !ok {
		return 0, errors.New("invalid token")
	}
	return id, nil
}
