package cart

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the test suite
// and lets cmd/api run without Postgres. Single-aggregate reads and writes
// are atomic under the store mutex, matching the persistence contract the
// core assumes.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]User
	products  map[string]Product // by id
	byCode    map[string]string  // product code -> id
	discounts map[string]Discount
	carts     map[string]Cart
	items     map[string]CartItem // by item id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]User),
		products:  make(map[string]Product),
		byCode:    make(map[string]string),
		discounts: make(map[string]Discount),
		carts:     make(map[string]Cart),
		items:     make(map[string]CartItem),
	}
}

func (m *MemoryStore) AddUser(u User) User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *MemoryStore) AddProduct(p Product) Product {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.products[p.ID] = p
	m.byCode[p.Code] = p.ID
	m.mu.Unlock()
	return p
}

func (m *MemoryStore) AddDiscount(d Discount) {
	m.mu.Lock()
	m.discounts[d.Category] = d
	m.mu.Unlock()
}

func (m *MemoryStore) FindUserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryStore) FindProductByCode(_ context.Context, code string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return m.products[id], nil
}

func (m *MemoryStore) FindProductByID(_ context.Context, id string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *MemoryStore) FindDiscountByCategory(_ context.Context, category string) (Discount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discounts[category]
	if !ok {
		return Discount{}, ErrDiscountNotFound
	}
	return d, nil
}

func (m *MemoryStore) FindCartByID(_ context.Context, id string) (Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[id]
	if !ok {
		return Cart{}, ErrCartNotFound
	}
	return c, nil
}

func (m *MemoryStore) FindCartByIDAndStatus(_ context.Context, id string, status Status) (Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[id]
	if !ok || c.Status != status {
		return Cart{}, ErrCartNotFound
	}
	return c, nil
}

func (m *MemoryStore) SaveCart(_ context.Context, c Cart) (Cart, error) {
	m.mu.Lock()
	m.carts[c.ID] = c
	m.mu.Unlock()
	return c, nil
}

func (m *MemoryStore) FindCartsByUser(_ context.Context, userID string) ([]Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Cart
	for _, c := range m.carts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindItemByCartAndProduct(_ context.Context, cartID, productID string) (CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return CartItem{}, ErrItemNotInCart
}

func (m *MemoryStore) FindItemsByCart(_ context.Context, cartID string) ([]CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CartItem
	for _, it := range m.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveItem(_ context.Context, it CartItem) (CartItem, error) {
	m.mu.Lock()
	m.items[it.ID] = it
	m.mu.Unlock()
	return it, nil
}

func (m *MemoryStore) DeleteItem(_ context.Context, it CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return ErrItemNotInCart
	}
	delete(m.items, it.ID)
	return nil
}

// SeedDemo loads the demo catalog the API ships with when no database is
// configured: one user, two electronics products, one category discount.
func (m *MemoryStore) SeedDemo() (User, []Product) {
	u := m.AddUser(User{Username: "john.doe"})
	p1 := m.AddProduct(Product{
		Code:     "PROD001",
		Name:     "Laptop",
		Price:    decimal.RequireFromString("1200.00"),
		Category: "Electronics",
	})
	p2 := m.AddProduct(Product{
		Code:     "PROD002",
		Name:     "Mouse",
		Price:    decimal.RequireFromString("25.00"),
		Category: "Electronics",
	})
	m.AddDiscount(Discount{Category: "Electronics", Percentage: decimal.NewFromInt(10)})
	return u, []Product{p1, p2}
}
