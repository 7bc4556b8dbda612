package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"medigo/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of the user, product and order
// repositories. One mutex guards all collections so order writes and stock
// adjustments are atomic with respect to each other.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	products map[string]models.Product
	orders   map[string]models.Order
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		products: make(map[string]models.Product),
		orders:   make(map[string]models.Order),
	}
}

// Users returns the store as a UserRepository.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s} }

// Products returns the store as a ProductRepository.
func (s *MemoryStore) Products() *MemoryProductRepository { return &MemoryProductRepository{s} }

// Orders returns the store as an OrderRepository.
func (s *MemoryStore) Orders() *MemoryOrderRepository { return &MemoryOrderRepository{s} }

type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = copyUser(*user)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	u = copyUser(u)
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.users[user.ID]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", user.ID, ErrNotFound)
	}
	user.Password, user.Email, user.Role, user.CreatedAt = cur.Password, cur.Email, cur.Role, cur.CreatedAt
	user.UpdatedAt = time.Now()
	r.s.users[user.ID] = copyUser(*user)
	return nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	u.Password = hash
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return nil
}

func (r *MemoryUserRepository) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.User
	for _, u := range r.s.users {
		if u.Role == role {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type MemoryProductRepository struct{ s *MemoryStore }

func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	product.UpdatedAt = product.CreatedAt
	r.s.products[product.ID] = *product
	return nil
}

func (r *MemoryProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (r *MemoryProductRepository) Update(_ context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	product.PharmacyID, product.CreatedAt = cur.PharmacyID, cur.CreatedAt
	product.UpdatedAt = time.Now()
	r.s.products[product.ID] = *product
	return nil
}

func (r *MemoryProductRepository) SetStock(_ context.Context, id string, quantity int) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	p.Stock.Quantity = quantity
	p.UpdatedAt = time.Now()
	r.s.products[id] = p
	return &p, nil
}

func (r *MemoryProductRepository) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	p.IsActive = active
	p.UpdatedAt = time.Now()
	r.s.products[id] = p
	return nil
}

func (r *MemoryProductRepository) Search(_ context.Context, f ProductFilter) ([]models.Product, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []models.Product
	for _, p := range r.s.products {
		if !f.IncludeInactive && !p.IsActive {
			continue
		}
		if term != "" && !productMatches(p, term) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.PharmacyID != "" && p.PharmacyID != f.PharmacyID {
			continue
		}
		if f.MinPrice != nil && p.Pricing.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Pricing.Price > *f.MaxPrice {
			continue
		}
		if f.LowStockOnly && !p.IsLowStock() {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, f.Offset, f.Limit), int64(len(matched)), nil
}

func productMatches(p models.Product, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

type MemoryOrderRepository struct{ s *MemoryStore }

func (r *MemoryOrderRepository) CreateWithReservation(_ context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	need := make(map[string]int)
	for _, item := range order.Items {
		need[item.ProductID] += item.Quantity
	}
	for id, qty := range need {
		p, ok := r.s.products[id]
		if !ok || !p.IsActive || p.Stock.Quantity < qty {
			return fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
		}
	}
	if order.IdempotencyKey != nil {
		for _, o := range r.s.orders {
			if o.CustomerID == order.CustomerID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return fmt.Errorf("idempotency key %s: %w", *order.IdempotencyKey, ErrDuplicate)
			}
		}
	}

	for id, qty := range need {
		p := r.s.products[id]
		p.Stock.Quantity -= qty
		r.s.products[id] = p
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	r.s.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *MemoryOrderRepository) FindByIdempotencyKey(_ context.Context, customerID, key string) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, o := range r.s.orders {
		if o.CustomerID == customerID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, fmt.Errorf("order with idempotency key %s: %w", key, ErrNotFound)
}

func (r *MemoryOrderRepository) List(_ context.Context, f OrderFilter) ([]models.Order, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []models.Order
	for _, o := range r.s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.PharmacyID != "" && o.PharmacyID != f.PharmacyID {
			continue
		}
		if f.DriverID != "" && o.DriverID != f.DriverID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Unassigned && o.DriverID != "" {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, f.Offset, f.Limit), int64(len(matched)), nil
}

func (r *MemoryOrderRepository) ApplyStatusChange(_ context.Context, id string, change StatusChange) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if o.Status != change.Expected || (change.RequireNoDriver && o.DriverID != "") {
		return nil, fmt.Errorf("order %s is %s: %w", id, o.Status, ErrStaleState)
	}

	o = copyOrder(o)
	change.apply(&o, time.Now())
	if change.RestoreStock {
		for _, item := range o.Items {
			if p, ok := r.s.products[item.ProductID]; ok {
				p.Stock.Quantity += item.Quantity
				r.s.products[item.ProductID] = p
			}
		}
	}
	r.s.orders[id] = o
	out := copyOrder(o)
	return &out, nil
}

// copyOrder detaches the slices of o so callers cannot mutate stored state.
// copyUser detaches the role profiles so callers never write through to
// stored state outside the lock.
func copyUser(u models.User) models.User {
	if c := u.CustomerDetails; c != nil {
		cp := *c
		cp.Addresses = slices.Clone(c.Addresses)
		cp.Prescriptions = slices.Clone(c.Prescriptions)
		u.CustomerDetails = &cp
	}
	if p := u.PharmacyDetails; p != nil {
		cp := *p
		cp.OperatingHours = slices.Clone(p.OperatingHours)
		u.PharmacyDetails = &cp
	}
	if d := u.DriverDetails; d != nil {
		cp := *d
		if d.CurrentLocation != nil {
			loc := *d.CurrentLocation
			cp.CurrentLocation = &loc
		}
		u.DriverDetails = &cp
	}
	return u
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	o.StatusHistory = append([]models.StatusEntry(nil), o.StatusHistory...)
	return o
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
