package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"medigo/internal/cart"
	"medigo/internal/database"
	"medigo/internal/models"
	"medigo/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	carts    cart.Persister
}

func stores(t *testing.T) map[string]store {
	t.Helper()
	db, err := database.OpenGORM("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mem := repositories.NewMemoryStore()
	return map[string]store{
		"memory": {users: mem.Users(), products: mem.Products(), orders: mem.Orders(), carts: cart.NewMemoryPersister()},
		"sqlite": {
			users:    repositories.NewGORMUserRepository(db),
			products: repositories.NewGORMProductRepository(db),
			orders:   repositories.NewGORMOrderRepository(db),
			carts:    repositories.NewGORMCartRepository(db),
		},
	}
}

func product(pharmacyID, name string, price float64, qty int) *models.Product {
	return &models.Product{
		PharmacyID: pharmacyID,
		Name:       name,
		Category:   models.CategoryOTC,
		Pricing:    models.Pricing{Price: price},
		Stock:      models.Stock{Quantity: qty, LowStockThreshold: 3},
		Tags:       []string{"pain"},
		Images:     []string{},
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
}

func pendingOrder(customerID string, items ...models.OrderItem) *models.Order {
	now := time.Now()
	return &models.Order{
		OrderNumber:   "MG-" + uuid.NewString(),
		CustomerID:    customerID,
		PharmacyID:    "pharmacy-1",
		Items:         items,
		Status:        models.OrderStatusPending,
		StatusHistory: []models.StatusEntry{{Status: models.OrderStatusPending, Timestamp: now}},
		PaymentMethod: models.PaymentCOD,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestUserRepository(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := &models.User{Email: "a@test", Role: models.RoleDriver, IsActive: true, DriverDetails: &models.DriverDetails{VehicleType: "bike"}}
			require.NoError(t, s.users.Create(ctx, u))
			assert.NotEmpty(t, u.ID)

			err := s.users.Create(ctx, &models.User{Email: "a@test", Role: models.RoleCustomer})
			assert.ErrorIs(t, err, repositories.ErrDuplicate)

			got, err := s.users.GetByEmail(ctx, "a@test")
			require.NoError(t, err)
			assert.Equal(t, "bike", got.DriverDetails.VehicleType)

			got.DriverDetails.TotalDeliveries = 4
			require.NoError(t, s.users.Update(ctx, got))
			require.NoError(t, s.users.UpdatePassword(ctx, u.ID, "hash"))

			got, err = s.users.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, 4, got.DriverDetails.TotalDeliveries)
			assert.Equal(t, "hash", got.Password)

			drivers, err := s.users.ListByRole(ctx, models.RoleDriver)
			require.NoError(t, err)
			assert.Len(t, drivers, 1)

			// returned users are detached from the store
			got.DriverDetails.TotalDeliveries = 99
			drivers[0].DriverDetails.IsAvailable = true
			u.DriverDetails.VehicleType = "car"
			again, err := s.users.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, 4, again.DriverDetails.TotalDeliveries)
			assert.False(t, again.DriverDetails.IsAvailable)
			assert.Equal(t, "bike", again.DriverDetails.VehicleType)

			_, err = s.users.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestProductRepository_Search(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := product("ph-1", "Paracetamol", 30, 50)
			b := product("ph-1", "Vitamin C", 120, 2)
			b.Category = models.CategorySupplement
			b.CreatedAt = a.CreatedAt.Add(time.Second)
			c := product("ph-2", "Ibuprofen", 60, 10)
			c.CreatedAt = a.CreatedAt.Add(2 * time.Second)
			c.IsActive = false
			for _, p := range []*models.Product{a, b, c} {
				require.NoError(t, s.products.Create(ctx, p))
			}

			all, total, err := s.products.Search(ctx, repositories.ProductFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			require.Len(t, all, 2)
			assert.Equal(t, b.ID, all[0].ID, "newest first")

			found, _, err := s.products.Search(ctx, repositories.ProductFilter{Search: "paraCET"})
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, a.ID, found[0].ID)

			min := 100.0
			found, _, err = s.products.Search(ctx, repositories.ProductFilter{MinPrice: &min})
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, b.ID, found[0].ID)

			found, total, err = s.products.Search(ctx, repositories.ProductFilter{PharmacyID: "ph-2", IncludeInactive: true})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			assert.Len(t, found, 1)

			found, _, err = s.products.Search(ctx, repositories.ProductFilter{LowStockOnly: true})
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, b.ID, found[0].ID)

			page, total, err := s.products.Search(ctx, repositories.ProductFilter{Offset: 1, Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			require.Len(t, page, 1)
			assert.Equal(t, a.ID, page[0].ID)

			updated, err := s.products.SetStock(ctx, a.ID, 7)
			require.NoError(t, err)
			assert.Equal(t, 7, updated.Stock.Quantity)
			_, err = s.products.SetStock(ctx, "missing", 1)
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			require.NoError(t, s.products.SetActive(ctx, a.ID, false))
			got, err := s.products.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.False(t, got.IsActive)
			assert.Equal(t, 7, got.Stock.Quantity)
			assert.ErrorIs(t, s.products.SetActive(ctx, "missing", false), repositories.ErrNotFound)
		})
	}
}

func TestOrderRepository_Reservation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := product("pharmacy-1", "A", 10, 5)
			b := product("pharmacy-1", "B", 10, 1)
			require.NoError(t, s.products.Create(ctx, a))
			require.NoError(t, s.products.Create(ctx, b))

			short := pendingOrder("cust-1",
				models.OrderItem{ProductID: a.ID, Quantity: 2},
				models.OrderItem{ProductID: b.ID, Quantity: 2},
			)
			err := s.orders.CreateWithReservation(ctx, short)
			assert.ErrorIs(t, err, repositories.ErrInsufficientStock)

			// nothing was taken from A
			got, err := s.products.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, got.Stock.Quantity)
			_, total, err := s.orders.List(ctx, repositories.OrderFilter{})
			require.NoError(t, err)
			assert.Zero(t, total)

			key := "k-1"
			ok := pendingOrder("cust-1",
				models.OrderItem{ProductID: a.ID, Quantity: 2},
				models.OrderItem{ProductID: b.ID, Quantity: 1},
			)
			ok.IdempotencyKey = &key
			require.NoError(t, s.orders.CreateWithReservation(ctx, ok))

			got, err = s.products.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.Stock.Quantity)
			got, err = s.products.GetByID(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Stock.Quantity)

			replay, err := s.orders.FindByIdempotencyKey(ctx, "cust-1", key)
			require.NoError(t, err)
			assert.Equal(t, ok.ID, replay.ID)
			_, err = s.orders.FindByIdempotencyKey(ctx, "cust-2", key)
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			dup := pendingOrder("cust-1", models.OrderItem{ProductID: a.ID, Quantity: 1})
			dup.IdempotencyKey = &key
			err = s.orders.CreateWithReservation(ctx, dup)
			assert.ErrorIs(t, err, repositories.ErrDuplicate)
			got, err = s.products.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.Stock.Quantity, "duplicate rolled back its reservation")
		})
	}
}

func TestOrderRepository_ApplyStatusChange(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := product("pharmacy-1", "A", 10, 5)
			require.NoError(t, s.products.Create(ctx, a))
			order := pendingOrder("cust-1", models.OrderItem{ProductID: a.ID, Quantity: 2})
			require.NoError(t, s.orders.CreateWithReservation(ctx, order))

			confirm := repositories.StatusChange{
				Expected: models.OrderStatusPending,
				Status:   models.OrderStatusConfirmed,
				Entry:    models.StatusEntry{Status: models.OrderStatusConfirmed, Timestamp: time.Now(), Note: "ok"},
			}
			updated, err := s.orders.ApplyStatusChange(ctx, order.ID, confirm)
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
			assert.Len(t, updated.StatusHistory, 2)

			// replaying the same change finds the order already moved
			_, err = s.orders.ApplyStatusChange(ctx, order.ID, confirm)
			assert.ErrorIs(t, err, repositories.ErrStaleState)

			cancel := repositories.StatusChange{
				Expected:           models.OrderStatusConfirmed,
				Status:             models.OrderStatusCancelled,
				Entry:              models.StatusEntry{Status: models.OrderStatusCancelled, Timestamp: time.Now()},
				CancelledBy:        models.RoleCustomer,
				CancellationReason: "no longer needed",
				RestoreStock:       true,
			}
			updated, err = s.orders.ApplyStatusChange(ctx, order.ID, cancel)
			require.NoError(t, err)
			assert.Equal(t, models.RoleCustomer, updated.CancelledBy)

			stored, err := s.orders.GetByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, stored.Status)
			assert.Equal(t, "no longer needed", stored.CancellationReason)
			assert.Len(t, stored.StatusHistory, 3)

			got, err := s.products.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, got.Stock.Quantity)

			_, err = s.orders.ApplyStatusChange(ctx, "missing", confirm)
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestOrderRepository_RequireNoDriver(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			order := pendingOrder("cust-1")
			order.Status = models.OrderStatusReadyForPickup
			require.NoError(t, s.orders.CreateWithReservation(ctx, order))

			take := func(driverID string) error {
				_, err := s.orders.ApplyStatusChange(ctx, order.ID, repositories.StatusChange{
					Expected:        models.OrderStatusReadyForPickup,
					Status:          models.OrderStatusAssigned,
					Entry:           models.StatusEntry{Status: models.OrderStatusAssigned, Timestamp: time.Now()},
					DriverID:        driverID,
					RequireNoDriver: true,
				})
				return err
			}
			require.NoError(t, take("driver-1"))
			assert.ErrorIs(t, take("driver-2"), repositories.ErrStaleState)

			open, _, err := s.orders.List(ctx, repositories.OrderFilter{Status: models.OrderStatusReadyForPickup, Unassigned: true})
			require.NoError(t, err)
			assert.Empty(t, open)
			mine, total, err := s.orders.List(ctx, repositories.OrderFilter{DriverID: "driver-1"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			assert.Equal(t, "driver-1", mine[0].DriverID)
		})
	}
}

func TestCartPersister(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			empty, err := s.carts.Load(ctx, "owner")
			require.NoError(t, err)
			assert.Empty(t, empty.Items)

			snap := cart.Snapshot{PharmacyID: "ph", Items: []cart.Item{{ProductID: "p", PharmacyID: "ph", Price: 3, Quantity: 2}}}
			require.NoError(t, s.carts.Save(ctx, "owner", snap))
			snap.Items[0].Quantity = 4
			require.NoError(t, s.carts.Save(ctx, "owner", snap))

			got, err := s.carts.Load(ctx, "owner")
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			assert.Equal(t, 4, got.Items[0].Quantity)

			require.NoError(t, s.carts.Delete(ctx, "owner"))
			got, err = s.carts.Load(ctx, "owner")
			require.NoError(t, err)
			assert.Empty(t, got.Items)
		})
	}
}
