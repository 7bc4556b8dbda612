package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medigo/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository. Every
// multi-row write runs inside one database transaction.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// CreateWithReservation inserts the order and decrements stock for each
// line in one transaction. The decrement is conditional on the product
// being active and holding enough stock, so two concurrent checkouts can
// never push a product below zero.
func (r *GORMOrderRepository) CreateWithReservation(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range order.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND is_active = ? AND stock_quantity >= ?", item.ProductID, true, item.Quantity).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("failed to reserve stock for product %s: %w", item.ProductID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
			}
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", translateGORM(err))
		}
		return nil
	})
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("order with ID %s: %w", id, translateGORM(err))
	}
	return &order, nil
}

func (r *GORMOrderRepository) FindByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "customer_id = ? AND idempotency_key = ?", customerID, key).Error
	if err != nil {
		return nil, fmt.Errorf("order with idempotency key %s: %w", key, translateGORM(err))
	}
	return &order, nil
}

// List returns one page of orders matching f, newest first, and the total.
func (r *GORMOrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.CustomerID != "" {
			db = db.Where("customer_id = ?", f.CustomerID)
		}
		if f.PharmacyID != "" {
			db = db.Where("pharmacy_id = ?", f.PharmacyID)
		}
		if f.DriverID != "" {
			db = db.Where("driver_id = ?", f.DriverID)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.Unassigned {
			db = db.Where("(driver_id IS NULL OR driver_id = '')")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	q := r.db.WithContext(ctx).Scopes(filter).Order("created_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ApplyStatusChange updates status, history and side fields with a single
// conditional UPDATE and restores stock in the same transaction.
func (r *GORMOrderRepository) ApplyStatusChange(ctx context.Context, id string, change StatusChange) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return fmt.Errorf("order with ID %s: %w", id, translateGORM(err))
		}
		if order.Status != change.Expected || (change.RequireNoDriver && order.DriverID != "") {
			return fmt.Errorf("order %s is %s: %w", id, order.Status, ErrStaleState)
		}

		change.apply(&order, time.Now())

		q := tx.Model(&order).Where("status = ?", change.Expected)
		if change.RequireNoDriver {
			q = q.Where("(driver_id IS NULL OR driver_id = '')")
		}
		res := q.Select("status", "status_history", "driver_id", "cancelled_by", "cancellation_reason",
			"actual_delivery_time", "payment_status", "updated_at").Updates(&order)
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %s: %w", id, ErrStaleState)
		}

		if change.RestoreStock {
			for _, item := range order.Items {
				res := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
					UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity))
				if res.Error != nil {
					return fmt.Errorf("failed to restore stock for product %s: %w", item.ProductID, res.Error)
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleState) {
			return nil, err
		}
		return nil, fmt.Errorf("status change rolled back: %w", err)
	}
	return &order, nil
}
