package repositories

import (
	"context"
	"time"

	"medigo/internal/models"
)

// OrderFilter selects orders for listing. Empty fields are ignored.
type OrderFilter struct {
	CustomerID string
	PharmacyID string
	DriverID   string
	Status     models.OrderStatus
	Unassigned bool
	Offset     int
	Limit      int
}

// StatusChange is one status write. It is applied only while the order is
// still in Expected (and, with RequireNoDriver, has no driver).
type StatusChange struct {
	Expected        models.OrderStatus
	Status          models.OrderStatus
	Entry           models.StatusEntry
	DriverID        string
	RequireNoDriver bool

	CancelledBy        models.Role
	CancellationReason string
	DeliveredAt        *time.Time
	PaymentStatus      models.PaymentStatus

	// RestoreStock puts every line's quantity back on its product.
	RestoreStock bool
}

// apply mutates o the way the store will. Shared by all implementations.
func (c StatusChange) apply(o *models.Order, now time.Time) {
	o.Status = c.Status
	o.StatusHistory = append(o.StatusHistory, c.Entry)
	if c.DriverID != "" {
		o.DriverID = c.DriverID
	}
	if c.CancelledBy != "" {
		o.CancelledBy = c.CancelledBy
		o.CancellationReason = c.CancellationReason
	}
	if c.DeliveredAt != nil {
		o.ActualDeliveryTime = c.DeliveredAt
	}
	if c.PaymentStatus != "" {
		o.PaymentStatus = c.PaymentStatus
	}
	o.UpdatedAt = now
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// CreateWithReservation stores order and takes every line's quantity
	// off its product's stock as one unit. If any product is missing,
	// inactive or short, nothing is written and ErrInsufficientStock is
	// returned.
	CreateWithReservation(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	// ApplyStatusChange writes the status, its history entry and side
	// fields together, restoring stock when requested.
	ApplyStatusChange(ctx context.Context, id string, change StatusChange) (*models.Order, error)
}
