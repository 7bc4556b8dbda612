package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReadyForPickup OrderStatus = "ready-for-pickup"
	OrderStatusAssigned       OrderStatus = "assigned"
	OrderStatusPickedUp       OrderStatus = "picked-up"
	OrderStatusOutForDelivery OrderStatus = "out-for-delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"

	// OrderStatusReserving marks an order whose stock decrements are still
	// being applied by a store without multi-document transactions. Such
	// orders are never returned to callers.
	OrderStatusReserving OrderStatus = "pending-stock-adjustment"
)

// Valid reports whether s is one of the public statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReadyForPickup,
		OrderStatusAssigned, OrderStatusPickedUp, OrderStatusOutForDelivery, OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentWallet PaymentMethod = "wallet"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// OrderItem is a snapshot of a product taken at checkout. Later product
// edits do not change it.
type OrderItem struct {
	ProductID            string  `json:"productId" bson:"productId"`
	Name                 string  `json:"name" bson:"name"`
	Quantity             int     `json:"quantity" bson:"quantity"`
	Price                float64 `json:"price" bson:"price"` // unit price paid
	RequiresPrescription bool    `json:"requiresPrescription" bson:"requiresPrescription"`
}

type OrderPricing struct {
	Subtotal    float64 `json:"subtotal" bson:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee" bson:"deliveryFee"`
	Tax         float64 `json:"tax" bson:"tax"`
	Discount    float64 `json:"discount" bson:"discount"`
	Total       float64 `json:"total" bson:"total"`
}

type DeliveryAddress struct {
	FullAddress string  `json:"fullAddress" bson:"fullAddress" validate:"required"`
	City        string  `json:"city" bson:"city" validate:"required"`
	State       string  `json:"state" bson:"state" validate:"required"`
	ZipCode     string  `json:"zipCode" bson:"zipCode" validate:"required"`
	Phone       string  `json:"phone" bson:"phone" validate:"required"`
	Latitude    float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
}

// StatusEntry is one line of an order's append-only status log.
type StatusEntry struct {
	Status    OrderStatus `json:"status" bson:"status"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Note      string      `json:"note,omitempty" bson:"note,omitempty"`
}

type Order struct {
	ID                    string          `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	OrderNumber           string          `json:"orderNumber" gorm:"type:varchar(40);uniqueIndex" bson:"orderNumber"`
	CustomerID            string          `json:"customerId" gorm:"type:varchar(36);uniqueIndex:idx_orders_customer_idem,priority:1" bson:"customerId"`
	PharmacyID            string          `json:"pharmacyId" gorm:"type:varchar(36);index" bson:"pharmacyId"`
	DriverID              string          `json:"driverId,omitempty" gorm:"type:varchar(36);index" bson:"driverId,omitempty"`
	Items                 []OrderItem     `json:"items" gorm:"serializer:json;type:text" bson:"items"`
	Pricing               OrderPricing    `json:"pricing" gorm:"embedded;embeddedPrefix:pricing_" bson:"pricing"`
	DeliveryAddress       DeliveryAddress `json:"deliveryAddress" gorm:"embedded;embeddedPrefix:delivery_" bson:"deliveryAddress"`
	Status                OrderStatus     `json:"status" gorm:"type:varchar(30);index" bson:"status"`
	StatusHistory         []StatusEntry   `json:"statusHistory" gorm:"serializer:json;type:text" bson:"statusHistory"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod" gorm:"type:varchar(20)" bson:"paymentMethod"`
	PaymentStatus         PaymentStatus   `json:"paymentStatus" gorm:"type:varchar(20)" bson:"paymentStatus"`
	Notes                 string          `json:"notes,omitempty" bson:"notes,omitempty"`
	CancelledBy           Role            `json:"cancelledBy,omitempty" gorm:"type:varchar(20)" bson:"cancelledBy,omitempty"`
	CancellationReason    string          `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	EstimatedDeliveryTime time.Time       `json:"estimatedDeliveryTime" bson:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time      `json:"actualDeliveryTime,omitempty" bson:"actualDeliveryTime,omitempty"`
	IdempotencyKey        *string         `json:"-" gorm:"type:varchar(100);uniqueIndex:idx_orders_customer_idem,priority:2" bson:"idempotencyKey,omitempty"`
	CreatedAt             time.Time       `json:"createdAt" gorm:"index" bson:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// LastStatusEntry returns the most recently appended history entry.
func (o *Order) LastStatusEntry() (StatusEntry, bool) {
	if len(o.StatusHistory) == 0 {
		return StatusEntry{}, false
	}
	return o.StatusHistory[len(o.StatusHistory)-1], true
}
