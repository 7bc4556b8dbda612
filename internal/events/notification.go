package events

import (
	"context"

	"go.uber.org/zap"
)

// Payload keys set by the services.
const (
	KeyCustomerID = "customerId"
	KeyPharmacyID = "pharmacyId"
	KeyDriverID   = "driverId"
	KeyStatus     = "status"
	KeyPrevious   = "previousStatus"
	KeyOrderNo    = "orderNumber"
	KeyQuantity   = "quantity"
	KeyThreshold  = "threshold"
)

// Notification is a message addressed to one user.
type Notification struct {
	RecipientID string
	Message     string
}

// Notifications derives who hears about e and what they are told.
func Notifications(e Event) []Notification {
	p := e.Payload
	var out []Notification
	add := func(recipient, msg string) {
		if recipient != "" {
			out = append(out, Notification{RecipientID: recipient, Message: msg})
		}
	}

	switch e.Type {
	case OrderCreated:
		add(p[KeyPharmacyID], "New order "+p[KeyOrderNo]+" received")
		add(p[KeyCustomerID], "Order "+p[KeyOrderNo]+" placed")
	case OrderStatusChanged:
		add(p[KeyCustomerID], "Order "+p[KeyOrderNo]+" is now "+p[KeyStatus])
		switch p[KeyStatus] {
		case "assigned":
			add(p[KeyDriverID], "You were assigned order "+p[KeyOrderNo])
		case "cancelled":
			add(p[KeyPharmacyID], "Order "+p[KeyOrderNo]+" was cancelled")
			add(p[KeyDriverID], "Order "+p[KeyOrderNo]+" was cancelled")
		}
	case ProductLowStock:
		add(p[KeyPharmacyID], "Product "+e.ProductID+" is low on stock ("+p[KeyQuantity]+" left)")
	}
	return out
}

// NotificationHandler turns events into user notifications. Delivery is a
// structured log line; push and email channels plug in here.
type NotificationHandler struct {
	log *zap.Logger
}

func NewNotificationHandler(log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{log: log.With(zap.String("component", "notifications"))}
}

func (h *NotificationHandler) Handle(ctx context.Context, e Event) error {
	notes := Notifications(e)
	if len(notes) == 0 {
		h.log.Debug("event without recipients", zap.String("type", e.Type))
		return nil
	}
	for _, n := range notes {
		h.log.Info("notification",
			zap.String("event", e.Type),
			zap.String("order_id", e.OrderID),
			zap.String("product_id", e.ProductID),
			zap.String("recipient_id", n.RecipientID),
			zap.String("message", n.Message),
		)
	}
	return nil
}
