// Package pricing computes the checkout price breakdown of an order.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"medigo/internal/models"
)

const (
	// DeliveryFee is charged once per order.
	DeliveryFee = 50.0
	// TaxRate applies to the item subtotal.
	TaxRate = 0.05
	// EstimatedDeliveryOffset is added to the creation time to get the
	// estimated delivery time.
	EstimatedDeliveryOffset = 45 * time.Minute
)

// Line is a priced quantity of one product.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Quote returns subtotal, fee, tax and total for the given lines. No
// checkout discount exists yet, so Discount is always zero.
func Quote(lines []Line) models.OrderPricing {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	fee := decimal.NewFromFloat(DeliveryFee)
	tax := subtotal.Mul(decimal.NewFromFloat(TaxRate))
	discount := decimal.Zero
	total := subtotal.Add(fee).Add(tax).Sub(discount)

	return models.OrderPricing{
		Subtotal:    subtotal.InexactFloat64(),
		DeliveryFee: fee.InexactFloat64(),
		Tax:         tax.InexactFloat64(),
		Discount:    discount.InexactFloat64(),
		Total:       total.InexactFloat64(),
	}
}

// EstimatedDelivery returns the delivery estimate for an order created at t.
func EstimatedDelivery(t time.Time) time.Time {
	return t.Add(EstimatedDeliveryOffset)
}
