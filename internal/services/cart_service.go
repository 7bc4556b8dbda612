package services

import (
	"context"
	"errors"
	"fmt"

	"medigo/internal/cart"
	"medigo/internal/logger"
	"medigo/internal/models"
	"medigo/internal/repositories"

	"go.uber.org/zap"
)

// CartService resolves product snapshots and applies them to a customer's
// persisted cart.
type CartService struct {
	store       *cart.Store
	productRepo repositories.ProductRepository
	orders      *OrderService
}

func NewCartService(store *cart.Store, productRepo repositories.ProductRepository, orders *OrderService) *CartService {
	return &CartService{store: store, productRepo: productRepo, orders: orders}
}

func (s *CartService) Get(ctx context.Context, customerID string) (cart.Snapshot, error) {
	snap, err := s.store.Get(ctx, customerID)
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to load cart: %w", err)
	}
	return snap, nil
}

// AddItem adds quantity units of an active product. A product from another
// pharmacy starts a new cart.
func (s *CartService) AddItem(ctx context.Context, customerID, productID string, quantity int) (cart.Snapshot, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return cart.Snapshot{}, translate(err, "product")
	}
	if !product.IsActive {
		return cart.Snapshot{}, invalid("product %s is not available", product.Name)
	}
	snap, err := s.store.Add(ctx, customerID, cart.Item{
		ProductID:            product.ID,
		PharmacyID:           product.PharmacyID,
		Name:                 product.Name,
		Price:                product.Pricing.Price,
		DiscountPrice:        product.Pricing.DiscountPrice,
		RequiresPrescription: product.RequiresPrescription,
		Quantity:             quantity,
	})
	if errors.Is(err, cart.ErrInvalidQuantity) {
		return cart.Snapshot{}, invalid("%v", err)
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return snap, nil
}

// UpdateItem sets a line's quantity; below one removes it.
func (s *CartService) UpdateItem(ctx context.Context, customerID, productID string, quantity int) (cart.Snapshot, error) {
	snap, err := s.store.UpdateQuantity(ctx, customerID, productID, quantity)
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return snap, nil
}

func (s *CartService) RemoveItem(ctx context.Context, customerID, productID string) (cart.Snapshot, error) {
	snap, err := s.store.Remove(ctx, customerID, productID)
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return snap, nil
}

func (s *CartService) Clear(ctx context.Context, customerID string) error {
	if err := s.store.Clear(ctx, customerID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// CheckoutInput is everything an order needs besides the cart lines.
type CheckoutInput struct {
	DeliveryAddress models.DeliveryAddress
	PaymentMethod   models.PaymentMethod
	Notes           string
	IdempotencyKey  string
}

// Checkout places an order from the cart and empties it. Prices are taken
// from the catalog at checkout, not from the cart snapshot. A key that
// already placed an order returns that order even though the cart is empty.
func (s *CartService) Checkout(ctx context.Context, customer *models.User, in CheckoutInput) (*models.Order, bool, error) {
	if existing, err := s.orders.Replayed(ctx, customer.ID, in.IdempotencyKey); err != nil || existing != nil {
		return existing, false, err
	}
	snap, err := s.Get(ctx, customer.ID)
	if err != nil {
		return nil, false, err
	}
	if len(snap.Items) == 0 {
		return nil, false, invalid("cart is empty")
	}
	lines := make([]OrderLine, 0, len(snap.Items))
	for _, it := range snap.Items {
		lines = append(lines, OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, created, err := s.orders.Create(ctx, customer, CreateOrderInput{
		Items:           lines,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
		IdempotencyKey:  in.IdempotencyKey,
	})
	if err != nil {
		return nil, false, err
	}
	if err := s.store.Clear(ctx, customer.ID); err != nil {
		logger.FromCtx(ctx).Warn("order placed but cart not cleared", zap.String("order_id", order.ID), zap.Error(err))
	}
	return order, created, nil
}
