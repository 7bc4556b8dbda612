package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medigo/internal/events"
	"medigo/internal/lifecycle"
	"medigo/internal/logger"
	"medigo/internal/models"
	"medigo/internal/pricing"
	"medigo/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	publisher   events.Publisher
	now         func() time.Time
}

// NewOrderService creates a new OrderService. A nil publisher drops events.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository,
	userRepo repositories.UserRepository, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		now:         time.Now,
	}
}

// OrderLine is one requested product and quantity.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput is a checkout request.
type CreateOrderInput struct {
	Items           []OrderLine
	DeliveryAddress models.DeliveryAddress
	PaymentMethod   models.PaymentMethod
	Notes           string
	// IdempotencyKey makes retries of the same checkout return the first
	// order instead of creating another.
	IdempotencyKey string
}

func validPaymentMethod(m models.PaymentMethod) bool {
	switch m {
	case models.PaymentCOD, models.PaymentCard, models.PaymentUPI, models.PaymentWallet:
		return true
	}
	return false
}

// mergeLines sums quantities of repeated products, keeping first-seen order.
func mergeLines(lines []OrderLine) ([]OrderLine, error) {
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, invalid("product id is required")
		}
		if l.Quantity < 1 {
			return nil, invalid("quantity for product %s must be at least 1", l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}

// NewOrderNumber returns a short human-facing order reference.
func NewOrderNumber(t time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "MG-" + t.Format("20060102") + "-" + id[:8]
}

// Replayed returns the order customerID already placed under key, or nil
// when key is empty or unused.
func (s *OrderService) Replayed(ctx context.Context, customerID, key string) (*models.Order, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	existing, err := s.orderRepo.FindByIdempotencyKey(ctx, customerID, key)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return existing, nil
}

// Create places an order for customer. Every product must exist, be active,
// have enough stock and belong to the same pharmacy. The order insert and
// the stock decrements commit together. The returned bool is false when an
// earlier order with the same idempotency key is returned instead.
func (s *OrderService) Create(ctx context.Context, customer *models.User, in CreateOrderInput) (*models.Order, bool, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "CreateOrder"))

	if customer.Role != models.RoleCustomer {
		return nil, false, forbidden("only customers can place orders")
	}
	if len(in.Items) == 0 {
		return nil, false, invalid("order must contain at least one item")
	}
	if !validPaymentMethod(in.PaymentMethod) {
		return nil, false, invalid("unknown payment method %q", in.PaymentMethod)
	}
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, false, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if existing, err := s.Replayed(ctx, customer.ID, key); err != nil || existing != nil {
		return existing, false, err
	}

	var (
		pharmacyID string
		items      = make([]models.OrderItem, 0, len(lines))
		priced     = make([]pricing.Line, 0, len(lines))
	)
	for _, line := range lines {
		product, err := s.productRepo.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, false, translate(err, "product "+line.ProductID)
		}
		if !product.IsActive {
			return nil, false, invalid("product %s is not available", product.Name)
		}
		if product.Stock.Quantity < line.Quantity {
			return nil, false, fmt.Errorf("%w for product %s (requested: %d, available: %d)",
				ErrInsufficientStock, product.Name, line.Quantity, product.Stock.Quantity)
		}
		if pharmacyID == "" {
			pharmacyID = product.PharmacyID
		} else if product.PharmacyID != pharmacyID {
			return nil, false, ErrMixedPharmacies
		}

		unit := product.UnitPrice()
		items = append(items, models.OrderItem{
			ProductID:            product.ID,
			Name:                 product.Name,
			Quantity:             line.Quantity,
			Price:                unit,
			RequiresPrescription: product.RequiresPrescription,
		})
		priced = append(priced, pricing.Line{UnitPrice: unit, Quantity: line.Quantity})
	}

	now := s.now()
	order := &models.Order{
		OrderNumber:           NewOrderNumber(now),
		CustomerID:            customer.ID,
		PharmacyID:            pharmacyID,
		Items:                 items,
		Pricing:               pricing.Quote(priced),
		DeliveryAddress:       in.DeliveryAddress,
		Status:                models.OrderStatusPending,
		StatusHistory:         []models.StatusEntry{{Status: models.OrderStatusPending, Timestamp: now, Note: "Order placed"}},
		PaymentMethod:         in.PaymentMethod,
		PaymentStatus:         models.PaymentPending,
		Notes:                 in.Notes,
		EstimatedDeliveryTime: pricing.EstimatedDelivery(now),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if key != "" {
		order.IdempotencyKey = &key
	}

	if err := s.orderRepo.CreateWithReservation(ctx, order); err != nil {
		if key != "" && errors.Is(err, repositories.ErrDuplicate) {
			// a concurrent request with the same key won the race
			if existing, ferr := s.orderRepo.FindByIdempotencyKey(ctx, customer.ID, key); ferr == nil {
				return existing, false, nil
			}
		}
		log.Warn("order not created", zap.Error(err))
		return nil, false, translate(err, "order")
	}

	log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("pharmacy_id", order.PharmacyID),
		zap.Float64("total", order.Pricing.Total),
	)
	s.publish(ctx, events.OrderCreated, order, "")
	for _, item := range order.Items {
		if product, err := s.productRepo.GetByID(ctx, item.ProductID); err == nil {
			publishLowStock(ctx, s.publisher, product)
		}
	}
	return order, true, nil
}

// OrderQuery filters a role-scoped order listing.
type OrderQuery struct {
	Status models.OrderStatus
	Pagination
}

// List returns the orders actor may see: a customer's own, a pharmacy's
// incoming, a driver's assigned, or every order for an admin.
func (s *OrderService) List(ctx context.Context, actor *models.User, q OrderQuery) (*Page[models.Order], error) {
	p := q.Pagination.normalize()
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalid("unknown status %q", q.Status)
	}
	f := repositories.OrderFilter{Status: q.Status, Offset: p.offset(), Limit: p.Limit}
	switch actor.Role {
	case models.RoleCustomer:
		f.CustomerID = actor.ID
	case models.RolePharmacy:
		f.PharmacyID = actor.ID
	case models.RoleDriver:
		f.DriverID = actor.ID
	case models.RoleAdmin:
	default:
		return nil, forbidden("unknown role")
	}
	orders, total, err := s.orderRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return newPage(orders, total, p), nil
}

// canView reports whether actor may read o. Drivers may also read orders
// waiting for a driver.
func canView(actor *models.User, o *models.Order) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return o.CustomerID == actor.ID
	case models.RolePharmacy:
		return o.PharmacyID == actor.ID
	case models.RoleDriver:
		return o.DriverID == actor.ID ||
			(o.DriverID == "" && o.Status == models.OrderStatusReadyForPickup)
	}
	return false
}

// Get returns an order actor is allowed to see.
func (s *OrderService) Get(ctx context.Context, actor *models.User, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "order")
	}
	if !canView(actor, order) {
		return nil, forbidden("not authorized to view this order")
	}
	return order, nil
}

// isParty reports whether actor acts on o in its own role.
func isParty(actor *models.User, o *models.Order) bool {
	switch actor.Role {
	case models.RoleCustomer:
		return o.CustomerID == actor.ID
	case models.RolePharmacy:
		return o.PharmacyID == actor.ID
	case models.RoleDriver:
		return o.DriverID != "" && o.DriverID == actor.ID
	}
	return false
}

// UpdateStatus moves an order forward on behalf of actor. The role table
// is checked before ownership, so a role that may never set status is
// refused whatever order it names. Cancellation is routed to Cancel.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *models.User, id string, status models.OrderStatus, note string) (*models.Order, error) {
	if status == models.OrderStatusCancelled {
		return s.Cancel(ctx, actor, id, note)
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "order")
	}
	if err := lifecycle.Check(order.Status, actor.Role, status); err != nil {
		return nil, err
	}
	if !isParty(actor, order) {
		return nil, forbidden("not authorized to update this order")
	}

	now := s.now()
	change := repositories.StatusChange{
		Expected: order.Status,
		Status:   status,
		Entry:    models.StatusEntry{Status: status, Timestamp: now, Note: note},
	}
	if status == models.OrderStatusDelivered {
		change.DeliveredAt = &now
		change.PaymentStatus = models.PaymentCompleted
	}

	updated, err := s.orderRepo.ApplyStatusChange(ctx, id, change)
	if err != nil {
		return nil, translate(err, "order")
	}
	if status == models.OrderStatusDelivered {
		s.countDelivery(ctx, updated.DriverID)
	}
	s.logTransition(ctx, updated, order.Status)
	s.publish(ctx, events.OrderStatusChanged, updated, order.Status)
	return updated, nil
}

// Cancel cancels a non-terminal order on behalf of its customer or
// pharmacy and puts every line's quantity back on stock in the same write.
func (s *OrderService) Cancel(ctx context.Context, actor *models.User, id, reason string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "order")
	}
	if err := lifecycle.Check(order.Status, actor.Role, models.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if !isParty(actor, order) {
		return nil, forbidden("not authorized to cancel this order")
	}

	reason = strings.TrimSpace(reason)
	note := reason
	if note == "" {
		note = "Cancelled by " + string(actor.Role)
	}
	change := repositories.StatusChange{
		Expected:           order.Status,
		Status:             models.OrderStatusCancelled,
		Entry:              models.StatusEntry{Status: models.OrderStatusCancelled, Timestamp: s.now(), Note: note},
		CancelledBy:        actor.Role,
		CancellationReason: reason,
		RestoreStock:       true,
	}
	if order.PaymentStatus == models.PaymentCompleted {
		change.PaymentStatus = models.PaymentRefunded
	}

	updated, err := s.orderRepo.ApplyStatusChange(ctx, id, change)
	if err != nil {
		if updated != nil {
			// status committed, stock restore partially failed
			logger.FromCtx(ctx).Error("stock restore incomplete", zap.String("order_id", id), zap.Error(err))
			s.publish(ctx, events.OrderStatusChanged, updated, order.Status)
			return updated, nil
		}
		return nil, translate(err, "order")
	}
	logger.FromCtx(ctx).Info("stock restored",
		zap.String("order_id", updated.ID),
		zap.Int("lines", len(updated.Items)),
	)
	s.logTransition(ctx, updated, order.Status)
	s.publish(ctx, events.OrderStatusChanged, updated, order.Status)
	return updated, nil
}

// AssignDriver attaches a driver to an order. A driver may only take an
// unassigned ready-for-pickup order for themself; a pharmacy may assign
// any approved driver to its own order until pickup.
func (s *OrderService) AssignDriver(ctx context.Context, actor *models.User, id, driverID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "order")
	}

	change := repositories.StatusChange{Expected: order.Status, Status: models.OrderStatusAssigned}
	switch actor.Role {
	case models.RoleDriver:
		if driverID != "" && driverID != actor.ID {
			return nil, forbidden("drivers can only assign themselves")
		}
		if !actor.IsApproved() {
			return nil, forbidden("driver account is not approved")
		}
		if order.DriverID != "" {
			return nil, fmt.Errorf("order already has a driver: %w", ErrConflict)
		}
		if order.Status != models.OrderStatusReadyForPickup {
			return nil, fmt.Errorf("%w: order is %s, not ready for pickup", lifecycle.ErrInvalidTransition, order.Status)
		}
		change.DriverID = actor.ID
		change.RequireNoDriver = true
	case models.RolePharmacy:
		if order.PharmacyID != actor.ID {
			return nil, forbidden("not authorized to assign a driver to this order")
		}
		if driverID == "" {
			return nil, invalid("driverId is required")
		}
		driver, err := s.userRepo.GetByID(ctx, driverID)
		if err != nil {
			return nil, translate(err, "driver")
		}
		if driver.Role != models.RoleDriver || !driver.IsActive || !driver.IsApproved() {
			return nil, invalid("user %s is not an approved driver", driverID)
		}
		change.DriverID = driver.ID
	default:
		return nil, forbidden("only drivers and pharmacies can assign drivers")
	}

	if err := lifecycle.Check(order.Status, lifecycle.ActorAssignment, models.OrderStatusAssigned); err != nil {
		return nil, err
	}
	change.Entry = models.StatusEntry{
		Status:    models.OrderStatusAssigned,
		Timestamp: s.now(),
		Note:      "Driver assigned",
	}

	updated, err := s.orderRepo.ApplyStatusChange(ctx, id, change)
	if err != nil {
		return nil, translate(err, "order")
	}
	s.logTransition(ctx, updated, order.Status)
	s.publish(ctx, events.OrderStatusChanged, updated, order.Status)
	return updated, nil
}

// AvailableForDrivers lists ready-for-pickup orders nobody has taken.
func (s *OrderService) AvailableForDrivers(ctx context.Context, page Pagination) (*Page[models.Order], error) {
	p := page.normalize()
	orders, total, err := s.orderRepo.List(ctx, repositories.OrderFilter{
		Status:     models.OrderStatusReadyForPickup,
		Unassigned: true,
		Offset:     p.offset(),
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list available orders: %w", err)
	}
	return newPage(orders, total, p), nil
}

func (s *OrderService) countDelivery(ctx context.Context, driverID string) {
	if driverID == "" {
		return
	}
	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err == nil && driver.DriverDetails != nil {
		driver.DriverDetails.TotalDeliveries++
		err = s.userRepo.Update(ctx, driver)
	}
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to count delivery", zap.String("driver_id", driverID), zap.Error(err))
	}
}

func (s *OrderService) logTransition(ctx context.Context, o *models.Order, from models.OrderStatus) {
	logger.FromCtx(ctx).Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
	)
}

// publish sends an order event after the write committed. Failures are
// logged and never undo the write.
func (s *OrderService) publish(ctx context.Context, eventType string, o *models.Order, previous models.OrderStatus) {
	e := events.New(eventType, map[string]string{
		events.KeyCustomerID: o.CustomerID,
		events.KeyPharmacyID: o.PharmacyID,
		events.KeyDriverID:   o.DriverID,
		events.KeyStatus:     string(o.Status),
		events.KeyOrderNo:    o.OrderNumber,
	})
	if previous != "" {
		e.Payload[events.KeyPrevious] = string(previous)
	}
	e.OrderID = o.ID
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish event",
			zap.String("event", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
