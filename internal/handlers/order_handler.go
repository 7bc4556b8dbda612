package handlers

import (
	"medigo/internal/middleware"
	"medigo/internal/models"
	"medigo/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// IdempotencyKeyHeader lets a client retry a checkout without placing a
// second order.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app. Every
// order route requires authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Post("/", middleware.RequireRoles(models.RoleCustomer), h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/available/orders", middleware.RequireRoles(models.RoleDriver), h.HandleGetAvailableOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/status", h.HandleUpdateOrderStatus)
	orderRoutes.Put("/:id/cancel", middleware.RequireRoles(models.RoleCustomer, models.RolePharmacy), h.HandleCancelOrder)
	orderRoutes.Put("/:id/assign-driver", middleware.RequireRoles(models.RoleDriver, models.RolePharmacy), h.HandleAssignDriver)
}

type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest represents the checkout body.
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress models.DeliveryAddress `json:"deliveryAddress"`
	PaymentMethod   models.PaymentMethod   `json:"paymentMethod" validate:"required,oneof=cod card upi wallet"`
	Notes           string                 `json:"notes" validate:"max=500"`
}

// HandleCreateOrder places an order for the calling customer. A repeated
// Idempotency-Key returns the first order with 200 instead of 201.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	lines := make([]services.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, services.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, created, err := h.service.Create(c.UserContext(), middleware.CurrentUser(c), services.CreateOrderInput{
		Items:           lines,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		IdempotencyKey:  c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return respondError(c, "Could not create order", err)
	}

	status := fiber.StatusCreated
	if !created {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": "Order created successfully",
		"data":    order,
	})
}

// HandleGetOrders lists the caller's orders, optionally filtered by status.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), middleware.CurrentUser(c), services.OrderQuery{
		Status:     models.OrderStatus(c.Query("status")),
		Pagination: pagination(c),
	})
	if err != nil {
		return respondError(c, "Could not retrieve orders", err)
	}
	return paginated(c, page)
}

// HandleGetOrderByID retrieves a single order the caller may see.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.Get(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, "Could not retrieve order", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
	Note   string             `json:"note" validate:"max=500"`
}

// HandleUpdateOrderStatus moves an order to the requested status.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	order, err := h.service.UpdateStatus(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req.Status, req.Note)
	if err != nil {
		return respondError(c, "Could not update order status", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req CancelOrderRequest
	if len(c.Body()) > 0 {
		if ok, err := bind(c, h.validate, &req); !ok {
			return err
		}
	}
	order, err := h.service.Cancel(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, "Could not cancel order", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type AssignDriverRequest struct {
	DriverID string `json:"driverId"`
}

// HandleAssignDriver lets a driver take an order or a pharmacy assign one.
func (h *OrderHandler) HandleAssignDriver(c *fiber.Ctx) error {
	var req AssignDriverRequest
	if len(c.Body()) > 0 {
		if ok, err := bind(c, h.validate, &req); !ok {
			return err
		}
	}
	order, err := h.service.AssignDriver(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req.DriverID)
	if err != nil {
		return respondError(c, "Could not assign driver", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// HandleGetAvailableOrders lists orders waiting for a driver.
func (h *OrderHandler) HandleGetAvailableOrders(c *fiber.Ctx) error {
	page, err := h.service.AvailableForDrivers(c.UserContext(), pagination(c))
	if err != nil {
		return respondError(c, "Could not retrieve available orders", err)
	}
	return paginated(c, page)
}
