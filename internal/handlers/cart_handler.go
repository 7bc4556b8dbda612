package handlers

import (
	"medigo/internal/cart"
	"medigo/internal/middleware"
	"medigo/internal/models"
	"medigo/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler serves the customer's persisted cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service, validate: newValidator()}
}

func (h *CartHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	cartRoutes := router.Group("/cart", auth, middleware.RequireRoles(models.RoleCustomer))
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Put("/items/:productId", h.HandleUpdateItem)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/checkout", h.HandleCheckout)
}

func cartBody(snap cart.Snapshot) fiber.Map {
	return fiber.Map{
		"success": true,
		"data": fiber.Map{
			"pharmacyId": snap.PharmacyID,
			"items":      snap.Items,
			"count":      snap.Count(),
			"total":      snap.Total(),
		},
	}
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	snap, err := h.service.Get(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, "Could not load cart", err)
	}
	return c.JSON(cartBody(snap))
}

type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1"`
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddCartItemRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	snap, err := h.service.AddItem(c.UserContext(), middleware.CurrentUser(c).ID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, "Could not add item", err)
	}
	return c.JSON(cartBody(snap))
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// HandleUpdateItem sets a line's quantity; zero or less removes it.
func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req UpdateCartItemRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	snap, err := h.service.UpdateItem(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("productId"), req.Quantity)
	if err != nil {
		return respondError(c, "Could not update item", err)
	}
	return c.JSON(cartBody(snap))
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	snap, err := h.service.RemoveItem(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("productId"))
	if err != nil {
		return respondError(c, "Could not remove item", err)
	}
	return c.JSON(cartBody(snap))
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext(), middleware.CurrentUser(c).ID); err != nil {
		return respondError(c, "Could not clear cart", err)
	}
	return c.JSON(cartBody(cart.Clear()))
}

type CheckoutRequest struct {
	DeliveryAddress models.DeliveryAddress `json:"deliveryAddress"`
	PaymentMethod   models.PaymentMethod   `json:"paymentMethod" validate:"required,oneof=cod card upi wallet"`
	Notes           string                 `json:"notes" validate:"max=500"`
}

// HandleCheckout turns the cart into an order and empties it.
func (h *CartHandler) HandleCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	order, created, err := h.service.Checkout(c.UserContext(), middleware.CurrentUser(c), services.CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		IdempotencyKey:  c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return respondError(c, "Checkout failed", err)
	}
	status := fiber.StatusCreated
	if !created {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "data": order})
}
