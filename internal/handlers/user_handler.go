package handlers

import (
	"medigo/internal/middleware"
	"medigo/internal/models"
	"medigo/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler serves the pharmacy and driver directories, driver status
// updates and the admin account routes.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service, validate: newValidator()}
}

func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/pharmacies", h.HandleGetPharmacies)

	drivers := router.Group("/drivers", auth)
	drivers.Get("/", middleware.RequireRoles(models.RolePharmacy, models.RoleAdmin), h.HandleGetDrivers)
	drivers.Put("/location", middleware.RequireRoles(models.RoleDriver), h.HandleUpdateLocation)
	drivers.Put("/availability", middleware.RequireRoles(models.RoleDriver), h.HandleSetAvailability)

	admin := router.Group("/admin", auth, middleware.RequireRoles(models.RoleAdmin))
	admin.Get("/users", h.HandleGetUsers)
	admin.Put("/users/:id/approve", h.HandleApprove)
}

func (h *UserHandler) HandleGetPharmacies(c *fiber.Ctx) error {
	pharmacies, err := h.service.ListPharmacies(c.UserContext())
	if err != nil {
		return respondError(c, "Could not retrieve pharmacies", err)
	}
	return c.JSON(fiber.Map{"success": true, "count": len(pharmacies), "data": pharmacies})
}

// HandleGetDrivers lists approved drivers; admins may add ?all=true.
func (h *UserHandler) HandleGetDrivers(c *fiber.Ctx) error {
	q := services.DriverQuery{AvailableOnly: c.QueryBool("available")}
	if middleware.CurrentUser(c).Role == models.RoleAdmin {
		q.IncludeUnapproved = c.QueryBool("all")
	}
	drivers, err := h.service.ListDrivers(c.UserContext(), q)
	if err != nil {
		return respondError(c, "Could not retrieve drivers", err)
	}
	return c.JSON(fiber.Map{"success": true, "count": len(drivers), "data": drivers})
}

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (h *UserHandler) HandleUpdateLocation(c *fiber.Ctx) error {
	var req LocationRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	driver, err := h.service.UpdateDriverLocation(c.UserContext(), middleware.CurrentUser(c).ID, *req.Latitude, *req.Longitude)
	if err != nil {
		return respondError(c, "Could not update location", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": driver})
}

type AvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" validate:"required"`
}

func (h *UserHandler) HandleSetAvailability(c *fiber.Ctx) error {
	var req AvailabilityRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	driver, err := h.service.SetDriverAvailability(c.UserContext(), middleware.CurrentUser(c).ID, *req.IsAvailable)
	if err != nil {
		return respondError(c, "Could not update availability", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": driver})
}

func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext(), models.Role(c.Query("role")))
	if err != nil {
		return respondError(c, "Could not retrieve users", err)
	}
	return c.JSON(fiber.Map{"success": true, "count": len(users), "data": users})
}

func (h *UserHandler) HandleApprove(c *fiber.Ctx) error {
	user, err := h.service.Approve(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, "Could not approve user", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}
