package handlers

import (
	"medigo/internal/logger"
	"medigo/internal/middleware"
	"medigo/internal/models"
	"medigo/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    newValidator(),
	}
}

// RegisterRoutes registers the authentication routes. auth guards the
// account routes; limit throttles the public ones.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, auth, limit fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", limit, h.HandleRegister)
	authRoutes.Post("/login", limit, h.HandleLogin)
	authRoutes.Get("/me", auth, h.HandleMe)
	authRoutes.Put("/update-profile", auth, h.HandleUpdateProfile)
	authRoutes.Put("/update-password", auth, h.HandleUpdatePassword)
}

// RegisterRequest represents the request body for sign-up.
type RegisterRequest struct {
	FullName        string                  `json:"fullName" validate:"required"`
	Email           string                  `json:"email" validate:"required,email"`
	Password        string                  `json:"password" validate:"required,min=6"`
	Phone           string                  `json:"phone" validate:"required"`
	Role            models.Role             `json:"role" validate:"omitempty,oneof=customer pharmacy driver"`
	PharmacyDetails *models.PharmacyDetails `json:"pharmacyDetails"`
	DriverDetails   *models.DriverDetails   `json:"driverDetails"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	if req.Role == "" {
		req.Role = models.RoleCustomer
	}

	user, token, err := h.authService.Register(c.UserContext(), services.RegisterInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		Phone:           req.Phone,
		Role:            req.Role,
		PharmacyDetails: req.PharmacyDetails,
		DriverDetails:   req.DriverDetails,
	})
	if err != nil {
		return respondError(c, "Registration failed", err)
	}

	logger.FromCtx(c.UserContext()).Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	user, token, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, "Authentication failed", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// HandleMe returns the authenticated account.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    middleware.CurrentUser(c),
	})
}

// UpdateProfileRequest carries the editable profile fields; omitted fields
// stay unchanged.
type UpdateProfileRequest struct {
	FullName        *string                 `json:"fullName" validate:"omitempty,min=1"`
	Phone           *string                 `json:"phone"`
	ProfileImage    *string                 `json:"profileImage"`
	CustomerDetails *models.CustomerDetails `json:"customerDetails" validate:"omitempty"`
	PharmacyDetails *models.PharmacyDetails `json:"pharmacyDetails" validate:"omitempty"`
	DriverDetails   *models.DriverDetails   `json:"driverDetails" validate:"omitempty"`
}

func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.authService.UpdateProfile(c.UserContext(), middleware.CurrentUser(c).ID, services.ProfileUpdate{
		FullName:        req.FullName,
		Phone:           req.Phone,
		ProfileImage:    req.ProfileImage,
		CustomerDetails: req.CustomerDetails,
		PharmacyDetails: req.PharmacyDetails,
		DriverDetails:   req.DriverDetails,
	})
	if err != nil {
		return respondError(c, "Could not update profile", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// UpdatePasswordRequest represents the request body for a password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (h *AuthHandler) HandleUpdatePassword(c *fiber.Ctx) error {
	var req UpdatePasswordRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	token, err := h.authService.UpdatePassword(c.UserContext(), middleware.CurrentUser(c).ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return respondError(c, "Could not update password", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password updated",
		"token":   token,
	})
}
