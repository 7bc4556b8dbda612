package middleware

import (
	"strings"

	"medigo/internal/logger"
	"medigo/internal/models"
	"medigo/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserLocal is the fiber Locals key AuthRequired stores the caller under.
const UserLocal = "user"

// AuthRequired is a Fiber middleware to check for a valid JWT token. It
// loads the account the token belongs to and rejects deactivated users.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, no token",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.FromCtx(c.UserContext()).Debug("jwt validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, token failed",
			})
		}

		user, err := authService.CurrentUser(c.UserContext(), claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, user not found",
			})
		}
		if !user.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Account is deactivated",
			})
		}

		c.Locals(UserLocal, user)
		c.SetUserContext(logger.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// RequireRoles lets the request through only for the listed roles. It must
// run after AuthRequired.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized",
			})
		}
		for _, r := range roles {
			if user.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "User role " + string(user.Role) + " is not authorized to access this route",
		})
	}
}

// CurrentUser returns the caller stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(UserLocal).(*models.User)
	return user
}
