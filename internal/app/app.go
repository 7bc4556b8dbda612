// Package app assembles the fiber application: middleware, static uploads
// and every API route.
package app

import (
	"errors"
	"time"

	"medigo/internal/config"
	"medigo/internal/handlers"
	"medigo/internal/logger"
	"medigo/internal/middleware"
	"medigo/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Services are the dependencies the handlers need.
type Services struct {
	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Users    *services.UserService
	Carts    *services.CartService
}

// errorHandler renders unhandled errors in the same JSON shape handlers use.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, message = fe.Code, fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		logger.FromCtx(c.UserContext()).Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// New builds the fiber app for cfg.
func New(cfg *config.Config, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "medigo",
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{ContextKey: logger.RequestIDLocal}))
	app.Use(logger.Middleware())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.ClientOrigin,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + handlers.IdempotencyKeyHeader,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	auth := middleware.AuthRequired(svc.Auth)
	authLimit := limiter.New(limiter.Config{
		Max:        cfg.RateLimitAuth,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|auth"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many attempts, please try again later",
			})
		},
	})

	api := app.Group("/api")
	handlers.NewAuthHandler(svc.Auth).RegisterRoutes(api, auth, authLimit)
	handlers.NewProductHandler(svc.Products, cfg.UploadDir).RegisterRoutes(api, auth)
	handlers.NewOrderHandler(svc.Orders).RegisterRoutes(api, auth)
	handlers.NewCartHandler(svc.Carts).RegisterRoutes(api, auth)
	handlers.NewUserHandler(svc.Users).RegisterRoutes(api, auth)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Route not found",
		})
	})
	return app
}
