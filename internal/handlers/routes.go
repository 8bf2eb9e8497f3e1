package handlers

import (
	"time"

	"shoestore/internal/idempotency"
	"shoestore/internal/middleware"
	"shoestore/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Dependencies are the services and settings the API routes need.
type Dependencies struct {
	Products         *services.ProductService
	Carts            *services.CartService
	Discounts        *services.DiscountService
	Orders           *services.OrderService
	IdempotencyStore idempotency.Store
	IdempotencyTTL   time.Duration
	JWTSecret        string
	Logger           *zap.Logger
}

// RegisterRoutes mounts the API under router. The catalog is public;
// everything else needs a bearer token and /admin also needs the admin role.
func RegisterRoutes(router fiber.Router, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	productHandler := NewProductHandler(deps.Products, logger)
	cartHandler := NewCartHandler(deps.Carts, logger)
	discountHandler := NewDiscountHandler(deps.Discounts, logger)
	orderHandler := NewOrderHandler(deps.Orders, logger)

	productHandler.RegisterRoutes(router)

	protected := router.Group("", middleware.AuthRequired(deps.JWTSecret, logger))
	cartHandler.RegisterRoutes(protected)
	discountHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected, middleware.Idempotency(middleware.IdempotencyConfig{
		Store:  deps.IdempotencyStore,
		TTL:    deps.IdempotencyTTL,
		Logger: logger,
	}))

	admin := protected.Group("/admin", middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)
	discountHandler.RegisterAdminRoutes(admin)
	orderHandler.RegisterAdminRoutes(admin)
}
