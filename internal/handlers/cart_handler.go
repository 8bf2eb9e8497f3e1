package handlers

import (
	"shoestore/internal/middleware"
	"shoestore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the cart routes.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Put("/items/:id", h.HandleUpdateQuantity)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
	cartRoutes.Post("/merge", h.HandleMergeCart)
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req addCartItemRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	item, err := h.service.AddItem(c.UserContext(), middleware.UserID(c), services.AddCartItemInput{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.service.RemoveItem(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req updateCartItemRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	item, err := h.service.UpdateQuantity(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Quantity)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(item)
}

// HandleClearCart empties the caller's cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	removed, err := h.service.ClearCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// HandleMergeCart merges a client-side cart into the caller's cart and
// returns the result with the updated cart.
func (h *CartHandler) HandleMergeCart(c *fiber.Ctx) error {
	var req mergeCartRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	userID := middleware.UserID(c)
	lines := make([]services.AddCartItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, services.AddCartItemInput{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.service.MergeCart(c.UserContext(), userID, lines)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if result.Skipped > 0 {
		h.logger.Info("cart merge skipped lines", zap.String("user_id", userID), zap.Int("skipped", result.Skipped))
	}
	cart, err := h.service.GetCart(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"merged":  result.Merged,
		"skipped": result.Skipped,
		"cart":    cart,
	})
}
