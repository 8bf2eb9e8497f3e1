package handlers

import (
	"time"

	"shoestore/internal/models"
	"shoestore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DiscountHandler handles HTTP requests for discount codes.
type DiscountHandler struct {
	service  *services.DiscountService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(service *services.DiscountService, logger *zap.Logger) *DiscountHandler {
	return &DiscountHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the customer discount routes.
func (h *DiscountHandler) RegisterRoutes(router fiber.Router) {
	discountRoutes := router.Group("/discount-codes")
	discountRoutes.Get("/", h.HandleGetActiveCodes)
	discountRoutes.Post("/apply", h.HandleApplyDiscount)
}

// RegisterAdminRoutes registers discount code maintenance routes.
func (h *DiscountHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Post("/discount-codes", h.HandleCreateDiscountCode)
}

// HandleGetActiveCodes lists codes that can currently be applied.
func (h *DiscountHandler) HandleGetActiveCodes(c *fiber.Ctx) error {
	codes, err := h.service.GetActiveDiscountCodes(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(codes)
}

// HandleApplyDiscount previews the discount a code grants on an amount.
func (h *DiscountHandler) HandleApplyDiscount(c *fiber.Ctx) error {
	var req applyDiscountRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	discount, err := h.service.ApplyDiscount(c.UserContext(), req.DiscountCodeID, req.Amount)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"discount_code_id": req.DiscountCodeID,
		"amount":           req.Amount,
		"discount_amount":  discount,
		"payable_amount":   req.Amount.Sub(discount),
	})
}

// HandleCreateDiscountCode creates a discount code. Codes are active unless
// is_active is false.
func (h *DiscountHandler) HandleCreateDiscountCode(c *fiber.Ctx) error {
	var req createDiscountCodeRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   kindValidation,
			"message": "expiry_date must be YYYY-MM-DD",
		})
	}
	code := &models.DiscountCode{
		Code:               req.Code,
		DiscountPercentage: req.DiscountPercentage,
		ExpiryDate:         expiry,
		IsActive:           req.IsActive == nil || *req.IsActive,
		MinOrderAmount:     req.MinOrderAmount,
	}
	if req.MaxDiscountAmount != nil {
		code.MaxDiscountAmount = decimal.NewNullDecimal(*req.MaxDiscountAmount)
	}
	if err := h.service.CreateDiscountCode(c.UserContext(), code); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(code)
}
