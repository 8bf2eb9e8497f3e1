package handlers

import (
	"shoestore/internal/middleware"
	"shoestore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the customer order routes. Extra handlers run
// before checkout only.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, checkout ...fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", append(checkout, h.HandleCreateOrder)...)
	orderRoutes.Put("/:id/status", h.HandleCancelOrder)
}

// RegisterAdminRoutes registers the order routes for staff.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	adminRoutes := router.Group("/orders")
	adminRoutes.Get("/", h.HandleAdminGetOrders)
	adminRoutes.Get("/:id", h.HandleAdminGetOrderByID)
	adminRoutes.Put("/:id/status", h.HandleAdminUpdateOrderStatus)
}

// HandleGetOrders lists the caller's orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetOrdersByUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID returns one of the caller's orders.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByIDAndUser(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder places an order from the submitted cart lines.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	cmd := services.CreateOrderCommand{
		UserID:         middleware.UserID(c),
		Lines:          make([]services.CartLine, 0, len(req.Items)),
		DiscountCodeID: req.DiscountCodeID,
		Note:           req.OrderNote,
		PaymentMethod:  req.PaymentMethod,
	}
	for _, item := range req.Items {
		cmd.Lines = append(cmd.Lines, services.CartLine{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.service.CreateOrder(c.UserContext(), cmd)
	if err != nil {
		h.logger.Info("checkout rejected", zap.String("user_id", cmd.UserID), zap.Error(err))
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleCancelOrder applies a customer status change. Only cancellation is allowed.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	var req updateStatusRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	order, err := h.service.UpdateOrderStatusByCustomer(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Status)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleAdminGetOrders lists every order.
func (h *OrderHandler) HandleAdminGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

// HandleAdminGetOrderByID returns any order.
func (h *OrderHandler) HandleAdminGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}

// HandleAdminUpdateOrderStatus moves an order through its lifecycle.
func (h *OrderHandler) HandleAdminUpdateOrderStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	order, err := h.service.UpdateOrderStatusByAdmin(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(order)
}
