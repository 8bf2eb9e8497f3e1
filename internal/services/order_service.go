package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shoestore/internal/events"
	"shoestore/internal/models"
	"shoestore/internal/repositories"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartLine is one requested line of a checkout.
type CartLine struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
}

// CreateOrderCommand carries everything checkout needs. Prices are always
// read from the catalog.
type CreateOrderCommand struct {
	UserID         string
	Lines          []CartLine
	DiscountCodeID *string
	Note           string
	PaymentMethod  string
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store     repositories.Store
	publisher events.Publisher
	logger    *zap.Logger
	clock     func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(store repositories.Store, publisher events.Publisher, logger *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		clock:     time.Now,
	}
}

// WithClock replaces the time source used for timestamps and discount expiry.
func (s *OrderService) WithClock(clock func() time.Time) *OrderService {
	s.clock = clock
	return s
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]OrderView, error) {
	orders, err := s.store.Orders().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return newOrderViews(orders), nil
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (OrderView, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return OrderView{}, mapLookupError(err, "order %s", id)
	}
	return NewOrderView(*order), nil
}

// GetOrdersByUser lists the orders of a user, newest first.
func (s *OrderService) GetOrdersByUser(ctx context.Context, userID string) ([]OrderView, error) {
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newOrderViews(orders), nil
}

// GetOrderByIDAndUser returns an order owned by the user. Orders of other
// users are reported as not found.
func (s *OrderService) GetOrderByIDAndUser(ctx context.Context, id, userID string) (OrderView, error) {
	order, err := s.store.Orders().GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return OrderView{}, mapLookupError(err, "order %s", id)
	}
	return NewOrderView(*order), nil
}

func validateCommand(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return validationError("user id is required")
	}
	if len(cmd.Lines) == 0 {
		return validationError("order must contain at least one item")
	}
	for i, line := range cmd.Lines {
		if line.ProductID == "" || line.Size == "" || line.Color == "" {
			return validationError("item %d: product id, size and color are required", i)
		}
		if line.Quantity <= 0 {
			return validationError("item %d: quantity must be positive", i)
		}
	}
	return nil
}

type pricedLine struct {
	product *models.Product
	variant *models.Variant
	qty     int
}

// CreateOrder places an order for the requested lines. In one transaction it
// reserves stock for every line, prices the order from the catalog, applies
// the discount, stores the order and empties the user's cart. On any error
// nothing is written.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (view OrderView, err error) {
	ctx, span := startSpan(ctx, "OrderService.CreateOrder",
		attribute.String("user.id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Lines)))
	defer func() { finishSpan(span, err) }()

	if err := validateCommand(cmd); err != nil {
		return OrderView{}, err
	}

	now := s.clock().UTC()
	var created *models.Order
	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().GetByID(ctx, cmd.UserID); err != nil {
			return mapLookupError(err, "user %s", cmd.UserID)
		}

		lines := make([]pricedLine, 0, len(cmd.Lines))
		subtotal := decimal.Zero
		for i, line := range cmd.Lines {
			product, err := tx.Products().GetByID(ctx, line.ProductID)
			if err != nil {
				return mapLookupError(err, "product %s", line.ProductID)
			}
			variant, err := tx.Variants().FindByProductSizeColor(ctx, line.ProductID, line.Size, line.Color)
			if err != nil {
				return mapLookupError(err, "variant of product %s size %s color %s", line.ProductID, line.Size, line.Color)
			}
			if variant.Quantity < line.Quantity {
				return fmt.Errorf("%w: item %d (%s size %s color %s) has %d, requested %d",
					ErrInsufficientStock, i, product.Name, variant.Size, variant.Color, variant.Quantity, line.Quantity)
			}
			lines = append(lines, pricedLine{product: product, variant: variant, qty: line.Quantity})
			subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		discount := decimal.Zero
		if cmd.DiscountCodeID != nil && *cmd.DiscountCodeID != "" {
			code, err := tx.DiscountCodes().GetByID(ctx, *cmd.DiscountCodeID)
			if err != nil {
				return mapLookupError(err, "discount code %s", *cmd.DiscountCodeID)
			}
			result := EvaluateDiscount(*code, subtotal, now)
			if !result.Applicable {
				return validationError("discount code %s is not applicable", code.Code)
			}
			discount = result.Amount
		}

		paymentMethod := strings.TrimSpace(cmd.PaymentMethod)
		if paymentMethod == "" {
			paymentMethod = models.DefaultPaymentMethod
		}
		order := &models.Order{
			UserID:         cmd.UserID,
			TotalAmount:    subtotal,
			DiscountAmount: discount,
			OrderNote:      cmd.Note,
			PaymentMethod:  paymentMethod,
			Status:         models.OrderStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if cmd.DiscountCodeID != nil && *cmd.DiscountCodeID != "" {
			order.DiscountCodeID = cmd.DiscountCodeID
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		ledger := NewInventoryLedger(tx.Variants())
		for i, line := range lines {
			item := &models.OrderItem{
				OrderID:     order.ID,
				Position:    i,
				ProductID:   line.product.ID,
				VariantID:   line.variant.ID,
				Quantity:    line.qty,
				PriceAtTime: line.product.Price,
			}
			if err := tx.Orders().AddItem(ctx, item); err != nil {
				return err
			}
			if _, err := ledger.Reserve(ctx, line.variant.ID, line.qty); err != nil {
				return err
			}
		}

		if _, err := tx.Carts().DeleteAllByUser(ctx, cmd.UserID); err != nil {
			return err
		}

		reloaded, err := tx.Orders().GetByID(ctx, order.ID)
		if err != nil {
			return err
		}
		created = reloaded
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	span.SetAttributes(attribute.String("order.id", created.ID))
	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("total_amount", created.TotalAmount.StringFixed(2)),
		zap.String("discount_amount", created.DiscountAmount.StringFixed(2)),
		zap.Int("units", created.ReservedUnits()))

	event := s.newEvent(events.TypeOrderCreated, created)
	event.Actor = string(ActorCustomer)
	s.publish(ctx, event)

	return NewOrderView(*created), nil
}

// UpdateOrderStatusByCustomer lets a customer cancel one of their own orders
// while it is PENDING or PROCESSING.
func (s *OrderService) UpdateOrderStatusByCustomer(ctx context.Context, orderID, userID, rawStatus string) (OrderView, error) {
	return s.transition(ctx, ActorCustomer, orderID, userID, rawStatus)
}

// UpdateOrderStatusByAdmin moves an order along the fulfilment flow or cancels it.
func (s *OrderService) UpdateOrderStatusByAdmin(ctx context.Context, orderID, rawStatus string) (OrderView, error) {
	return s.transition(ctx, ActorAdmin, orderID, "", rawStatus)
}

// transition applies a status change in one transaction. The status write is
// conditional on the status that was read, so of two racing changes only one
// commits; the other gets ErrInvalidTransition. Cancelling from PENDING or
// PROCESSING restores every item's stock in the same transaction.
func (s *OrderService) transition(ctx context.Context, actor Actor, orderID, userID, rawStatus string) (view OrderView, err error) {
	ctx, span := startSpan(ctx, "OrderService.UpdateOrderStatus",
		attribute.String("order.id", orderID),
		attribute.String("actor", string(actor)))
	defer func() { finishSpan(span, err) }()

	target, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return OrderView{}, fmt.Errorf("%w: %q", ErrInvalidStatus, rawStatus)
	}

	now := s.clock().UTC()
	var (
		previous models.OrderStatus
		updated  *models.Order
	)
	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		var order *models.Order
		var err error
		if actor == ActorCustomer {
			order, err = tx.Orders().GetByIDAndUser(ctx, orderID, userID)
		} else {
			order, err = tx.Orders().GetByID(ctx, orderID)
		}
		if err != nil {
			return mapLookupError(err, "order %s", orderID)
		}
		previous = order.Status

		if !CanTransition(actor, order.Status, target) {
			return fmt.Errorf("%w: %s cannot move order from %s to %s", ErrInvalidTransition, actor, order.Status, target)
		}

		ok, err := tx.Orders().UpdateStatus(ctx, order.ID, order.Status, target, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s is no longer %s", ErrInvalidTransition, order.ID, order.Status)
		}

		if target == models.OrderStatusCancelled && restocksOnCancel(order.Status) {
			ledger := NewInventoryLedger(tx.Variants())
			for _, item := range order.Items {
				if _, err := ledger.Restore(ctx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}

		updated, err = tx.Orders().GetByID(ctx, order.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.logger.Warn("order status change rejected",
				zap.String("order_id", orderID),
				zap.String("actor", string(actor)),
				zap.String("target", string(target)),
				zap.Error(err))
		}
		return OrderView{}, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", updated.ID),
		zap.String("actor", string(actor)),
		zap.String("from", string(previous)),
		zap.String("to", string(updated.Status)))

	event := s.newEvent(events.TypeOrderStatusChanged, updated)
	event.PreviousStatus = string(previous)
	event.Actor = string(actor)
	s.publish(ctx, event)

	return NewOrderView(*updated), nil
}

func (s *OrderService) newEvent(eventType string, order *models.Order) events.OrderEvent {
	event := events.NewOrderEvent(eventType, s.clock())
	event.OrderID = order.ID
	event.UserID = order.UserID
	event.Status = string(order.Status)
	event.TotalAmount = order.TotalAmount
	event.DiscountAmount = order.DiscountAmount
	event.ItemCount = len(order.Items)
	return event
}

// publish runs after commit; a delivery failure is logged and never undoes the order.
func (s *OrderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("event_type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}
