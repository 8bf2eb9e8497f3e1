package services

import (
	"time"

	"shoestore/internal/models"

	"github.com/shopspring/decimal"
)

// OrderItemView is one order line as returned to clients.
type OrderItemView struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	Name        string          `json:"name"`
	Model       string          `json:"model"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderView is an order as returned to clients.
type OrderView struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	Status         models.OrderStatus `json:"status"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	DiscountCodeID *string            `json:"discount_code_id"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	PayableAmount  decimal.Decimal    `json:"payable_amount"`
	OrderNote      string             `json:"order_note"`
	PaymentMethod  string             `json:"payment_method"`
	Items          []OrderItemView    `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// NewOrderView flattens an order and its preloaded items.
func NewOrderView(order models.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		line := OrderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			LineTotal:   item.PriceAtTime.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.Model = item.Product.Model
		}
		if item.Variant != nil {
			line.Size = item.Variant.Size
			line.Color = item.Variant.Color
		}
		items = append(items, line)
	}
	return OrderView{
		ID:             order.ID,
		UserID:         order.UserID,
		Status:         order.Status,
		TotalAmount:    order.TotalAmount,
		DiscountCodeID: order.DiscountCodeID,
		DiscountAmount: order.DiscountAmount,
		PayableAmount:  order.PayableAmount(),
		OrderNote:      order.OrderNote,
		PaymentMethod:  order.PaymentMethod,
		Items:          items,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

func newOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, NewOrderView(order))
	}
	return views
}
