package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order, transmitted as an upper-case token.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipping   OrderStatus = "SHIPPING"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// DefaultPaymentMethod is used when checkout does not name one.
const DefaultPaymentMethod = "COD"

// ErrUnknownOrderStatus is returned by ParseOrderStatus for unrecognised tokens.
var ErrUnknownOrderStatus = errors.New("unknown order status")

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus converts a case-insensitive token into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range OrderStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", ErrUnknownOrderStatus
}

// IsTerminal reports whether no further transitions leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderItem represents a single line of an order.
type OrderItem struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	Position    int             `json:"position" gorm:"not null"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null"`
	VariantID   string          `json:"variant_id" gorm:"type:varchar(36);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	PriceAtTime decimal.Decimal `json:"price_at_time" gorm:"type:decimal(12,2);not null"` // Price at the time of order
	Product     *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Variant     *Variant        `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
}

// Order represents a customer order. Only Status and UpdatedAt change after creation.
type Order struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string          `json:"user_id" gorm:"type:varchar(36);not null;index"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	DiscountCodeID *string         `json:"discount_code_id" gorm:"type:varchar(36)"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2);not null"`
	OrderNote      string          `json:"order_note" gorm:"type:varchar(500)"`
	PaymentMethod  string          `json:"payment_method" gorm:"type:varchar(30);not null"`
	Status         OrderStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	Items          []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PayableAmount is the total after the discount.
func (o Order) PayableAmount() decimal.Decimal {
	return o.TotalAmount.Sub(o.DiscountAmount)
}

// ReservedUnits sums the quantities of all lines.
func (o Order) ReservedUnits() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}
