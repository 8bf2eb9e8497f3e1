package handlers

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size" validate:"required,max=20"`
	Color     string `json:"color" validate:"required,max=40"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type createOrderRequest struct {
	Items          []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountCodeID *string            `json:"discount_code_id" validate:"omitempty,max=36"`
	OrderNote      string             `json:"order_note" validate:"max=500"`
	PaymentMethod  string             `json:"payment_method" validate:"max=30"`
}

// Status is checked by the order service so every bad token reports invalid_status.
type updateStatusRequest struct {
	Status string `json:"status"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size" validate:"required,max=20"`
	Color     string `json:"color" validate:"required,max=40"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

// Lines are checked by the service so bad ones can be skipped.
type mergeCartRequest struct {
	Items []addCartItemRequest `json:"items" validate:"max=100"`
}

type applyDiscountRequest struct {
	DiscountCodeID string          `json:"discount_code_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
}

type variantRequest struct {
	Size     string `json:"size" validate:"required,max=20"`
	Color    string `json:"color" validate:"required,max=40"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

type productRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Model       string           `json:"model" validate:"max=100"`
	Description string           `json:"description" validate:"max=500"`
	Price       decimal.Decimal  `json:"price"`
	Variants    []variantRequest `json:"variants" validate:"dive"`
}

type createDiscountCodeRequest struct {
	Code               string           `json:"code" validate:"required,max=50"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	ExpiryDate         string           `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	IsActive           *bool            `json:"is_active"`
	MinOrderAmount     decimal.Decimal  `json:"min_order_amount"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount"`
}
