package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCode is a percentage promotion with an optional cap.
type DiscountCode struct {
	ID                 string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code               string              `json:"code" gorm:"uniqueIndex;type:varchar(50);not null"`
	DiscountPercentage decimal.Decimal     `json:"discount_percentage" gorm:"type:decimal(5,2);not null"`
	ExpiryDate         time.Time           `json:"expiry_date" gorm:"type:date;not null"`
	IsActive           bool                `json:"is_active" gorm:"not null"`
	MinOrderAmount     decimal.Decimal     `json:"min_order_amount" gorm:"type:decimal(12,2);not null"`
	MaxDiscountAmount  decimal.NullDecimal `json:"max_discount_amount" gorm:"type:decimal(12,2)"`
	CreatedAt          time.Time           `json:"created_at"`
}
