package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a shoe model in the catalog. Stock lives on its variants.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null"`
	Model       string          `json:"model" gorm:"type:varchar(100)"`
	Description string          `json:"description" gorm:"type:varchar(500)"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Variants    []Variant       `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variant is one size and color combination of a product and the unit of inventory.
type Variant struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string `json:"product_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_variant_product_size_color"`
	Size      string `json:"size" gorm:"type:varchar(20);not null;uniqueIndex:idx_variant_product_size_color"`
	Color     string `json:"color" gorm:"type:varchar(40);not null;uniqueIndex:idx_variant_product_size_color"`
	Quantity  int    `json:"quantity" gorm:"not null;check:chk_variant_quantity_non_negative,quantity >= 0"`
}

// TableName keeps the table name stable regardless of the struct name.
func (Variant) TableName() string {
	return "product_variants"
}
