package models

import "time"

// CartItem is a persisted cart line of a user.
type CartItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_user_product_variant"`
	ProductID string    `json:"product_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_user_product_variant"`
	VariantID string    `json:"variant_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_user_product_variant"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	Product   *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Variant   *Variant  `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
