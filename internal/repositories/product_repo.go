package repositories

import (
	"context"

	"shoestore/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// Create inserts the product together with its variants.
	Create(ctx context.Context, product *models.Product) error
	// Update changes catalog fields only; variant stock is never touched.
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
