package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shoestore/internal/models"
	"shoestore/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "product %s", id)
	}
	return product, nil
}

// CreateProduct creates a new product with its variants.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(product.Variants))
	for i := range product.Variants {
		v := &product.Variants[i]
		v.Size = strings.TrimSpace(v.Size)
		v.Color = strings.TrimSpace(v.Color)
		if v.Size == "" || v.Color == "" {
			return validationError("variant %d: size and color are required", i)
		}
		if v.Quantity < 0 {
			return validationError("variant %d: quantity must not be negative", i)
		}
		key := strings.ToLower(v.Size + "/" + v.Color)
		if _, dup := seen[key]; dup {
			return validationError("variant %d: duplicate size %s color %s", i, v.Size, v.Color)
		}
		seen[key] = struct{}{}
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct updates catalog fields of an existing product. Variant stock
// is left untouched.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	return mapLookupError(s.repo.Update(ctx, product), "product %s", product.ID)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrReferenced) {
		return fmt.Errorf("%w: product %s is still in carts or orders", ErrConflict, id)
	}
	return mapLookupError(err, "product %s", id)
}

func validateProduct(product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return validationError("product name is required")
	}
	if !product.Price.IsPositive() {
		return validationError("product price must be positive")
	}
	return nil
}
