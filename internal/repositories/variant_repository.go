package repositories

import (
	"context"
	"fmt"

	"shoestore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VariantRepository defines the interface for variant data access.
//
// DecrementIfAvailable and Increment are the only writes to the quantity
// column after creation.
type VariantRepository interface {
	GetByID(ctx context.Context, id string) (*models.Variant, error)
	FindByProductSizeColor(ctx context.Context, productID, size, color string) (*models.Variant, error)
	Create(ctx context.Context, variant *models.Variant) error
	// DecrementIfAvailable subtracts quantity in one conditional statement and
	// reports false when the variant is missing or holds fewer units.
	DecrementIfAvailable(ctx context.Context, id string, quantity int) (bool, error)
	Increment(ctx context.Context, id string, quantity int) error
}

// GORMVariantRepository is a GORM implementation of VariantRepository.
type GORMVariantRepository struct {
	db *gorm.DB
}

// NewGORMVariantRepository creates a new instance of GORMVariantRepository.
func NewGORMVariantRepository(db *gorm.DB) *GORMVariantRepository {
	return &GORMVariantRepository{
		db: db,
	}
}

// GetByID retrieves a variant by its ID.
func (r *GORMVariantRepository) GetByID(ctx context.Context, id string) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("variant with ID %s: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get variant by ID %s: %w", id, err)
	}
	return &variant, nil
}

// FindByProductSizeColor looks a variant up by its natural key.
func (r *GORMVariantRepository) FindByProductSizeColor(ctx context.Context, productID, size, color string) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ? AND color = ?", productID, size, color).
		First(&variant).Error
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("variant for product %s size %s color %s: %w", productID, size, color, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to find variant for product %s: %w", productID, err)
	}
	return &variant, nil
}

// Create inserts a new variant.
func (r *GORMVariantRepository) Create(ctx context.Context, variant *models.Variant) error {
	if variant.ID == "" {
		variant.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(variant).Error; err != nil {
		return fmt.Errorf("failed to create variant: %w", err)
	}
	return nil
}

// DecrementIfAvailable implements VariantRepository.
func (r *GORMVariantRepository) DecrementIfAvailable(ctx context.Context, id string, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ? AND quantity >= ?", id, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return false, fmt.Errorf("failed to decrement variant %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Increment adds quantity back to a variant.
func (r *GORMVariantRepository) Increment(ctx context.Context, id string, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to increment variant %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("variant with ID %s not found for increment: %w", id, ErrRecordNotFound)
	}
	return nil
}
