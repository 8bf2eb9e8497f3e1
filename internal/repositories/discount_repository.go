package repositories

import (
	"context"
	"fmt"
	"time"

	"shoestore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscountCodeRepository defines the interface for discount code data access.
type DiscountCodeRepository interface {
	GetByID(ctx context.Context, id string) (*models.DiscountCode, error)
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	ListActive(ctx context.Context) ([]models.DiscountCode, error)
	Create(ctx context.Context, code *models.DiscountCode) error
}

// GORMDiscountCodeRepository is a GORM implementation of DiscountCodeRepository.
type GORMDiscountCodeRepository struct {
	db *gorm.DB
}

// NewGORMDiscountCodeRepository creates a new instance of GORMDiscountCodeRepository.
func NewGORMDiscountCodeRepository(db *gorm.DB) *GORMDiscountCodeRepository {
	return &GORMDiscountCodeRepository{
		db: db,
	}
}

// GetByID retrieves a discount code by its ID.
func (r *GORMDiscountCodeRepository) GetByID(ctx context.Context, id string) (*models.DiscountCode, error) {
	var code models.DiscountCode
	if err := r.db.WithContext(ctx).First(&code, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("discount code with ID %s: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get discount code by ID %s: %w", id, err)
	}
	return &code, nil
}

// GetByCode retrieves a discount code by its code string.
func (r *GORMDiscountCodeRepository) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	if err := r.db.WithContext(ctx).First(&dc, "code = ?", code).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("discount code %s: %w", code, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get discount code %s: %w", code, err)
	}
	return &dc, nil
}

// ListActive returns codes flagged active. Expiry is filtered by the caller.
func (r *GORMDiscountCodeRepository) ListActive(ctx context.Context) ([]models.DiscountCode, error) {
	var codes []models.DiscountCode
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("expiry_date").Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to list active discount codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new discount code.
func (r *GORMDiscountCodeRepository) Create(ctx context.Context, code *models.DiscountCode) error {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return fmt.Errorf("failed to create discount code: %w", err)
	}
	return nil
}
