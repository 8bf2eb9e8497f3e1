package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shoestore/internal/models"
	"shoestore/internal/repositories"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountResult is the outcome of evaluating a code against a subtotal.
type DiscountResult struct {
	// Applicable is false when the code is inactive or expired.
	Applicable bool
	// MinimumMet is false when the subtotal is below the code's minimum order amount.
	MinimumMet bool
	Amount     decimal.Decimal
}

// EvaluateDiscount computes the discount a code grants on a subtotal at the
// given moment. It has no side effects and depends on nothing else.
//
// A code is applicable while active and its expiry date is after today's date.
// Below the minimum order amount the discount is zero. Otherwise the
// percentage is applied, rounded to cents, and capped at the maximum amount.
func EvaluateDiscount(code models.DiscountCode, subtotal decimal.Decimal, now time.Time) DiscountResult {
	if !code.IsActive || !expiresAfter(code.ExpiryDate, now) {
		return DiscountResult{Amount: decimal.Zero}
	}
	if subtotal.LessThan(code.MinOrderAmount) {
		return DiscountResult{Applicable: true, Amount: decimal.Zero}
	}

	amount := subtotal.Mul(code.DiscountPercentage).Div(hundred).Round(2)
	if code.MaxDiscountAmount.Valid && amount.GreaterThan(code.MaxDiscountAmount.Decimal) {
		amount = code.MaxDiscountAmount.Decimal
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return DiscountResult{Applicable: true, MinimumMet: true, Amount: amount}
}

func expiresAfter(expiry, now time.Time) bool {
	return dateOf(expiry).After(dateOf(now))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DiscountService handles business logic related to discount codes.
type DiscountService struct {
	repo  repositories.DiscountCodeRepository
	clock func() time.Time
}

// NewDiscountService creates a new DiscountService.
func NewDiscountService(repo repositories.DiscountCodeRepository) *DiscountService {
	return &DiscountService{
		repo:  repo,
		clock: time.Now,
	}
}

// WithClock replaces the time source.
func (s *DiscountService) WithClock(clock func() time.Time) *DiscountService {
	s.clock = clock
	return s
}

// GetActiveDiscountCodes lists codes that are active and not yet expired.
func (s *DiscountService) GetActiveDiscountCodes(ctx context.Context) ([]models.DiscountCode, error) {
	codes, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	active := make([]models.DiscountCode, 0, len(codes))
	for _, code := range codes {
		if expiresAfter(code.ExpiryDate, now) {
			active = append(active, code)
		}
	}
	return active, nil
}

// GetDiscountCodeByID retrieves a discount code.
func (s *DiscountService) GetDiscountCodeByID(ctx context.Context, id string) (*models.DiscountCode, error) {
	code, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "discount code %s", id)
	}
	return code, nil
}

// ApplyDiscount previews the discount a code grants on an amount. It applies
// the same rules as checkout: unknown codes are ErrNotFound and inactive or
// expired codes are ErrValidation.
func (s *DiscountService) ApplyDiscount(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, validationError("amount must not be negative")
	}
	code, err := s.GetDiscountCodeByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	result := EvaluateDiscount(*code, amount, s.clock())
	if !result.Applicable {
		return decimal.Zero, validationError("discount code %s is not applicable", code.Code)
	}
	return result.Amount, nil
}

// CreateDiscountCode validates and stores a new code. Codes are stored upper case.
func (s *DiscountService) CreateDiscountCode(ctx context.Context, code *models.DiscountCode) error {
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))
	if code.Code == "" {
		return validationError("code is required")
	}
	if code.DiscountPercentage.IsNegative() || code.DiscountPercentage.GreaterThan(hundred) {
		return validationError("discount percentage must be between 0 and 100")
	}
	if code.MinOrderAmount.IsNegative() {
		return validationError("minimum order amount must not be negative")
	}
	if code.MaxDiscountAmount.Valid && code.MaxDiscountAmount.Decimal.IsNegative() {
		return validationError("maximum discount amount must not be negative")
	}
	if code.ExpiryDate.IsZero() {
		return validationError("expiry date is required")
	}
	code.ExpiryDate = dateOf(code.ExpiryDate)
	_, err := s.repo.GetByCode(ctx, code.Code)
	switch {
	case err == nil:
		return validationError("discount code %s already exists", code.Code)
	case !errors.Is(err, repositories.ErrRecordNotFound):
		return fmt.Errorf("failed to check discount code %s: %w", code.Code, err)
	}
	code.CreatedAt = s.clock().UTC()
	return s.repo.Create(ctx, code)
}
