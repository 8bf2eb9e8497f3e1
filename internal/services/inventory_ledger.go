package services

import (
	"context"
	"errors"
	"fmt"

	"shoestore/internal/repositories"
)

// InventoryLedger owns the per-variant quantity counter. Checkout reserves and
// cancellation restores; nothing else writes stock.
type InventoryLedger struct {
	variants repositories.VariantRepository
}

// NewInventoryLedger binds a ledger to a variant repository. Pass the
// transaction-scoped repository so the change commits or rolls back with the caller.
func NewInventoryLedger(variants repositories.VariantRepository) *InventoryLedger {
	return &InventoryLedger{variants: variants}
}

// Reserve atomically decrements the variant's quantity and returns what is left.
func (l *InventoryLedger) Reserve(ctx context.Context, variantID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, validationError("quantity must be positive, got %d", quantity)
	}
	ok, err := l.variants.DecrementIfAvailable(ctx, variantID, quantity)
	if err != nil {
		return 0, err
	}
	variant, err := l.variants.GetByID(ctx, variantID)
	if err != nil {
		return 0, mapLookupError(err, "variant %s", variantID)
	}
	if !ok {
		return variant.Quantity, fmt.Errorf("%w: variant %s has %d, requested %d",
			ErrInsufficientStock, variantID, variant.Quantity, quantity)
	}
	return variant.Quantity, nil
}

// Restore adds quantity back to the variant and returns the new quantity.
func (l *InventoryLedger) Restore(ctx context.Context, variantID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, validationError("quantity must be positive, got %d", quantity)
	}
	if err := l.variants.Increment(ctx, variantID, quantity); err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: variant %s", ErrNotFound, variantID)
		}
		return 0, err
	}
	variant, err := l.variants.GetByID(ctx, variantID)
	if err != nil {
		return 0, mapLookupError(err, "variant %s", variantID)
	}
	return variant.Quantity, nil
}
