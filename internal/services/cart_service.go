package services

import (
	"context"
	"errors"
	"fmt"

	"shoestore/internal/models"
	"shoestore/internal/repositories"

	"github.com/shopspring/decimal"
)

// AddCartItemInput identifies the variant to add by product, size and color.
type AddCartItemInput struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
}

// CartView is a user's cart with its current subtotal.
type CartView struct {
	Items    []models.CartItem `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

// CartService manages persisted cart lines. Checkout clears the cart through
// the order transaction, not through this service.
type CartService struct {
	store repositories.Store
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store) *CartService {
	return &CartService{store: store}
}

// GetCart lists the user's cart priced at current catalog prices.
func (s *CartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	items, err := s.store.Carts().ListByUser(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Product != nil {
			subtotal = subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return CartView{Items: items, Subtotal: subtotal}, nil
}

// MergeResult reports how many submitted lines were merged into the cart and
// how many were skipped as malformed or unknown.
type MergeResult struct {
	Merged  int `json:"merged"`
	Skipped int `json:"skipped"`
}

func validateCartLine(in AddCartItemInput) error {
	if in.ProductID == "" || in.Size == "" || in.Color == "" {
		return validationError("product id, size and color are required")
	}
	if in.Quantity <= 0 {
		return validationError("quantity must be positive")
	}
	return nil
}

// AddItem adds a variant to the cart, merging with an existing line for the
// same variant. The merged quantity may not exceed current stock.
func (s *CartService) AddItem(ctx context.Context, userID string, in AddCartItemInput) (*models.CartItem, error) {
	if err := validateCartLine(in); err != nil {
		return nil, err
	}

	var result *models.CartItem
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		item, err := addLine(ctx, tx, userID, in)
		result = item
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// addLine creates or grows the user's line for the variant. Lookup failures
// are returned before anything is written.
func addLine(ctx context.Context, tx repositories.Store, userID string, in AddCartItemInput) (*models.CartItem, error) {
	if _, err := tx.Products().GetByID(ctx, in.ProductID); err != nil {
		return nil, mapLookupError(err, "product %s", in.ProductID)
	}
	variant, err := tx.Variants().FindByProductSizeColor(ctx, in.ProductID, in.Size, in.Color)
	if err != nil {
		return nil, mapLookupError(err, "variant of product %s size %s color %s", in.ProductID, in.Size, in.Color)
	}

	line, err := tx.Carts().FindLine(ctx, userID, in.ProductID, variant.ID)
	switch {
	case err == nil:
		total := line.Quantity + in.Quantity
		if total > variant.Quantity {
			return nil, fmt.Errorf("%w: variant %s has %d, cart would hold %d", ErrInsufficientStock, variant.ID, variant.Quantity, total)
		}
		if err := tx.Carts().UpdateQuantity(ctx, line.ID, total); err != nil {
			return nil, err
		}
		line.Quantity = total
		return line, nil
	case errors.Is(err, repositories.ErrRecordNotFound):
		if in.Quantity > variant.Quantity {
			return nil, fmt.Errorf("%w: variant %s has %d, requested %d", ErrInsufficientStock, variant.ID, variant.Quantity, in.Quantity)
		}
		item := &models.CartItem{
			UserID:    userID,
			ProductID: in.ProductID,
			VariantID: variant.ID,
			Quantity:  in.Quantity,
		}
		if err := tx.Carts().Create(ctx, item); err != nil {
			return nil, err
		}
		return item, nil
	default:
		return nil, err
	}
}

// UpdateQuantity sets the quantity of one of the user's cart lines. The new
// quantity must be positive and may not exceed current stock.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, validationError("quantity must be positive")
	}

	var result *models.CartItem
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		line, err := tx.Carts().GetByID(ctx, userID, itemID)
		if err != nil {
			return mapLookupError(err, "cart item %s", itemID)
		}
		variant, err := tx.Variants().GetByID(ctx, line.VariantID)
		if err != nil {
			return mapLookupError(err, "variant %s", line.VariantID)
		}
		if quantity > variant.Quantity {
			return fmt.Errorf("%w: variant %s has %d, requested %d", ErrInsufficientStock, variant.ID, variant.Quantity, quantity)
		}
		if err := tx.Carts().UpdateQuantity(ctx, line.ID, quantity); err != nil {
			return err
		}
		line.Quantity = quantity
		result = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeCart folds lines kept by a client before sign-in into the user's cart.
// Malformed lines and lines naming an unknown product or variant are skipped.
// A stock shortfall on any line rejects the whole merge.
func (s *CartService) MergeCart(ctx context.Context, userID string, lines []AddCartItemInput) (MergeResult, error) {
	var result MergeResult
	err := s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		result = MergeResult{}
		for _, in := range lines {
			if validateCartLine(in) != nil {
				result.Skipped++
				continue
			}
			if _, err := addLine(ctx, tx, userID, in); err != nil {
				if errors.Is(err, ErrNotFound) {
					result.Skipped++
					continue
				}
				return err
			}
			result.Merged++
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	return result, nil
}

// ClearCart removes every line of the user's cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) (int64, error) {
	return s.store.Carts().DeleteAllByUser(ctx, userID)
}

// RemoveItem deletes one of the user's cart lines.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	return mapLookupError(s.store.Carts().Delete(ctx, userID, itemID), "cart item %s", itemID)
}
