package services

import (
	"errors"
	"fmt"

	"shoestore/internal/repositories"
)

// Error kinds surfaced to clients. Callers match them with errors.Is; the
// wrapped message carries the detail.
var (
	// ErrNotFound covers missing users, products, variants, orders, cart lines and discount codes.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a requested quantity exceeds what a variant holds.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStatus indicates an unparseable status token.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition indicates the status change is not allowed from the
	// current state or for the caller's role.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request clashes with existing data, such as
	// deleting a product that orders still reference.
	ErrConflict = errors.New("conflict")
)

// mapLookupError turns a repository miss into ErrNotFound and leaves other failures alone.
func mapLookupError(err error, format string, args ...any) error {
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
