package market

import (
	"errors"
	"fmt"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
)

var (
	ErrAuthRequired             = errors.New("authentication required")
	ErrForbidden                = errors.New("forbidden")
	ErrNotFound                 = errors.New("not found")
	ErrSelfPurchase             = errors.New("sellers cannot purchase their own listing")
	ErrNotAvailable             = errors.New("listing is not available")
	ErrDeliveryLocationRequired = errors.New("delivery location is required")
	ErrValidation               = errors.New("validation failed")
)

// ValidationError names the offending field. errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func fromStore(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
