package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/portfolio-hub/invest-tracker/internal/store"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("position not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrStorage              = errors.New("storage failure")
	ErrStorageTimeout       = errors.New("storage timeout")

	// ErrDuplicateRequest surfaces the ledger's request id uniqueness
	// check; a retried call with the same request id is rejected
	// before any state change.
	ErrDuplicateRequest = store.ErrDuplicateRequest
)

// wrapStorage classifies errors coming back from a store call.
// Engine-domain errors pass through untouched; deadline and
// cancellation map to ErrStorageTimeout; anything else is ErrStorage.
func wrapStorage(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInsufficientQuantity),
		errors.Is(err, ErrDuplicateRequest):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s", ErrStorageTimeout, err)
	default:
		return fmt.Errorf("%w: %s", ErrStorage, err)
	}
}
