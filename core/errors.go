package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the progression subsystem. Business-rule no-ops
// (ineligible prestige, non-positive XP, already-claimed rewards) are boolean
// results, not errors.
var (
	// ErrNotInitialized reports use of a store before it was opened.
	ErrNotInitialized = errors.New("progression store not initialized")
	// ErrInvalidParameters reports a structurally invalid request.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrDataOperation tags any underlying storage failure.
	ErrDataOperation = errors.New("data operation failed")
)

// WrapData tags err as a storage failure so callers can match ErrDataOperation
// while still unwrapping the underlying cause.
func WrapData(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrDataOperation, err))
}
