/*
errors.go - Centralized error types for the payout engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The reward engine itself never fails; these errors come from the ledger
  workflow, the stores and input parsing at the edges.

ERROR CATEGORIES:
  1. Lookup errors - coach or payout does not exist
  2. Validation errors - malformed payout input or month keys
  3. Store errors - persistence failures, duplicate writes

USAGE:
    if errors.Is(err, generic.ErrPayoutNotFound) {
        // 404
    }

SEE ALSO:
  - payouts/ledger.go: returns ValidationError for bad payout input
  - api/handlers.go: maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCoachNotFound is returned when a referenced coach doesn't exist.
	ErrCoachNotFound = errors.New("coach not found")

	// ErrPayoutNotFound is returned when a referenced payout transaction doesn't exist.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrInvalidMonth is returned when a month key is not "YYYY-MM".
	ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")

	// ErrInvalidPayout is returned when payout input fails validation.
	ErrInvalidPayout = errors.New("invalid payout")

	// ErrInvalidCoach is returned when coach input fails validation.
	ErrInvalidCoach = errors.New("invalid coach")

	// ErrInvalidPolicy is returned when a reward policy definition is malformed.
	ErrInvalidPolicy = errors.New("invalid reward policy")

	// ErrDuplicateIdempotencyKey is returned when a payout with the same
	// idempotency key was already recorded. Expected on client retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrStoreRequired is returned when an operation requires a store capability
	// the configured store does not provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")

	// ErrCacheMiss is returned by history caches when no entry exists.
	ErrCacheMiss = errors.New("cache miss")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError collects field errors for one input.
type ValidationError struct {
	Kind   error
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	kind := "validation failed"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	if len(parts) == 0 {
		return kind
	}
	return kind + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	if e.Kind == nil {
		return ErrInvalidPayout
	}
	return e.Kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPayout) ||
		errors.Is(err, ErrInvalidCoach) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidPolicy)
}

// IsConflict returns true if the error reports a duplicate write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCoachNotFound) ||
		errors.Is(err, ErrPayoutNotFound)
}
