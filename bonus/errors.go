/*
errors.go - Centralized error types for the bonus engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these to status codes via the helper predicates.

ERROR CATEGORIES (matching the engine's failure taxonomy):
  1. Input errors       - malformed or out-of-range input, rejected up front
  2. Data-absence       - no employees / no revenue for a bucket (structured
                          result, not a system fault)
  3. State conflicts    - invalid lifecycle transition, sync against a
                          frozen record
  4. Store failures     - persistence errors, propagated as-is

USAGE:
  if errors.Is(err, bonus.ErrBonusFrozen) {
      // record already requested/approved/rejected; nothing was mutated
  }

SEE ALSO:
  - sync.go: returns data-absence conditions as structured results
  - lifecycle.go: returns TransitionError on invalid transitions
*/
package bonus

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoActiveEmployees is returned when a bucket has no active employees
	// to aggregate over. A data-absence condition, not a system fault.
	ErrNoActiveEmployees = errors.New("no active employees")

	// ErrNoRevenueData is returned when a bucket has no daily revenue rows.
	ErrNoRevenueData = errors.New("no daily revenues found")

	// ErrBonusFrozen is returned when a sync targets a record whose status is
	// no longer pending. The record is left untouched.
	ErrBonusFrozen = errors.New("bonus record is no longer pending")

	// ErrBonusNotFound is returned when a referenced bonus record does not exist.
	ErrBonusNotFound = errors.New("bonus record not found")

	// ErrBranchNotFound is returned when a referenced branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrEntryNotFound is returned when a referenced revenue entry does not exist.
	ErrEntryNotFound = errors.New("revenue entry not found")

	// ErrInvalidTransition is returned when a lifecycle transition is attempted
	// from an invalid source state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrMissingReason is returned when a rejection is attempted without a reason.
	ErrMissingReason = errors.New("rejection reason is required")

	// ErrDuplicateEntry is returned when a branch already has a revenue entry
	// for the given day.
	ErrDuplicateEntry = errors.New("revenue entry already exists for this day")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError reports malformed or out-of-range input. Never partially applied.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransitionError reports a lifecycle transition attempted from an invalid
// source state. The record's state is left unchanged.
type TransitionError struct {
	BonusID BonusID
	From    BonusStatus
	To      BonusStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move bonus %s from %s to %s", e.BonusID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// FrozenError reports a sync against a record that is no longer pending.
type FrozenError struct {
	BonusID BonusID
	Status  BonusStatus
}

func (e *FrozenError) Error() string {
	return fmt.Sprintf("bonus %s is %s; totals are frozen", e.BonusID, e.Status)
}

func (e *FrozenError) Unwrap() error {
	return ErrBonusFrozen
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNoData returns true for data-absence conditions (no employees, no revenue).
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoActiveEmployees) || errors.Is(err, ErrNoRevenueData)
}

// IsConflict returns true for state-conflict errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBonusFrozen) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateEntry)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBonusNotFound) ||
		errors.Is(err, ErrBranchNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr) || errors.Is(err, ErrMissingReason)
}
