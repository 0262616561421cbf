package paystream

import (
	"errors"
	"fmt"

	"github.com/xraph/paystream/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound           = errors.New("paystream: not found")
	ErrAlreadyExists      = errors.New("paystream: already exists")
	ErrInvalidInput       = errors.New("paystream: invalid input")
	ErrUnauthorized       = errors.New("paystream: unauthorized")
	ErrArithmeticOverflow = kind("paystream: arithmetic overflow", types.ErrOverflow)

	// Lifecycle errors
	ErrNotInitialized     = errors.New("paystream: ledger not initialized")
	ErrAlreadyInitialized = errors.New("paystream: ledger already initialized")

	// Subscription errors
	ErrSubscriptionNotFound = kind("paystream: subscription not found", ErrNotFound)
	ErrInvalidSubscription  = errors.New("paystream: invalid subscription")
	ErrInvalidTime          = errors.New("paystream: invalid start time")

	// Balance errors
	ErrInsufficientReserve = errors.New("paystream: insufficient reserve")
	ErrInsufficientBalance = errors.New("paystream: insufficient balance")

	// Treasury errors
	ErrStateNotFound   = kind("paystream: state not found", ErrNotFound)
	ErrTreasuryNotSet  = errors.New("paystream: treasury not set")
	ErrTransferFailure = errors.New("paystream: transfer failed")

	// Reporter errors
	ErrReporterNotFound  = kind("paystream: reporter not found", ErrNotFound)
	ErrReporterExists    = kind("paystream: reporter already exists", ErrAlreadyExists)
	ErrInsufficientStake = errors.New("paystream: insufficient stake")
	ErrSourceSolvent     = errors.New("paystream: source is solvent")

	// Store errors
	ErrStoreClosed       = errors.New("paystream: store is closed")
	ErrTransactionFailed = errors.New("paystream: transaction failed")
	ErrMigrationFailed   = errors.New("paystream: migration failed")
)

// kindError is a sentinel that also matches a broader sentinel.
type kindError struct {
	msg  string
	kind error
}

func kind(msg string, parent error) error { return &kindError{msg: msg, kind: parent} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("paystream: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "paystream: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("paystream: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthorization returns true if the caller was not allowed to act.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsSolvencyError returns true if the error reports missing funds.
func IsSolvencyError(err error) bool {
	return errors.Is(err, ErrInsufficientReserve) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientStake)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrTransferFailure)
}

// overflow maps an arithmetic failure onto ErrArithmeticOverflow.
func overflow(err error) error {
	if errors.Is(err, types.ErrOverflow) {
		return ErrArithmeticOverflow
	}
	return err
}

// ReserveError reports a failed reserve check. It matches
// ErrInsufficientReserve.
type ReserveError struct {
	Account   types.AccountID
	Required  types.Amount
	Available types.Amount
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("paystream: insufficient reserve for %s: required %d, available %d",
		e.Account, e.Required, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficientReserve.
func (e *ReserveError) Unwrap() error { return ErrInsufficientReserve }
