// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData = errors.New("insufficient data for calculation")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrTimeout          = errors.New("operation timed out")
)

// UnitError represents a failure of a single scan unit. A unit error is
// recorded against that unit only and never aborts the batch.
type UnitError struct {
	Ticker    string
	Timeframe string
	Strategy  string
	Stage     string
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("scan unit [%s %s %s] %s: %v", e.Ticker, e.Timeframe, e.Strategy, e.Stage, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// NewUnitError creates a new UnitError.
func NewUnitError(ticker, timeframe, strategy, stage string, err error) *UnitError {
	return &UnitError{
		Ticker:    ticker,
		Timeframe: timeframe,
		Strategy:  strategy,
		Stage:     stage,
		Err:       err,
	}
}

// ProviderError represents an error from the market data collaborator.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error [%s]: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error [%s]: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
