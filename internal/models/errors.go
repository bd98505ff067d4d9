package models

import (
	"errors"
	"fmt"
)

var (
	// ErrData marks payloads that lack a mandatory field. See DataError.
	ErrData = errors.New("data error")
	// ErrConfig marks caller-supplied parameters that violate the contract. See ConfigError.
	ErrConfig = errors.New("config error")

	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidExchange  = errors.New("invalid exchange")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrDuplicateStrike  = errors.New("duplicate strike price")
	ErrEmptyStrike      = errors.New("strike has neither call nor put")
	ErrInvalidAlertID   = errors.New("invalid alert ID")
)

// DataError reports a raw payload that cannot yield a snapshot: no usable
// strike, no positive underlying price, or an empty strike list.
type DataError struct {
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("data error: %s", e.Reason)
	}
	return fmt.Sprintf("data error: %s: %s", e.Field, e.Reason)
}

func (e *DataError) Unwrap() error { return ErrData }

// NewDataError builds a DataError
func NewDataError(field, reason string) error {
	return &DataError{Field: field, Reason: reason}
}

// ConfigError reports a rejected parameter such as a window size below 3 or
// a non-positive lot size. It is never clamped silently.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError builds a ConfigError
func NewConfigError(field string, value interface{}, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// IsDataError reports whether err is, or wraps, a DataError
func IsDataError(err error) bool {
	return errors.Is(err, ErrData)
}

// IsConfigError reports whether err is, or wraps, a ConfigError
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
