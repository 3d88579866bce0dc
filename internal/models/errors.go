package models

import (
	"errors"
	"fmt"
)

// Field check errors. Messages are shown to operators as-is.
var (
	ErrQueryRequired        = errors.New("Please set a query")
	ErrIndexesWhitespace    = errors.New("Indexes cannot contain whitespace")
	ErrIndexesTrailingComma = errors.New("Indexes cannot end with a comma")
	ErrInvalidThreshold     = errors.New("Please set a threshold greater than or equal to 0")
	ErrInvalidSince         = errors.New("Please set a since value greater than 0")
	ErrInvalidTimeout       = errors.New("Please set a value greater than 0")
	ErrInvalidComparison    = errors.New("comparison must be 'gte' or 'lte'")
	ErrInvalidUnits         = errors.New("units must be MINUTES, HOURS or DAYS")
	ErrLookbackTooLarge     = errors.New("lookback window is too large")
	ErrCredentialsMismatch  = errors.New("user and password must both be provided or empty")
	ErrHostRequired         = errors.New("host cannot be empty")
)

// ConfigurationError is raised before any request is sent.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// EncodingError means the query could not be percent-encoded.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string { return fmt.Sprintf("encoding error: %v", e.Err) }

func (e *EncodingError) Unwrap() error { return e.Err }

// TransportError covers connection failures, timeouts and non-2xx answers.
type TransportError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("transport error: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the body was not JSON or carried no usable count.
type DecodeError struct {
	Content string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v (response content: %s)", e.Err, e.Content)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ThresholdExceededError is the intended product of the gate: the build
// must fail. It is not an infrastructure fault.
type ThresholdExceededError struct {
	Result *EvaluationResult
}

func (e *ThresholdExceededError) Error() string { return e.Result.Message }
