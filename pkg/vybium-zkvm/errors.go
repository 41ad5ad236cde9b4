package vybiumzkvm

import "fmt"

// ErrorCode represents a Vybium zkVM error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrInvalidProgram represents an invalid program error
	ErrInvalidProgram

	// ErrExecution represents a VM execution error
	ErrExecution

	// ErrProofGeneration represents a proof generation error
	ErrProofGeneration

	// ErrProofEncoding represents a proof container encoding error
	ErrProofEncoding

	// ErrProofVerification represents a proof verification error
	ErrProofVerification

	// ErrInvalidInput represents an invalid input error
	ErrInvalidInput
)

// VMError represents a Vybium zkVM error
type VMError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *VMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-zkvm error [%d]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-zkvm error [%d]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *VMError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *VMError) Is(target error) bool {
	t, ok := target.(*VMError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func vmErr(code ErrorCode, msg string, cause error) *VMError {
	return &VMError{Code: code, Message: msg, Cause: cause}
}
