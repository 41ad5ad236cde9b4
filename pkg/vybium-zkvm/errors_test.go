package vybiumzkvm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVMErrorFormatting(t *testing.T) {
	err := &VMError{Code: ErrExecution, Message: "boom"}
	require.Contains(t, err.Error(), "boom")

	cause := fmt.Errorf("inner")
	wrapped := &VMError{Code: ErrExecution, Message: "boom", Cause: cause}
	require.Contains(t, wrapped.Error(), "inner")
	require.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestVMErrorIsMatchesOnCode(t *testing.T) {
	err := vmErr(ErrProofVerification, "bad proof", nil)
	require.True(t, errors.Is(err, &VMError{Code: ErrProofVerification}))
	require.False(t, errors.Is(err, &VMError{Code: ErrExecution}))
	require.False(t, errors.Is(err, errors.New("other")))
}
