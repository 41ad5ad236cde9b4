package control

import "fmt"

// ExecutionErrorCode is the closed set of execution failure classes.
type ExecutionErrorCode int

const (
	// ErrInvalidInstruction means the pc pointed at an unregistered opcode.
	ErrInvalidInstruction ExecutionErrorCode = iota

	// ErrInvalidPhantomInstruction means the phantom discriminant is unknown.
	ErrInvalidPhantomInstruction

	// ErrPcOutOfBounds means the pc left the program address range.
	ErrPcOutOfBounds

	// ErrPcNotAligned means the pc is not a multiple of the pc step.
	ErrPcNotAligned

	// ErrHintOutOfBounds means a hint read overran the hint stream.
	ErrHintOutOfBounds

	// ErrEndOfInputStream means the guest asked for more host input than
	// was supplied.
	ErrEndOfInputStream

	// ErrFail covers every other executor failure.
	ErrFail
)

var executionErrorNames = map[ExecutionErrorCode]string{
	ErrInvalidInstruction:        "invalid instruction",
	ErrInvalidPhantomInstruction: "invalid phantom instruction",
	ErrPcOutOfBounds:             "pc out of bounds",
	ErrPcNotAligned:              "pc not aligned",
	ErrHintOutOfBounds:           "hint out of bounds",
	ErrEndOfInputStream:          "end of input stream",
	ErrFail:                      "execution failed",
}

// ExecutionError reports a failed step together with the pc it failed at.
type ExecutionError struct {
	Code ExecutionErrorCode
	PC   uint32
	Err  error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	name := executionErrorNames[e.Code]
	if e.Err != nil {
		return fmt.Sprintf("%s at pc=%#x: %v", name, e.PC, e.Err)
	}
	return fmt.Sprintf("%s at pc=%#x", name, e.PC)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Is matches on the error code.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func execErr(code ExecutionErrorCode, pc uint32, err error) *ExecutionError {
	return &ExecutionError{Code: code, PC: pc, Err: err}
}
