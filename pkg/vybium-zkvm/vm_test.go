package vybiumzkvm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fibProgram iterates a/b through n additions and publishes a at index 0.
func fibProgram(t *testing.T, n uint64) *Program {
	t.Helper()
	insts := []Instruction{
		NewInstruction(Add, 8, 4, 1, 0, 0),
		NewInstruction(Add, 16, 16, n, 0, 0),
		NewInstruction(Add, 12, 4, 8, 0, RegisterSpace),
		NewInstruction(Add, 4, 8, 0, 0, 0),
		NewInstruction(Add, 8, 12, 0, 0, 0),
		NewInstruction(Sub, 16, 16, 1, 0, 0),
		NewInstruction(Bne, 16, 28, SignedOffset(-16)),
		NewInstruction(Publish, 0, 4),
		NewInstruction(Terminate, 0),
	}
	prog, err := NewProgram(insts, 0)
	require.NoError(t, err)
	return prog
}

// stubProver emits a deterministic body binding the segment index.
type stubProver struct{}

func (stubProver) ProveSegment(_ context.Context, seg *Segment, trace [][]FieldElement) ([]byte, error) {
	if len(trace) != seg.Len() {
		return nil, fmt.Errorf("trace has %d rows for %d records", len(trace), seg.Len())
	}
	return []byte(fmt.Sprintf("segment-proof-%d", seg.Index)), nil
}

// stubEngine accepts any body produced by stubProver.
type stubEngine struct{}

func (stubEngine) VerifyChildProof(vk *VerifyingKey, proof *SegmentProof) error {
	if !bytes.HasPrefix(proof.Body, []byte("segment-proof-")) {
		return fmt.Errorf("unrecognized proof body")
	}
	return nil
}

func testConfig() Config {
	return DefaultConfig().WithMaxSegmentLen(40)
}

func TestProveAndVerify(t *testing.T) {
	vm, err := NewVM(testConfig(), fibProgram(t, 20))
	require.NoError(t, err)

	proof, err := vm.Prove(context.Background(), stubProver{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(proof.Segments), 3)
	require.NotNil(t, proof.PublicValues)
	require.True(t, proof.AppCommit.Equal(&vm.VerifyingKey().Commit))

	verifier, err := NewVerifier(testConfig(), vm.VerifyingKey(), stubEngine{})
	require.NoError(t, err)
	res, err := verifier.Verify(proof)
	require.NoError(t, err)
	require.True(t, res.Valid, res.Error)
	require.Equal(t, uint32(0), res.ExitCode)
	require.True(t, res.PublicValuesCommit.Equal(&proof.PublicValues.PublicValuesCommit))
}

func TestVerifyRejectsTamperedChain(t *testing.T) {
	vm, err := NewVM(testConfig(), fibProgram(t, 20))
	require.NoError(t, err)
	proof, err := vm.Prove(context.Background(), stubProver{})
	require.NoError(t, err)

	proof.Segments[1].Connector.FinalPC += 4

	verifier, err := NewVerifier(testConfig(), vm.VerifyingKey(), stubEngine{})
	require.NoError(t, err)
	res, err := verifier.Verify(proof)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.NotEmpty(t, res.Error)
}

func TestVerifyRejectsWrongProgram(t *testing.T) {
	vm, err := NewVM(testConfig(), fibProgram(t, 20))
	require.NoError(t, err)
	proof, err := vm.Prove(context.Background(), stubProver{})
	require.NoError(t, err)

	other, err := NewVM(testConfig(), fibProgram(t, 21))
	require.NoError(t, err)
	verifier, err := NewVerifier(testConfig(), other.VerifyingKey(), stubEngine{})
	require.NoError(t, err)
	res, err := verifier.Verify(proof)
	require.NoError(t, err)
	require.False(t, res.Valid)
}

func TestVerifyRejectsEngineFailure(t *testing.T) {
	vm, err := NewVM(testConfig(), fibProgram(t, 10))
	require.NoError(t, err)
	proof, err := vm.Prove(context.Background(), stubProver{})
	require.NoError(t, err)

	proof.Segments[0].Body = []byte("forged")

	verifier, err := NewVerifier(testConfig(), vm.VerifyingKey(), stubEngine{})
	require.NoError(t, err)
	res, err := verifier.Verify(proof)
	require.NoError(t, err)
	require.False(t, res.Valid)
}

func TestProveRequiresContinuations(t *testing.T) {
	vm, err := NewVM(testConfig().WithContinuations(false), fibProgram(t, 10))
	require.NoError(t, err)
	_, err = vm.Prove(context.Background(), stubProver{})
	require.True(t, errors.Is(err, &VMError{Code: ErrInvalidConfig}))
}

func TestNewVMValidation(t *testing.T) {
	_, err := NewVM(testConfig(), nil)
	require.True(t, errors.Is(err, &VMError{Code: ErrInvalidProgram}))

	bad := testConfig()
	bad.NumPublicValues = 0
	_, err = NewVM(bad, fibProgram(t, 1))
	require.True(t, errors.Is(err, &VMError{Code: ErrInvalidConfig}))
}
