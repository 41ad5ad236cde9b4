package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

// hintSumProgram pops one two-element vector from the host stream, drains
// it through the hint space, and publishes the sum.
func hintSumProgram(t *testing.T) *vybiumzkvm.Program {
	t.Helper()
	hintInput := uint64(vybiumzkvm.PhantomHintInput)
	insts := []vybiumzkvm.Instruction{
		vybiumzkvm.NewInstruction(vybiumzkvm.Phantom, 0, 0, hintInput),
		vybiumzkvm.NewInstruction(vybiumzkvm.HintStore, 0, 28, 0, 0, vybiumzkvm.HintSpace),
		vybiumzkvm.NewInstruction(vybiumzkvm.HintStore, 0, 28, 1, 0, vybiumzkvm.HintSpace),
		vybiumzkvm.NewInstruction(vybiumzkvm.HintStore, 0, 28, 2, 0, vybiumzkvm.HintSpace),
		vybiumzkvm.NewInstruction(vybiumzkvm.Load, 4, 28, 1, 0, vybiumzkvm.HintSpace, 1, 0),
		vybiumzkvm.NewInstruction(vybiumzkvm.Load, 8, 28, 2, 0, vybiumzkvm.HintSpace, 1, 0),
		vybiumzkvm.NewInstruction(vybiumzkvm.Add, 12, 4, 8, 0, vybiumzkvm.RegisterSpace),
		vybiumzkvm.NewInstruction(vybiumzkvm.Publish, 0, 12),
		vybiumzkvm.NewInstruction(vybiumzkvm.Terminate, 0),
	}
	prog, err := vybiumzkvm.NewProgram(insts, 0)
	require.NoError(t, err)
	return prog
}

// Test03_HostInputThroughHints proves a run whose result depends on host
// input and checks the published value survives verification.
func Test03_HostInputThroughHints(t *testing.T) {
	cfg := vybiumzkvm.DefaultConfig()
	vm, err := vybiumzkvm.NewVM(cfg, hintSumProgram(t))
	require.NoError(t, err)

	vm.Streams().PushInputVector([]vybiumzkvm.FieldElement{
		vybiumzkvm.NewFieldElement(20),
		vybiumzkvm.NewFieldElement(22),
	})

	proof, err := vm.Prove(context.Background(), stubProver{})
	require.NoError(t, err)
	require.Equal(t, uint64(42), uint64(vm.PublicValues()[0].Bits()[0]))

	verifier, err := vybiumzkvm.NewVerifier(cfg, vm.VerifyingKey(), stubEngine{})
	require.NoError(t, err)
	res, err := verifier.Verify(proof)
	require.NoError(t, err)
	require.True(t, res.Valid, res.Error)
}

// Test03_MissingHostInputFails runs the same guest without seeding the
// input stream; execution must abort instead of fabricating values.
func Test03_MissingHostInputFails(t *testing.T) {
	vm, err := vybiumzkvm.NewVM(vybiumzkvm.DefaultConfig(), hintSumProgram(t))
	require.NoError(t, err)

	_, err = vm.Execute(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, &vybiumzkvm.VMError{Code: vybiumzkvm.ErrExecution}))
}
