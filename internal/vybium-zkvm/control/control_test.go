package control

import (
	"context"
	"errors"
	"testing"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/exec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// fibonacciProgram iterates a/b through n additions and publishes a.
//
//	r4 = a, r8 = b, r12 = tmp, r16 = counter, r28 stays zero
func fibonacciProgram(t *testing.T, n uint64) *program.Program {
	t.Helper()
	insts := []program.Instruction{
		program.NewInstruction(program.Add, 8, 4, 1, 0, 0),  // b = 1
		program.NewInstruction(program.Add, 16, 16, n, 0, 0), // counter = n
		// loop:
		program.NewInstruction(program.Add, 12, 4, 8, 0, exec.RegisterSpace), // tmp = a + b
		program.NewInstruction(program.Add, 4, 8, 0, 0, 0),                   // a = b
		program.NewInstruction(program.Add, 8, 12, 0, 0, 0),                  // b = tmp
		program.NewInstruction(program.Sub, 16, 16, 1, 0, 0),                 // counter--
		program.NewInstruction(program.Bne, 16, 28, program.SignedOffset(-16)), // loop while counter != 0
		program.NewInstruction(program.Publish, 0, 4),
		program.NewInstruction(program.Terminate, 0),
	}
	prog, err := program.NewProgram(insts, 0)
	require.NoError(t, err)
	return prog
}

func fib(n uint64) uint32 {
	a, b := uint32(0), uint32(1)
	for i := uint64(0); i < n; i++ {
		a, b = b, a+b
	}
	return a
}

func TestFibonacciSingleSegment(t *testing.T) {
	vm, err := NewVM(DefaultVmConfig().WithContinuations(false), fibonacciProgram(t, 10))
	require.NoError(t, err)
	segs, err := vm.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.True(t, segs[0].Publics.IsTerminate)
	require.Equal(t, uint32(0), segs[0].Publics.ExitCode)

	got, ok := fieldU64(t, vm, 0)
	require.True(t, ok)
	require.Equal(t, uint64(fib(10)), got)
}

// fieldU64 reads one published public value.
func fieldU64(t *testing.T, vm *VM, index uint32) (uint64, bool) {
	t.Helper()
	return fieldU64Value(vm.Machine().Mem.CellValue(exec.PublicValuesSpace, index))
}

func fieldU64Value(e fr.Element) (uint64, bool) {
	b := e.Bits()
	return uint64(b[0]), true
}

func TestFibonacciSegmented(t *testing.T) {
	cfg := DefaultVmConfig().WithMaxSegmentLen(40).WithMetrics(true)
	vm, err := NewVM(cfg, fibonacciProgram(t, 20))
	require.NoError(t, err)
	segs, err := vm.Execute(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 3)

	// Connector chaining: final state of segment i is initial state of i+1.
	for i := 1; i < len(segs); i++ {
		require.Equal(t, segs[i-1].Publics.FinalPC, segs[i].Publics.InitialPC)
		require.Equal(t, segs[i-1].Publics.FinalTimestamp, segs[i].Publics.InitialTimestamp)
		require.False(t, segs[i-1].Publics.IsTerminate)
		require.True(t, segs[i-1].PostRoot.Equal(&segs[i].PreRoot))
	}
	last := segs[len(segs)-1]
	require.True(t, last.Publics.IsTerminate)
	require.Equal(t, uint32(0), last.Publics.ExitCode)

	got, _ := fieldU64(t, vm, 0)
	require.Equal(t, uint64(fib(20)), got)

	require.Equal(t, vm.Metrics().Total(), func() uint64 {
		var n uint64
		for _, s := range segs {
			n += uint64(s.Len())
		}
		return n
	}())
}

func TestSegmentedByCellThreshold(t *testing.T) {
	// The instruction cap stays at its default; only the cell cap can
	// split this run.
	cfg := DefaultVmConfig().WithMaxSegmentCells(200)
	vm, err := NewVM(cfg, fibonacciProgram(t, 30))
	require.NoError(t, err)
	segs, err := vm.Execute(context.Background())
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)
	for i := 1; i < len(segs); i++ {
		require.Equal(t, segs[i-1].Publics.FinalPC, segs[i].Publics.InitialPC)
		require.True(t, segs[i-1].PostRoot.Equal(&segs[i].PreRoot))
	}
	require.True(t, segs[len(segs)-1].Publics.IsTerminate)
}

func TestSegmentLimitWithoutContinuations(t *testing.T) {
	cfg := DefaultVmConfig().WithContinuations(false).WithMaxSegmentLen(10)
	vm, err := NewVM(cfg, fibonacciProgram(t, 50))
	require.NoError(t, err)
	_, err = vm.Execute(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, &ExecutionError{Code: ErrFail}))
}

func TestInvalidOpcode(t *testing.T) {
	insts := []program.Instruction{
		program.NewInstruction(program.OpCode(0x0FF)),
	}
	prog, err := program.NewProgram(insts, 0)
	require.NoError(t, err)
	vm, err := NewVM(DefaultVmConfig(), prog)
	require.NoError(t, err)
	_, err = vm.Execute(context.Background())
	require.True(t, errors.Is(err, &ExecutionError{Code: ErrInvalidInstruction}))
}

func TestPcOutOfBounds(t *testing.T) {
	// A single add falls off the end of the program.
	insts := []program.Instruction{
		program.NewInstruction(program.Add, 4, 8, 1, 0, 0),
	}
	prog, err := program.NewProgram(insts, 0)
	require.NoError(t, err)
	vm, err := NewVM(DefaultVmConfig(), prog)
	require.NoError(t, err)
	_, err = vm.Execute(context.Background())
	require.True(t, errors.Is(err, &ExecutionError{Code: ErrPcOutOfBounds}))
}

func TestExecuteHonorsContext(t *testing.T) {
	vm, err := NewVM(DefaultVmConfig(), fibonacciProgram(t, 5))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = vm.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateTrace(t *testing.T) {
	vm, err := NewVM(DefaultVmConfig().WithMaxSegmentLen(40), fibonacciProgram(t, 20))
	require.NoError(t, err)
	segs, err := vm.Execute(context.Background())
	require.NoError(t, err)

	for _, seg := range segs {
		rows, err := vm.GenerateTrace(context.Background(), seg)
		require.NoError(t, err)
		require.Len(t, rows, seg.Len())
		for i, row := range rows {
			// Shared IO prefix starts with the pc of the step.
			pc, ok := fieldU64Value(row[0])
			require.True(t, ok)
			require.Equal(t, uint64(seg.Records[i].From.PC), pc)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultVmConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg.WithMaxSegmentLen(0)
	require.Error(t, bad.Validate())

	bad = cfg.WithPublicValues(-1)
	require.Error(t, bad.Validate())

	bad = cfg.WithMaxSegmentCells(0)
	require.Error(t, bad.Validate())

	bad = cfg
	bad.MaxConstraintDegree = 1
	require.Error(t, bad.Validate())
}

func TestConfigBuilders(t *testing.T) {
	cfg := DefaultVmConfig().
		WithContinuations(false).
		WithMaxSegmentLen(128).
		WithMaxSegmentCells(1 << 10).
		WithPublicValues(8).
		WithMetrics(true)
	require.False(t, cfg.ContinuationEnabled)
	require.Equal(t, 128, cfg.MaxSegmentLen)
	require.Equal(t, uint64(1<<10), cfg.MaxSegmentCells)
	require.Equal(t, 8, cfg.NumPublicValues)
	require.True(t, cfg.CollectMetrics)
}
