package exec

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/arith"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// PhantomExecutor runs the host-side sub-instructions. Phantoms leave no
// committed side effects: they touch the hint streams and the debug
// channel only, and every phantom advances the timestamp by exactly one
// tick. The discriminant lives in the low 16 bits of operand c; PrintF
// and HintBits take an address space in the high bits.
type PhantomExecutor struct{}

// NewPhantomExecutor creates the executor.
func NewPhantomExecutor() *PhantomExecutor { return &PhantomExecutor{} }

func (e *PhantomExecutor) Kind() Kind { return KindPhantom }

func (e *PhantomExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Phantom}
}

func phantomParts(inst *program.Instruction) (program.PhantomDiscriminant, uint32, error) {
	c, err := fieldToU32(inst.C())
	if err != nil {
		return 0, 0, err
	}
	return program.PhantomDiscriminant(c & 0xffff), c >> 16, nil
}

func (e *PhantomExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	disc, space, err := phantomParts(inst)
	if err != nil {
		return nil, err
	}
	switch disc {
	case program.PhantomNop, program.PhantomHintInput:
		// No reads.
	case program.PhantomPrintF, program.PhantomHintBits:
		ptr, err := fieldToU32(inst.A())
		if err != nil {
			return nil, err
		}
		v, id, err := m.Mem.ReadCell(space, ptr)
		if err != nil {
			return nil, err
		}
		rec.Reads = append(rec.Reads, []fr.Element{v})
		rec.ReadIDs = append(rec.ReadIDs, id)
	case program.PhantomDecompressHint:
		// a = pointer register to the 32-limb x coordinate, b = parity.
		// The hint is uncommitted, so the operands are peeked without
		// timestamped records and the step ticks once like every phantom.
		reg, err := fieldToU32(inst.A())
		if err != nil {
			return nil, err
		}
		ptrWord := make([]fr.Element, WordSize)
		for i := range ptrWord {
			ptrWord[i] = m.Mem.CellValue(RegisterSpace, reg+uint32(i))
		}
		ptr, err := wordToU32(ptrWord)
		if err != nil {
			return nil, err
		}
		vals := make([]fr.Element, WideSize)
		for i := range vals {
			vals[i] = m.Mem.CellValue(MemorySpace, ptr+uint32(i))
		}
		rec.Reads = append(rec.Reads, ptrWord, vals)
	default:
		return nil, fmt.Errorf("unknown phantom discriminant %d", disc)
	}
	return rec, nil
}

func (e *PhantomExecutor) ExecuteCore(rec *StepRecord) error {
	// Phantom effects happen in postprocess against the live streams.
	return nil
}

// sqrtExp is (p+1)/4 for the secp256k1 base field, valid since p = 3 mod 4.
var sqrtExp = func() *big.Int {
	e := arith.Secp256k1Coord.Prime()
	e.Add(e, big.NewInt(1))
	return e.Rsh(e, 2)
}()

func (e *PhantomExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	disc, _, err := phantomParts(rec.Inst)
	if err != nil {
		return ExecutionState{}, err
	}
	switch disc {
	case program.PhantomNop:
	case program.PhantomPrintF:
		if m.Debug != nil {
			m.Debug(rec.Reads[0][0])
		}
	case program.PhantomHintInput:
		vec, err := m.Streams.PopInputVector()
		if err != nil {
			return ExecutionState{}, err
		}
		m.Streams.PushHints(fr.NewElement(uint64(len(vec))))
		m.Streams.PushHints(vec...)
	case program.PhantomHintBits:
		v, ok := fieldToU64(rec.Reads[0][0])
		if !ok {
			return ExecutionState{}, fmt.Errorf("hint bits source is not integral")
		}
		n, err := fieldToU32(rec.Inst.B())
		if err != nil {
			return ExecutionState{}, err
		}
		for i := uint32(0); i < n; i++ {
			m.Streams.PushHints(fr.NewElement(v >> i & 1))
		}
	case program.PhantomDecompressHint:
		if err := e.pushDecompressHint(m, rec); err != nil {
			return ExecutionState{}, err
		}
	}
	if len(rec.ReadIDs) == 0 {
		// Cell-less phantoms still advance time by one tick.
		m.Mem.IncrementTimestamp()
	}
	return advancePC(rec, m), nil
}

// pushDecompressHint computes the y candidate for x on secp256k1 and
// pushes its 32 limbs. If x^3 + 7 is a non-residue the hint carries the
// square root of its product with a fixed non-residue instead, letting the
// guest prove the point invalid.
func (e *PhantomExecutor) pushDecompressHint(m *Machine, rec *StepRecord) error {
	mod := arith.Secp256k1Coord
	x, err := wideToIntMod(mod, rec.Reads[1])
	if err != nil {
		return err
	}
	parity, err := fieldToU32(rec.Inst.B())
	if err != nil {
		return err
	}

	p := mod.Prime()
	rhs := new(big.Int).Exp(x.BigInt(), big.NewInt(3), p)
	rhs.Add(rhs, big.NewInt(7))
	rhs.Mod(rhs, p)

	y := new(big.Int).Exp(rhs, sqrtExp, p)
	square := new(big.Int).Mul(y, y)
	square.Mod(square, p)
	isResidue := square.Cmp(rhs) == 0
	if !isResidue {
		// 5 is a quadratic non-residue mod p.
		adjusted := new(big.Int).Mul(rhs, big.NewInt(5))
		adjusted.Mod(adjusted, p)
		y.Exp(adjusted, sqrtExp, p)
	}
	if isResidue && y.Bit(0) != uint(parity&1) {
		y.Sub(p, y)
	}

	flag := uint64(0)
	if isResidue {
		flag = 1
	}
	m.Streams.PushHints(fr.NewElement(flag))
	m.Streams.PushHints(arith.NewIntMod(mod, y).FieldLimbs()...)
	return nil
}

func (e *PhantomExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
}
