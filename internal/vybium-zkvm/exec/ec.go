package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/arith"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// EllipticCurveExecutor covers affine secp256k1 point addition and
// doubling. A point is 64 limbs in memory (x then y, 32 byte-limbs each)
// addressed through the wide pointer convention. EcAddNe requires the two
// x coordinates to differ; the chord/tangent slope is the core witness.
type EllipticCurveExecutor struct{}

// NewEllipticCurveExecutor creates the executor.
func NewEllipticCurveExecutor() *EllipticCurveExecutor { return &EllipticCurveExecutor{} }

func (e *EllipticCurveExecutor) Kind() Kind { return KindEllipticCurve }

func (e *EllipticCurveExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.EcAddNe, program.EcDouble}
}

// readPoint dereferences ptrReg and reads the 64-limb affine point.
func readPoint(m *Machine, rec *StepRecord, ptrReg uint32) error {
	ptrWord, err := regRead(m, rec, ptrReg)
	if err != nil {
		return err
	}
	ptr, err := wordToU32(ptrWord)
	if err != nil {
		return err
	}
	// Two chunked reads, x then y.
	for i := 0; i < 2; i++ {
		vals, id, err := m.Mem.Read(MemorySpace, ptr+uint32(i*WideSize), WideSize)
		if err != nil {
			return err
		}
		rec.Reads = append(rec.Reads, vals)
		rec.ReadIDs = append(rec.ReadIDs, id)
	}
	return nil
}

func (e *EllipticCurveExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	rs1, err := fieldToU32(inst.B())
	if err != nil {
		return nil, err
	}
	if err := readPoint(m, rec, rs1); err != nil {
		return nil, err
	}
	if inst.Opcode == program.EcAddNe {
		rs2, err := fieldToU32(inst.C())
		if err != nil {
			return nil, err
		}
		if err := readPoint(m, rec, rs2); err != nil {
			return nil, err
		}
	}
	rd, err := fieldToU32(inst.A())
	if err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rd); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *EllipticCurveExecutor) ExecuteCore(rec *StepRecord) error {
	mod := arith.Secp256k1Coord
	x1, err := wideToIntMod(mod, rec.Reads[1])
	if err != nil {
		return err
	}
	y1, err := wideToIntMod(mod, rec.Reads[2])
	if err != nil {
		return err
	}

	var lambda, x3, y3 *arith.IntMod
	switch rec.Inst.Opcode {
	case program.EcAddNe:
		x2, err := wideToIntMod(mod, rec.Reads[4])
		if err != nil {
			return err
		}
		y2, err := wideToIntMod(mod, rec.Reads[5])
		if err != nil {
			return err
		}
		if x1.Equal(x2) {
			return fmt.Errorf("ec add requires distinct x coordinates")
		}
		lambda = y2.Sub(y1).DivUnsafe(x2.Sub(x1))
		x3 = lambda.Square().Sub(x1).Sub(x2)
	case program.EcDouble:
		if y1.IsZero() {
			return fmt.Errorf("ec double at a two-torsion point")
		}
		// secp256k1 has a = 0, so the tangent slope is 3x^2 / 2y.
		three := x1.Square().Double().Add(x1.Square())
		lambda = three.DivUnsafe(y1.Double())
		x3 = lambda.Square().Sub(x1).Sub(x1)
	default:
		return fmt.Errorf("opcode %s is not an elliptic curve operation", rec.Inst.Opcode)
	}
	y3 = lambda.Mul(x1.Sub(x3)).Sub(y1)

	out := make([]fr.Element, 0, 2*WideSize)
	out = append(out, x3.FieldLimbs()...)
	out = append(out, y3.FieldLimbs()...)
	rec.Writes = append(rec.Writes, out)
	rec.Core = lambda.FieldLimbs()
	return nil
}

func (e *EllipticCurveExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	for _, l := range rec.Writes[0] {
		v, _ := limbValue(l)
		if err := m.Range.AddCount(v, LimbBits); err != nil {
			return ExecutionState{}, err
		}
	}
	rdPtr, err := wordToU32(rec.Reads[len(rec.Reads)-1])
	if err != nil {
		return ExecutionState{}, err
	}
	out := rec.Writes[0]
	for i := 0; i < 2; i++ {
		id, err := m.Mem.Write(MemorySpace, rdPtr+uint32(i*WideSize), out[i*WideSize:(i+1)*WideSize])
		if err != nil {
			return ExecutionState{}, err
		}
		rec.WriteIDs = append(rec.WriteIDs, id)
	}
	return advancePC(rec, m), nil
}

func (e *EllipticCurveExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	n += copy(row[n:], rec.Writes[0])
	copy(row[n:], rec.Core)
}
