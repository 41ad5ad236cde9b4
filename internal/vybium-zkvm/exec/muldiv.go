package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// MulDivExecutor covers the M-extension family. Multiplication is proven
// with the schoolbook limb product plus range-tuple checks on each
// (product limb, carry) pair; division with the witness identity
// x = q*y + r, 0 <= |r| < |y|, special-cased for y = 0 and the signed
// overflow quotient.
type MulDivExecutor struct{}

// NewMulDivExecutor creates the executor.
func NewMulDivExecutor() *MulDivExecutor { return &MulDivExecutor{} }

func (e *MulDivExecutor) Kind() Kind { return KindMulDiv }

func (e *MulDivExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{
		program.Mul, program.Mulh, program.Mulhu, program.Mulhsu,
		program.Div, program.Divu, program.Rem, program.Remu,
	}
}

func (e *MulDivExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	rs1, err := fieldToU32(inst.B())
	if err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rs1); err != nil {
		return nil, err
	}
	if err := readSecondOperand(m, rec, inst); err != nil {
		return nil, err
	}
	return rec, nil
}

// signExtend64 widens a u32 to its signed 64-bit value.
func signExtend64(v uint32) int64 { return int64(int32(v)) }

func (e *MulDivExecutor) ExecuteCore(rec *StepRecord) error {
	x, err := wordToU32(rec.Reads[0])
	if err != nil {
		return err
	}
	y, err := wordToU32(rec.Reads[1])
	if err != nil {
		return err
	}

	var z uint32
	switch rec.Inst.Opcode {
	case program.Mul:
		z = uint32(uint64(x) * uint64(y))
	case program.Mulh:
		z = uint32(uint64(signExtend64(x)*signExtend64(y)) >> 32)
	case program.Mulhu:
		z = uint32(uint64(x) * uint64(y) >> 32)
	case program.Mulhsu:
		z = uint32(uint64(signExtend64(x)*int64(y)) >> 32)
	case program.Div:
		switch {
		case y == 0:
			z = ^uint32(0)
		case x == 1<<31 && y == ^uint32(0):
			// Signed overflow: quotient wraps to the dividend.
			z = x
		default:
			z = uint32(int32(x) / int32(y))
		}
	case program.Divu:
		if y == 0 {
			z = ^uint32(0)
		} else {
			z = x / y
		}
	case program.Rem:
		switch {
		case y == 0:
			z = x
		case x == 1<<31 && y == ^uint32(0):
			z = 0
		default:
			z = uint32(int32(x) % int32(y))
		}
	case program.Remu:
		if y == 0 {
			z = x
		} else {
			z = x % y
		}
	default:
		return fmt.Errorf("opcode %s is not a mul/div operation", rec.Inst.Opcode)
	}
	rec.Writes = append(rec.Writes, u32ToWord(z))

	switch rec.Inst.Opcode {
	case program.Mul, program.Mulh, program.Mulhu, program.Mulhsu:
		rec.Core = mulCarryWitness(x, y)
	case program.Div, program.Divu:
		rec.Core = divRemWitness(y, z, divComplement(rec.Inst.Opcode, x, y, z))
	case program.Rem, program.Remu:
		rec.Core = divRemWitness(y, divComplement(rec.Inst.Opcode, x, y, z), z)
	}
	return nil
}

// mulCarryWitness returns the 8 schoolbook carry cells of the 64-bit limb
// product of x and y.
func mulCarryWitness(x, y uint32) []fr.Element {
	var xs, ys [WordSize]uint64
	for i := 0; i < WordSize; i++ {
		xs[i] = uint64(x >> (i * LimbBits) & 0xff)
		ys[i] = uint64(y >> (i * LimbBits) & 0xff)
	}
	core := make([]fr.Element, 2*WordSize)
	carry := uint64(0)
	for k := 0; k < 2*WordSize; k++ {
		acc := carry
		for i := 0; i < WordSize; i++ {
			j := k - i
			if j >= 0 && j < WordSize {
				acc += xs[i] * ys[j]
			}
		}
		carry = acc >> LimbBits
		core[k] = fr.NewElement(carry)
	}
	return core
}

// divComplement recovers the quotient given the remainder, or the remainder
// given the quotient, for the witness identity.
func divComplement(op program.OpCode, x, y, z uint32) uint32 {
	switch op {
	case program.Div, program.Rem:
		switch {
		case y == 0:
			if op == program.Div {
				return x // remainder
			}
			return ^uint32(0) // quotient
		case x == 1<<31 && y == ^uint32(0):
			if op == program.Div {
				return 0
			}
			return x
		default:
			if op == program.Div {
				return uint32(int32(x) % int32(y))
			}
			return uint32(int32(x) / int32(y))
		}
	default:
		if y == 0 {
			if op == program.Divu {
				return x
			}
			return ^uint32(0)
		}
		if op == program.Divu {
			return x % y
		}
		return x / y
	}
}

// divRemWitness lays out [q limbs | r limbs | zero-divisor flag].
func divRemWitness(y, q, r uint32) []fr.Element {
	core := make([]fr.Element, 2*WordSize+1)
	copy(core, u32ToWord(q))
	copy(core[WordSize:], u32ToWord(r))
	if y == 0 {
		core[2*WordSize] = fr.NewElement(1)
	}
	return core
}

func (e *MulDivExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	z, err := wordToU32(rec.Writes[0])
	if err != nil {
		return ExecutionState{}, err
	}
	switch rec.Inst.Opcode {
	case program.Mul, program.Mulh, program.Mulhu, program.Mulhsu:
		// Each (limb, carry) pair goes through the product-range table.
		for i := 0; i < WordSize; i++ {
			limb := z >> (i * LimbBits) & 0xff
			carry, _ := fieldToU64(rec.Core[i])
			if err := m.RangeTuple.AddCount([]uint32{limb, uint32(carry)}); err != nil {
				return ExecutionState{}, err
			}
		}
	default:
		for i := 0; i < 2*WordSize; i++ {
			v, _ := fieldToU64(rec.Core[i])
			if err := m.Range.AddCount(uint32(v), LimbBits); err != nil {
				return ExecutionState{}, err
			}
		}
	}
	rd, err := fieldToU32(rec.Inst.A())
	if err != nil {
		return ExecutionState{}, err
	}
	if err := regWrite(m, rec, rd, rec.Writes[0]); err != nil {
		return ExecutionState{}, err
	}
	return advancePC(rec, m), nil
}

func (e *MulDivExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	n += copy(row[n:], rec.Reads[0])
	n += copy(row[n:], rec.Reads[1])
	n += copy(row[n:], rec.Writes[0])
	copy(row[n:], rec.Core)
}
