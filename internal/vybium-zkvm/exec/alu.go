package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// BaseAluExecutor covers add, sub and the limb-wise bitwise operations.
//
// Operand convention (shared by the scalar ALU family):
//
//	a = destination register pointer
//	b = first source register pointer
//	c = second source register pointer, or the immediate when e = 0
//	e = address space of c (0 = immediate, 1 = register)
type BaseAluExecutor struct{}

// NewBaseAluExecutor creates the executor.
func NewBaseAluExecutor() *BaseAluExecutor { return &BaseAluExecutor{} }

// Kind returns the executor family tag.
func (e *BaseAluExecutor) Kind() Kind { return KindBaseAlu }

// Opcodes lists the opcodes the executor claims.
func (e *BaseAluExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Add, program.Sub, program.Xor, program.Or, program.And}
}

// Preprocess reads rs1 and rs2 (or synthesizes the immediate word).
func (e *BaseAluExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
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

// readSecondOperand resolves operand c against its address space e: an
// immediate word for space 0, a register read otherwise. The immediate case
// bumps the timestamp so the adapter's expected delta is uniform.
func readSecondOperand(m *Machine, rec *StepRecord, inst *program.Instruction) error {
	space, err := fieldToU32(inst.E())
	if err != nil {
		return err
	}
	switch space {
	case 0:
		imm, err := fieldToU32(inst.C())
		if err != nil {
			return err
		}
		rec.Reads = append(rec.Reads, u32ToWord(imm))
		rec.ReadIDs = append(rec.ReadIDs, memory.ImmediateRecord)
		for i := 0; i < WordSize; i++ {
			m.Mem.IncrementTimestamp()
		}
		return nil
	case RegisterSpace:
		rs2, err := fieldToU32(inst.C())
		if err != nil {
			return err
		}
		_, err = regRead(m, rec, rs2)
		return err
	default:
		return fmt.Errorf("operand space %d is not readable by the ALU", space)
	}
}

// ExecuteCore computes the limb-wise result and its carry witness.
func (e *BaseAluExecutor) ExecuteCore(rec *StepRecord) error {
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
	case program.Add:
		z = x + y
	case program.Sub:
		z = x - y
	case program.Xor:
		z = x ^ y
	case program.Or:
		z = x | y
	case program.And:
		z = x & y
	default:
		return fmt.Errorf("opcode %s is not a base ALU operation", rec.Inst.Opcode)
	}
	rec.Writes = append(rec.Writes, u32ToWord(z))

	// Carry witness for add/sub: carry_i of the limb-wise recomposition.
	if rec.Inst.Opcode == program.Add || rec.Inst.Opcode == program.Sub {
		rec.Core = make([]fr.Element, WordSize)
		carry := uint64(0)
		for i := 0; i < WordSize; i++ {
			xi := uint64(x >> (i * LimbBits) & 0xff)
			yi := uint64(y >> (i * LimbBits) & 0xff)
			var sum uint64
			if rec.Inst.Opcode == program.Add {
				sum = xi + yi + carry
				carry = sum >> LimbBits
			} else {
				// Borrow chain, kept as a 0/1 carry column.
				if xi >= yi+carry {
					carry = 0
				} else {
					carry = 1
				}
			}
			rec.Core[i] = fr.NewElement(carry)
		}
	}
	return nil
}

// Postprocess declares the lookup queries and writes rd.
func (e *BaseAluExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	z, err := wordToU32(rec.Writes[0])
	if err != nil {
		return ExecutionState{}, err
	}
	switch rec.Inst.Opcode {
	case program.Add, program.Sub:
		// Result limbs are range-checked to the limb width.
		for i := 0; i < WordSize; i++ {
			if err := m.Range.AddCount(z>>(i*LimbBits)&0xff, LimbBits); err != nil {
				return ExecutionState{}, err
			}
		}
	case program.Xor, program.Or, program.And:
		x, _ := wordToU32(rec.Reads[0])
		y, _ := wordToU32(rec.Reads[1])
		op := map[program.OpCode]lookup.BitwiseOp{
			program.Xor: lookup.BitwiseXor,
			program.Or:  lookup.BitwiseOr,
			program.And: lookup.BitwiseAnd,
		}[rec.Inst.Opcode]
		for i := 0; i < WordSize; i++ {
			if _, err := m.Bitwise.AddPair(op, x>>(i*LimbBits)&0xff, y>>(i*LimbBits)&0xff); err != nil {
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

// GenerateTraceRow lays out IO, both operand words, the result word, and
// the carry columns.
func (e *BaseAluExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	n += copy(row[n:], rec.Reads[0])
	n += copy(row[n:], rec.Reads[1])
	n += copy(row[n:], rec.Writes[0])
	copy(row[n:], rec.Core)
}

// AluRowWidth is the trace width of the base ALU chip.
const AluRowWidth = 3 + program.NumOperands + 3*WordSize + WordSize
