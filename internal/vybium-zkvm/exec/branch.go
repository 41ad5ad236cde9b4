package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// BranchExecutor covers the six conditional branches. Operands:
//
//	a = first source register pointer
//	b = second source register pointer
//	c = signed pc-relative offset, field-negated when negative
//	    (see program.SignedOffset)
type BranchExecutor struct{}

// NewBranchExecutor creates the executor.
func NewBranchExecutor() *BranchExecutor { return &BranchExecutor{} }

func (e *BranchExecutor) Kind() Kind { return KindBranch }

func (e *BranchExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{
		program.Beq, program.Bne, program.Blt, program.Bltu, program.Bge, program.Bgeu,
	}
}

func (e *BranchExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	rs1, err := fieldToU32(inst.A())
	if err != nil {
		return nil, err
	}
	rs2, err := fieldToU32(inst.B())
	if err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rs1); err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rs2); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *BranchExecutor) ExecuteCore(rec *StepRecord) error {
	x, err := wordToU32(rec.Reads[0])
	if err != nil {
		return err
	}
	y, err := wordToU32(rec.Reads[1])
	if err != nil {
		return err
	}
	var taken bool
	switch rec.Inst.Opcode {
	case program.Beq:
		taken = x == y
	case program.Bne:
		taken = x != y
	case program.Blt:
		taken = int32(x) < int32(y)
	case program.Bltu:
		taken = x < y
	case program.Bge:
		taken = int32(x) >= int32(y)
	case program.Bgeu:
		taken = x >= y
	default:
		return fmt.Errorf("opcode %s is not a branch", rec.Inst.Opcode)
	}

	_, markers := lessThanWitness(x, y, false)
	rec.Core = make([]fr.Element, WordSize+1)
	for i, mk := range markers {
		rec.Core[i] = fr.NewElement(uint64(mk))
	}
	if taken {
		rec.Core[WordSize] = fr.NewElement(1)
		off, err := fieldToI32(rec.Inst.C())
		if err != nil {
			return err
		}
		setToPC(rec, rec.From.PC+uint32(off))
	}
	return nil
}

func (e *BranchExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	next := advancePC(rec, m)
	if next.PC%program.DefaultPCStep != 0 {
		return ExecutionState{}, fmt.Errorf("branch target %d is not aligned", next.PC)
	}
	return next, nil
}

func (e *BranchExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	n += copy(row[n:], rec.Reads[0])
	n += copy(row[n:], rec.Reads[1])
	copy(row[n:], rec.Core)
}
