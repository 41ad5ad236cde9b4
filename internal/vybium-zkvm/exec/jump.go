package exec

import (
	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// JumpExecutor covers jal and jalr. Both write from_pc + 4 into the
// destination register and override the pc:
//
//	jal:  a = rd, b = signed pc-relative offset (program.SignedOffset)
//	jalr: a = rd, b = base register pointer, c = signed offset
type JumpExecutor struct{}

// NewJumpExecutor creates the executor.
func NewJumpExecutor() *JumpExecutor { return &JumpExecutor{} }

func (e *JumpExecutor) Kind() Kind { return KindJump }

func (e *JumpExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Jal, program.Jalr}
}

func (e *JumpExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	if inst.Opcode == program.Jalr {
		base, err := fieldToU32(inst.B())
		if err != nil {
			return nil, err
		}
		if _, err := regRead(m, rec, base); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (e *JumpExecutor) ExecuteCore(rec *StepRecord) error {
	link := rec.From.PC + program.DefaultPCStep
	rec.Writes = append(rec.Writes, u32ToWord(link))

	switch rec.Inst.Opcode {
	case program.Jal:
		off, err := fieldToI32(rec.Inst.B())
		if err != nil {
			return err
		}
		setToPC(rec, rec.From.PC+uint32(off))
	case program.Jalr:
		base, err := wordToU32(rec.Reads[0])
		if err != nil {
			return err
		}
		off, err := fieldToI32(rec.Inst.C())
		if err != nil {
			return err
		}
		// The low bit of the target is cleared, RISC-V style.
		setToPC(rec, (base+uint32(off))&^uint32(1))
	}
	return nil
}

func (e *JumpExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	rd, err := fieldToU32(rec.Inst.A())
	if err != nil {
		return ExecutionState{}, err
	}
	if err := regWrite(m, rec, rd, rec.Writes[0]); err != nil {
		return ExecutionState{}, err
	}
	return advancePC(rec, m), nil
}

func (e *JumpExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	if len(rec.Reads) > 0 {
		n += copy(row[n:], rec.Reads[0])
	}
	copy(row[n:], rec.Writes[0])
}
