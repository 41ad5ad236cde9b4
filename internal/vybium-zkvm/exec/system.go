package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// SystemExecutor covers terminate and publish. Terminate halts the segment
// loop with an exit code; publish copies one F from a register into the
// public-values address space:
//
//	Terminate: a = exit code (immediate)
//	Publish:   a = public value index (immediate), b = source register
type SystemExecutor struct{}

// NewSystemExecutor creates the executor.
func NewSystemExecutor() *SystemExecutor { return &SystemExecutor{} }

func (e *SystemExecutor) Kind() Kind { return KindSystem }

func (e *SystemExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Terminate, program.Publish}
}

func (e *SystemExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	if inst.Opcode == program.Publish {
		src, err := fieldToU32(inst.B())
		if err != nil {
			return nil, err
		}
		if _, err := regRead(m, rec, src); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (e *SystemExecutor) ExecuteCore(rec *StepRecord) error {
	switch rec.Inst.Opcode {
	case program.Terminate:
		code, err := fieldToU32(rec.Inst.A())
		if err != nil {
			return err
		}
		rec.IsTerminate = true
		rec.ExitCode = code
		// The pc freezes on the terminating instruction.
		setToPC(rec, rec.From.PC)
	case program.Publish:
		word, err := wordToU32(rec.Reads[0])
		if err != nil {
			return err
		}
		rec.Writes = append(rec.Writes, []fr.Element{fr.NewElement(uint64(word))})
	default:
		return fmt.Errorf("opcode %s is not a system operation", rec.Inst.Opcode)
	}
	return nil
}

func (e *SystemExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	switch rec.Inst.Opcode {
	case program.Terminate:
		m.Mem.IncrementTimestamp()
		return ExecutionState{PC: rec.From.PC, Timestamp: m.Mem.Timestamp()}, nil
	case program.Publish:
		index, err := fieldToU32(rec.Inst.A())
		if err != nil {
			return ExecutionState{}, err
		}
		id, err := m.Mem.Write(PublicValuesSpace, index, rec.Writes[0])
		if err != nil {
			return ExecutionState{}, err
		}
		rec.WriteIDs = append(rec.WriteIDs, id)
	}
	return advancePC(rec, m), nil
}

func (e *SystemExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	for _, w := range rec.Writes {
		n += copy(row[n:], w)
	}
	if rec.IsTerminate {
		row[n] = fr.NewElement(uint64(rec.ExitCode))
	}
}
