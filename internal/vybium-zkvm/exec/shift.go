package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// ShiftExecutor covers sll, srl and sra. Only the low 5 bits of the shift
// amount participate. The witness decomposes the amount into a limb shift
// and a bit shift, with a one-hot marker selecting the limb shift.
type ShiftExecutor struct{}

// NewShiftExecutor creates the executor.
func NewShiftExecutor() *ShiftExecutor { return &ShiftExecutor{} }

func (e *ShiftExecutor) Kind() Kind { return KindShift }

func (e *ShiftExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Sll, program.Srl, program.Sra}
}

func (e *ShiftExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
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

func (e *ShiftExecutor) ExecuteCore(rec *StepRecord) error {
	x, err := wordToU32(rec.Reads[0])
	if err != nil {
		return err
	}
	y, err := wordToU32(rec.Reads[1])
	if err != nil {
		return err
	}
	amount := y & 31

	var z uint32
	switch rec.Inst.Opcode {
	case program.Sll:
		z = x << amount
	case program.Srl:
		z = x >> amount
	case program.Sra:
		z = uint32(int32(x) >> amount)
	default:
		return fmt.Errorf("opcode %s is not a shift operation", rec.Inst.Opcode)
	}
	rec.Writes = append(rec.Writes, u32ToWord(z))

	// Core layout: [bit_shift, limb_shift marker x4, bit multiplier].
	limbShift := amount / LimbBits
	bitShift := amount % LimbBits
	rec.Core = make([]fr.Element, 1+WordSize+1)
	rec.Core[0] = fr.NewElement(uint64(bitShift))
	rec.Core[1+limbShift] = fr.NewElement(1)
	rec.Core[1+WordSize] = fr.NewElement(uint64(1) << bitShift)
	return nil
}

func (e *ShiftExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	bitShift, _ := fieldToU64(rec.Core[0])
	if err := m.Range.AddCount(uint32(bitShift), 3); err != nil {
		return ExecutionState{}, err
	}
	z, err := wordToU32(rec.Writes[0])
	if err != nil {
		return ExecutionState{}, err
	}
	for i := 0; i < WordSize; i++ {
		if err := m.Range.AddCount(z>>(i*LimbBits)&0xff, LimbBits); err != nil {
			return ExecutionState{}, err
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

func (e *ShiftExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	n += copy(row[n:], rec.Reads[0])
	n += copy(row[n:], rec.Reads[1])
	n += copy(row[n:], rec.Writes[0])
	copy(row[n:], rec.Core)
}
