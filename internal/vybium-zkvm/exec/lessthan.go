package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// LessThanExecutor covers slt and sltu. The core witness is the
// diff-marker vector: exactly one marker set on the most significant
// differing limb (all zero when the operands are equal), with the limbs
// above it equal and the marked limb difference nonzero.
type LessThanExecutor struct{}

// NewLessThanExecutor creates the executor.
func NewLessThanExecutor() *LessThanExecutor { return &LessThanExecutor{} }

func (e *LessThanExecutor) Kind() Kind { return KindLessThan }

func (e *LessThanExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Slt, program.Sltu}
}

func (e *LessThanExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
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

// lessThanWitness computes the comparison result together with the
// diff-marker vector over little-endian byte limbs.
func lessThanWitness(x, y uint32, signed bool) (result bool, markers [WordSize]uint32) {
	if signed {
		result = int32(x) < int32(y)
	} else {
		result = x < y
	}
	for i := WordSize - 1; i >= 0; i-- {
		xi := x >> (i * LimbBits) & 0xff
		yi := y >> (i * LimbBits) & 0xff
		if xi != yi {
			markers[i] = 1
			return result, markers
		}
	}
	return result, markers
}

func (e *LessThanExecutor) ExecuteCore(rec *StepRecord) error {
	x, err := wordToU32(rec.Reads[0])
	if err != nil {
		return err
	}
	y, err := wordToU32(rec.Reads[1])
	if err != nil {
		return err
	}
	lt, markers := lessThanWitness(x, y, rec.Inst.Opcode == program.Slt)
	out := uint32(0)
	if lt {
		out = 1
	}
	rec.Writes = append(rec.Writes, u32ToWord(out))
	rec.Core = make([]fr.Element, WordSize)
	for i, mk := range markers {
		rec.Core[i] = fr.NewElement(uint64(mk))
	}
	return nil
}

func (e *LessThanExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	// The sign comparison on the marked limb needs its difference
	// range-checked below 2^LimbBits.
	x, _ := wordToU32(rec.Reads[0])
	y, _ := wordToU32(rec.Reads[1])
	for i := 0; i < WordSize; i++ {
		if rec.Core[i].IsZero() {
			continue
		}
		xi := x >> (i * LimbBits) & 0xff
		yi := y >> (i * LimbBits) & 0xff
		diff := xi - yi
		if yi > xi {
			diff = yi - xi
		}
		if err := m.Range.AddCount(diff, LimbBits); err != nil {
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

func (e *LessThanExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	n += copy(row[n:], rec.Reads[0])
	n += copy(row[n:], rec.Reads[1])
	n += copy(row[n:], rec.Writes[0])
	copy(row[n:], rec.Core)
}

// checkMarkers validates a diff-marker vector against two words: at most
// one marker, set exactly on the most significant differing limb. Used by
// the branch family as well.
func checkMarkers(x, y uint32, markers []fr.Element) error {
	seen := false
	for i := WordSize - 1; i >= 0; i-- {
		xi := x >> (i * LimbBits) & 0xff
		yi := y >> (i * LimbBits) & 0xff
		marked := !markers[i].IsZero()
		if marked {
			if seen {
				return fmt.Errorf("more than one diff marker set")
			}
			if xi == yi {
				return fmt.Errorf("marker set on equal limbs")
			}
			seen = true
			continue
		}
		if !seen && xi != yi {
			return fmt.Errorf("differing limb above the marker")
		}
	}
	return nil
}
