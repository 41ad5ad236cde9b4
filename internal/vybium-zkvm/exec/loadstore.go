package exec

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// LoadStoreExecutor combines a register read (base address) with a memory
// access at base + imm. Operands:
//
//	a = data register pointer (destination for load, source for store)
//	b = base register pointer
//	c = signed immediate offset
//	e = memory address space (canonically MemorySpace)
//	f = access size in bytes (1, 2 or 4)
//	g = sign-extend flag for sub-word loads
//
// HintStore shares the addressing scheme but takes its data from the hint
// stream instead of a register: it pops one element and writes it as a
// native cell at (e, base + imm). Operands f and g are ignored.
type LoadStoreExecutor struct{}

// NewLoadStoreExecutor creates the executor.
func NewLoadStoreExecutor() *LoadStoreExecutor { return &LoadStoreExecutor{} }

func (e *LoadStoreExecutor) Kind() Kind { return KindLoadStore }

func (e *LoadStoreExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.Load, program.Store, program.HintStore}
}

func loadStoreShape(inst *program.Instruction) (space uint32, size int, signExtend bool, err error) {
	space, err = fieldToU32(inst.E())
	if err != nil {
		return
	}
	if space == 0 {
		err = fmt.Errorf("load/store cannot target the immediate space")
		return
	}
	if inst.Opcode == program.HintStore {
		size = 1
		return
	}
	szRaw, err := fieldToU32(inst.F())
	if err != nil {
		return
	}
	size = int(szRaw)
	if size != 1 && size != 2 && size != 4 {
		err = fmt.Errorf("load/store size %d not in {1, 2, 4}", size)
		return
	}
	g, err := fieldToU32(inst.G())
	if err != nil {
		return
	}
	signExtend = g != 0
	return
}

func (e *LoadStoreExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	base, err := fieldToU32(inst.B())
	if err != nil {
		return nil, err
	}
	baseWord, err := regRead(m, rec, base)
	if err != nil {
		return nil, err
	}
	space, size, _, err := loadStoreShape(inst)
	if err != nil {
		return nil, err
	}
	baseAddr, err := wordToU32(baseWord)
	if err != nil {
		return nil, err
	}
	imm, err := fieldToI32(inst.C())
	if err != nil {
		return nil, err
	}
	addr := baseAddr + uint32(imm)

	switch inst.Opcode {
	case program.Load:
		vals, id, err := m.Mem.Read(space, addr, size)
		if err != nil {
			return nil, err
		}
		rec.Reads = append(rec.Reads, vals)
		rec.ReadIDs = append(rec.ReadIDs, id)
	case program.HintStore:
		v, err := m.Streams.PopHint()
		if err != nil {
			return nil, err
		}
		rec.Reads = append(rec.Reads, []fr.Element{v})
	default:
		// Store reads its data register here; the memory write happens in
		// postprocess once the core selected the limbs.
		data, err := fieldToU32(inst.A())
		if err != nil {
			return nil, err
		}
		if _, err := regRead(m, rec, data); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (e *LoadStoreExecutor) ExecuteCore(rec *StepRecord) error {
	_, size, signExtend, err := loadStoreShape(rec.Inst)
	if err != nil {
		return err
	}
	switch rec.Inst.Opcode {
	case program.Load:
		loaded := rec.Reads[1]
		var v uint32
		for i := size - 1; i >= 0; i-- {
			l, err := limbValue(loaded[i])
			if err != nil {
				return err
			}
			v = v<<LimbBits | l
		}
		if signExtend && size < 4 {
			signBit := uint32(1) << (size*LimbBits - 1)
			if v&signBit != 0 {
				v |= ^uint32(0) << (size * LimbBits)
			}
		}
		rec.Writes = append(rec.Writes, u32ToWord(v))
	case program.Store:
		word := rec.Reads[1]
		rec.Writes = append(rec.Writes, append([]fr.Element(nil), word[:size]...))
	case program.HintStore:
		rec.Writes = append(rec.Writes, []fr.Element{rec.Reads[1][0]})
	}
	return nil
}

func (e *LoadStoreExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	space, size, _, err := loadStoreShape(rec.Inst)
	if err != nil {
		return ExecutionState{}, err
	}
	switch rec.Inst.Opcode {
	case program.Load:
		rd, err := fieldToU32(rec.Inst.A())
		if err != nil {
			return ExecutionState{}, err
		}
		if err := regWrite(m, rec, rd, rec.Writes[0]); err != nil {
			return ExecutionState{}, err
		}
	case program.Store, program.HintStore:
		baseAddr, err := wordToU32(rec.Reads[0])
		if err != nil {
			return ExecutionState{}, err
		}
		imm, err := fieldToI32(rec.Inst.C())
		if err != nil {
			return ExecutionState{}, err
		}
		id, err := m.Mem.Write(space, baseAddr+uint32(imm), rec.Writes[0][:size])
		if err != nil {
			return ExecutionState{}, err
		}
		rec.WriteIDs = append(rec.WriteIDs, id)
	}
	return advancePC(rec, m), nil
}

func (e *LoadStoreExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	for _, w := range rec.Writes {
		n += copy(row[n:], w)
	}
}
