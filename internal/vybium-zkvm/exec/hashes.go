package exec

import (
	"crypto/sha256"
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// HashExecutor covers the hash precompiles. The Poseidon2 opcodes work on
// raw field cells; Keccak-256 and SHA-256 work on byte limbs:
//
//	Poseidon2Compress: a = dest ptr reg (8 cells), b/c = input ptr regs
//	Poseidon2Permute:  a = dest ptr reg (16 cells), b = input ptr reg
//	Keccak256/Sha256:  a = dest ptr reg (32 bytes), b = input ptr reg,
//	                   c = length register (bytes)
type HashExecutor struct{}

// NewHashExecutor creates the executor.
func NewHashExecutor() *HashExecutor { return &HashExecutor{} }

func (e *HashExecutor) Kind() Kind { return KindHash }

func (e *HashExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{
		program.Poseidon2Compress, program.Poseidon2Permute,
		program.Keccak256, program.Sha256,
	}
}

// readCells dereferences ptrReg and reads n raw cells in one access.
func readCells(m *Machine, rec *StepRecord, ptrReg uint32, n int) error {
	ptrWord, err := regRead(m, rec, ptrReg)
	if err != nil {
		return err
	}
	ptr, err := wordToU32(ptrWord)
	if err != nil {
		return err
	}
	vals, id, err := m.Mem.Read(MemorySpace, ptr, n)
	if err != nil {
		return err
	}
	rec.Reads = append(rec.Reads, vals)
	rec.ReadIDs = append(rec.ReadIDs, id)
	return nil
}

func (e *HashExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	switch inst.Opcode {
	case program.Poseidon2Compress:
		for _, opnd := range []fr.Element{inst.B(), inst.C()} {
			reg, err := fieldToU32(opnd)
			if err != nil {
				return nil, err
			}
			if err := readCells(m, rec, reg, poseidon2.DigestLen); err != nil {
				return nil, err
			}
		}
	case program.Poseidon2Permute:
		reg, err := fieldToU32(inst.B())
		if err != nil {
			return nil, err
		}
		if err := readCells(m, rec, reg, poseidon2.Width); err != nil {
			return nil, err
		}
	case program.Keccak256, program.Sha256:
		lenReg, err := fieldToU32(inst.C())
		if err != nil {
			return nil, err
		}
		lenWord, err := regRead(m, rec, lenReg)
		if err != nil {
			return nil, err
		}
		length, err := wordToU32(lenWord)
		if err != nil {
			return nil, err
		}
		ptrReg, err := fieldToU32(inst.B())
		if err != nil {
			return nil, err
		}
		ptrWord, err := regRead(m, rec, ptrReg)
		if err != nil {
			return nil, err
		}
		ptr, err := wordToU32(ptrWord)
		if err != nil {
			return nil, err
		}
		// Byte inputs are read cell by cell; lengths are unaligned.
		msg := make([]fr.Element, 0, length)
		for i := uint32(0); i < length; i++ {
			vals, id, err := m.Mem.Read(MemorySpace, ptr+i, 1)
			if err != nil {
				return nil, err
			}
			msg = append(msg, vals[0])
			rec.ReadIDs = append(rec.ReadIDs, id)
		}
		rec.Reads = append(rec.Reads, msg)
	default:
		return nil, fmt.Errorf("opcode %s is not a hash operation", inst.Opcode)
	}
	// Destination pointer register.
	rd, err := fieldToU32(inst.A())
	if err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rd); err != nil {
		return nil, err
	}
	return rec, nil
}

// hashMessageBytes recovers the byte message from the limb reads. The
// message follows the length word and the input pointer word.
func hashMessageBytes(rec *StepRecord) ([]byte, error) {
	limbs := rec.Reads[2]
	msg := make([]byte, len(limbs))
	for i, l := range limbs {
		v, err := limbValue(l)
		if err != nil {
			return nil, err
		}
		msg[i] = byte(v)
	}
	return msg, nil
}

// bytesToLimbs lifts a digest into byte-limb cells.
func bytesToLimbs(b []byte) []fr.Element {
	out := make([]fr.Element, len(b))
	for i, v := range b {
		out[i] = fr.NewElement(uint64(v))
	}
	return out
}

func (e *HashExecutor) executeWith(h *poseidon2.Permutation, rec *StepRecord) error {
	switch rec.Inst.Opcode {
	case program.Poseidon2Compress:
		var left, right poseidon2.Digest
		copy(left[:], rec.Reads[1])
		copy(right[:], rec.Reads[3])
		d := h.Compress(left, right)
		rec.Writes = append(rec.Writes, d[:])
	case program.Poseidon2Permute:
		var state [poseidon2.Width]fr.Element
		copy(state[:], rec.Reads[1])
		h.Permute(&state)
		out := make([]fr.Element, poseidon2.Width)
		copy(out, state[:])
		rec.Writes = append(rec.Writes, out)
	case program.Keccak256:
		msg, err := hashMessageBytes(rec)
		if err != nil {
			return err
		}
		d := sha3.NewLegacyKeccak256()
		d.Write(msg)
		rec.Writes = append(rec.Writes, bytesToLimbs(d.Sum(nil)))
	case program.Sha256:
		msg, err := hashMessageBytes(rec)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(msg)
		rec.Writes = append(rec.Writes, bytesToLimbs(sum[:]))
	}
	return nil
}

// ExecuteCore resolves the process-wide permutation instance itself so
// the core stays a pure function of the record.
func (e *HashExecutor) ExecuteCore(rec *StepRecord) error {
	return e.executeWith(poseidon2.NewPermutation(), rec)
}

func (e *HashExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	rdPtr, err := wordToU32(rec.Reads[len(rec.Reads)-1])
	if err != nil {
		return ExecutionState{}, err
	}
	out := rec.Writes[0]
	if rec.Inst.Opcode == program.Keccak256 || rec.Inst.Opcode == program.Sha256 {
		for _, l := range out {
			v, lerr := limbValue(l)
			if lerr != nil {
				return ExecutionState{}, lerr
			}
			if err := m.Range.AddCount(v, LimbBits); err != nil {
				return ExecutionState{}, err
			}
		}
	}
	id, err := m.Mem.Write(MemorySpace, rdPtr, out)
	if err != nil {
		return ExecutionState{}, err
	}
	rec.WriteIDs = append(rec.WriteIDs, id)
	return advancePC(rec, m), nil
}

func (e *HashExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	copy(row[n:], rec.Writes[0])
}
