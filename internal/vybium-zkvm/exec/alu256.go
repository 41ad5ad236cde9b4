package exec

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// Alu256Executor covers the 256-bit wide family. Wide operands live in
// memory as 32 byte-limbs; the instruction's register operands hold
// pointers to them:
//
//	a = register holding the destination pointer (or rs1 for beq256)
//	b = register holding the first source pointer
//	c = register holding the second source pointer, or the branch offset
type Alu256Executor struct{}

// NewAlu256Executor creates the executor.
func NewAlu256Executor() *Alu256Executor { return &Alu256Executor{} }

func (e *Alu256Executor) Kind() Kind { return KindAlu256 }

func (e *Alu256Executor) Opcodes() []program.OpCode {
	return []program.OpCode{
		program.Add256, program.Sub256, program.Xor256, program.Or256, program.And256,
		program.Slt256, program.Sltu256, program.Sll256, program.Srl256, program.Sra256,
		program.Mul256, program.Beq256,
	}
}

// readWide dereferences the pointer in register ptrReg and reads the 32-limb
// value it addresses.
func readWide(m *Machine, rec *StepRecord, ptrReg uint32) ([]fr.Element, error) {
	ptrWord, err := regRead(m, rec, ptrReg)
	if err != nil {
		return nil, err
	}
	ptr, err := wordToU32(ptrWord)
	if err != nil {
		return nil, err
	}
	vals, id, err := m.Mem.Read(MemorySpace, ptr, WideSize)
	if err != nil {
		return nil, err
	}
	rec.Reads = append(rec.Reads, vals)
	rec.ReadIDs = append(rec.ReadIDs, id)
	return vals, nil
}

func (e *Alu256Executor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	if inst.Opcode == program.Beq256 {
		rs1, err := fieldToU32(inst.A())
		if err != nil {
			return nil, err
		}
		rs2, err := fieldToU32(inst.B())
		if err != nil {
			return nil, err
		}
		if _, err := readWide(m, rec, rs1); err != nil {
			return nil, err
		}
		if _, err := readWide(m, rec, rs2); err != nil {
			return nil, err
		}
		return rec, nil
	}
	rs1, err := fieldToU32(inst.B())
	if err != nil {
		return nil, err
	}
	rs2, err := fieldToU32(inst.C())
	if err != nil {
		return nil, err
	}
	if _, err := readWide(m, rec, rs1); err != nil {
		return nil, err
	}
	if _, err := readWide(m, rec, rs2); err != nil {
		return nil, err
	}
	// The destination pointer register is read last.
	rd, err := fieldToU32(inst.A())
	if err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rd); err != nil {
		return nil, err
	}
	return rec, nil
}

// wideToBig recomposes 32 byte-limbs into an unsigned big.Int.
func wideToBig(limbs []fr.Element) (*big.Int, error) {
	bytes := make([]byte, WideSize)
	for i, l := range limbs {
		v, err := limbValue(l)
		if err != nil {
			return nil, err
		}
		bytes[WideSize-1-i] = byte(v)
	}
	return new(big.Int).SetBytes(bytes), nil
}

// bigToWide decomposes v mod 2^256 into 32 byte-limbs.
func bigToWide(v *big.Int) []fr.Element {
	reduced := new(big.Int).And(v, wideMask)
	bytes := reduced.FillBytes(make([]byte, WideSize))
	limbs := make([]fr.Element, WideSize)
	for i := 0; i < WideSize; i++ {
		limbs[i] = fr.NewElement(uint64(bytes[WideSize-1-i]))
	}
	return limbs
}

var (
	wideMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	wideSign = new(big.Int).Lsh(big.NewInt(1), 255)
)

// toSigned reinterprets an unsigned 256-bit value as two's complement.
func toSigned(v *big.Int) *big.Int {
	if v.Cmp(wideSign) >= 0 {
		return new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return v
}

func (e *Alu256Executor) ExecuteCore(rec *StepRecord) error {
	// Reads[0], Reads[2] are pointer words; Reads[1], Reads[3] the data.
	x, err := wideToBig(rec.Reads[1])
	if err != nil {
		return err
	}
	y, err := wideToBig(rec.Reads[3])
	if err != nil {
		return err
	}

	if rec.Inst.Opcode == program.Beq256 {
		if x.Cmp(y) == 0 {
			imm, err := fieldToU32(rec.Inst.C())
			if err != nil {
				return err
			}
			target := rec.From.PC + imm
			if target%program.DefaultPCStep != 0 {
				return fmt.Errorf("beq256 target %#x is not instruction aligned", target)
			}
			setToPC(rec, target)
			rec.Core = []fr.Element{fr.NewElement(1)}
		} else {
			rec.Core = []fr.Element{fr.NewElement(0)}
		}
		return nil
	}

	z := new(big.Int)
	switch rec.Inst.Opcode {
	case program.Add256:
		z.Add(x, y)
	case program.Sub256:
		z.Sub(x, y)
	case program.Xor256:
		z.Xor(x, y)
	case program.Or256:
		z.Or(x, y)
	case program.And256:
		z.And(x, y)
	case program.Slt256:
		if toSigned(x).Cmp(toSigned(y)) < 0 {
			z.SetInt64(1)
		}
	case program.Sltu256:
		if x.Cmp(y) < 0 {
			z.SetInt64(1)
		}
	case program.Sll256:
		z.Lsh(x, uint(y.Uint64()&0xff))
	case program.Srl256:
		z.Rsh(x, uint(y.Uint64()&0xff))
	case program.Sra256:
		z.Rsh(toSigned(x), uint(y.Uint64()&0xff))
	case program.Mul256:
		z.Mul(x, y)
	default:
		return fmt.Errorf("opcode %s is not a 256-bit operation", rec.Inst.Opcode)
	}
	rec.Writes = append(rec.Writes, bigToWide(z))
	return nil
}

func (e *Alu256Executor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	if rec.Inst.Opcode == program.Beq256 {
		return advancePC(rec, m), nil
	}
	result := rec.Writes[0]
	switch rec.Inst.Opcode {
	case program.Xor256, program.Or256, program.And256:
		op := map[program.OpCode]lookup.BitwiseOp{
			program.Xor256: lookup.BitwiseXor,
			program.Or256:  lookup.BitwiseOr,
			program.And256: lookup.BitwiseAnd,
		}[rec.Inst.Opcode]
		for i := 0; i < WideSize; i++ {
			xi, _ := limbValue(rec.Reads[1][i])
			yi, _ := limbValue(rec.Reads[3][i])
			if _, err := m.Bitwise.AddPair(op, xi, yi); err != nil {
				return ExecutionState{}, err
			}
		}
	default:
		for i := 0; i < WideSize; i++ {
			v, _ := limbValue(result[i])
			if err := m.Range.AddCount(v, LimbBits); err != nil {
				return ExecutionState{}, err
			}
		}
	}
	// Write through the destination pointer read in preprocess.
	rdPtr, err := wordToU32(rec.Reads[4])
	if err != nil {
		return ExecutionState{}, err
	}
	id, err := m.Mem.Write(MemorySpace, rdPtr, result)
	if err != nil {
		return ExecutionState{}, err
	}
	rec.WriteIDs = append(rec.WriteIDs, id)
	return advancePC(rec, m), nil
}

func (e *Alu256Executor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	for _, w := range rec.Writes {
		n += copy(row[n:], w)
	}
	copy(row[n:], rec.Core)
}
