package exec

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/arith"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// ModularExecutor covers modular add, sub, mul and div over the registered
// 256-bit moduli. Operands follow the wide pointer convention of the
// 256-bit ALU; operand f selects the modulus. The witness is the overflow
// identity result - expected = q * p with its carry decomposition, checked
// against the soundness budget.
type ModularExecutor struct{}

// NewModularExecutor creates the executor.
func NewModularExecutor() *ModularExecutor { return &ModularExecutor{} }

func (e *ModularExecutor) Kind() Kind { return KindModular }

func (e *ModularExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{program.ModAdd, program.ModSub, program.ModMul, program.ModDiv}
}

// moduli is the closed selector table for operand f.
var moduli = []*arith.Modulus{
	arith.Secp256k1Coord,
	arith.Secp256k1Scalar,
	arith.Bn254Coord,
}

func selectedModulus(inst *program.Instruction) (*arith.Modulus, error) {
	sel, err := fieldToU32(inst.F())
	if err != nil {
		return nil, err
	}
	if int(sel) >= len(moduli) {
		return nil, fmt.Errorf("modulus selector %d out of range", sel)
	}
	return moduli[sel], nil
}

func (e *ModularExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
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
	rd, err := fieldToU32(inst.A())
	if err != nil {
		return nil, err
	}
	if _, err := regRead(m, rec, rd); err != nil {
		return nil, err
	}
	return rec, nil
}

// wideToIntMod reinterprets 32 byte-limbs as a reduced residue.
func wideToIntMod(mod *arith.Modulus, limbs []fr.Element) (*arith.IntMod, error) {
	raw := make([]uint32, len(limbs))
	for i, l := range limbs {
		v, err := limbValue(l)
		if err != nil {
			return nil, err
		}
		raw[i] = v
	}
	return arith.NewIntModFromLimbs(mod, raw)
}

func (e *ModularExecutor) ExecuteCore(rec *StepRecord) error {
	mod, err := selectedModulus(rec.Inst)
	if err != nil {
		return err
	}
	x, err := wideToIntMod(mod, rec.Reads[1])
	if err != nil {
		return err
	}
	y, err := wideToIntMod(mod, rec.Reads[3])
	if err != nil {
		return err
	}

	var z *arith.IntMod
	switch rec.Inst.Opcode {
	case program.ModAdd:
		z = x.Add(y)
	case program.ModSub:
		z = x.Sub(y)
	case program.ModMul:
		z = x.Mul(y)
	case program.ModDiv:
		if y.IsZero() {
			return fmt.Errorf("modular division by zero")
		}
		z = x.DivUnsafe(y)
	default:
		return fmt.Errorf("opcode %s is not a modular operation", rec.Inst.Opcode)
	}
	rec.Writes = append(rec.Writes, z.FieldLimbs())

	core, err := modularWitness(rec.Inst.Opcode, mod, x, y, z)
	if err != nil {
		return err
	}
	rec.Core = core
	return nil
}

// modularWitness computes [q limbs..., carries...] for the overflow
// identity of the opcode. For div the identity is z*y - x = q*p, so the
// same carry machinery serves all four operations.
func modularWitness(op program.OpCode, mod *arith.Modulus, x, y, z *arith.IntMod) ([]fr.Element, error) {
	p := mod.Prime()

	// lhs - z must equal q * p over the integers.
	var lhs *big.Int
	switch op {
	case program.ModAdd:
		lhs = new(big.Int).Add(x.BigInt(), y.BigInt())
	case program.ModSub:
		lhs = new(big.Int).Sub(x.BigInt(), y.BigInt())
	case program.ModMul:
		lhs = new(big.Int).Mul(x.BigInt(), y.BigInt())
	case program.ModDiv:
		// z*y == x (mod p); the identity runs on z*y - x.
		lhs = new(big.Int).Mul(z.BigInt(), y.BigInt())
		diff := new(big.Int).Sub(lhs, x.BigInt())
		return carryCells(mod, overflowProduct(z, y).Sub(arith.OverflowIntFromIntMod(x)), diff, p)
	}
	diff := new(big.Int).Sub(lhs, z.BigInt())

	var expr *arith.OverflowInt
	switch op {
	case program.ModAdd:
		expr = arith.OverflowIntFromIntMod(x).Add(arith.OverflowIntFromIntMod(y)).Sub(arith.OverflowIntFromIntMod(z))
	case program.ModSub:
		expr = arith.OverflowIntFromIntMod(x).Sub(arith.OverflowIntFromIntMod(y)).Sub(arith.OverflowIntFromIntMod(z))
	case program.ModMul:
		expr = overflowProduct(x, y).Sub(arith.OverflowIntFromIntMod(z))
	}
	return carryCells(mod, expr, diff, p)
}

func overflowProduct(x, y *arith.IntMod) *arith.OverflowInt {
	return arith.OverflowIntFromIntMod(x).Mul(arith.OverflowIntFromIntMod(y))
}

// signedLimbs decomposes v into numLimbs base-2^limbBits limbs, all carrying
// the sign of v. q stays in (-p, p) so the decomposition always fits.
func signedLimbs(v *big.Int, numLimbs, limbBits int) ([]int64, error) {
	abs := new(big.Int).Abs(v)
	limbs := make([]int64, numLimbs)
	mask := big.NewInt(int64(1)<<limbBits - 1)
	low := new(big.Int)
	for i := 0; i < numLimbs; i++ {
		limbs[i] = low.And(abs, mask).Int64()
		abs.Rsh(abs, uint(limbBits))
		if v.Sign() < 0 {
			limbs[i] = -limbs[i]
		}
	}
	if abs.Sign() != 0 {
		return nil, fmt.Errorf("value does not fit %d limbs of %d bits", numLimbs, limbBits)
	}
	return limbs, nil
}

// carryCells subtracts q*p from expr and emits [q limbs, carry limbs]. q is
// the exact integer quotient diff / p.
func carryCells(mod *arith.Modulus, expr *arith.OverflowInt, diff, p *big.Int) ([]fr.Element, error) {
	q, rem := new(big.Int).QuoRem(diff, p, new(big.Int))
	if rem.Sign() != 0 {
		return nil, fmt.Errorf("modular identity does not divide by the prime")
	}
	maxAbs := int64(1)<<mod.LimbBits() - 1
	qRaw, err := signedLimbs(q, mod.NumLimbs(), mod.LimbBits())
	if err != nil {
		return nil, err
	}
	pRaw, err := signedLimbs(p, mod.NumLimbs(), mod.LimbBits())
	if err != nil {
		return nil, err
	}
	qOv, err := arith.NewOverflowInt(qRaw, maxAbs)
	if err != nil {
		return nil, err
	}
	pOv, err := arith.NewOverflowInt(pRaw, maxAbs)
	if err != nil {
		return nil, err
	}

	full := expr.Sub(qOv.Mul(pOv))
	carries, err := full.CalculateCarries(mod.LimbBits())
	if err != nil {
		return nil, err
	}
	if err := full.CheckCarryBounds(mod.LimbBits()); err != nil {
		return nil, err
	}

	cells := make([]fr.Element, 0, len(qRaw)+len(carries))
	for _, l := range qRaw {
		var e fr.Element
		e.SetBigInt(big.NewInt(l))
		cells = append(cells, e)
	}
	for _, c := range carries {
		var e fr.Element
		e.SetBigInt(c)
		cells = append(cells, e)
	}
	return cells, nil
}

func (e *ModularExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	for i := 0; i < WideSize; i++ {
		v, _ := limbValue(rec.Writes[0][i])
		if err := m.Range.AddCount(v, LimbBits); err != nil {
			return ExecutionState{}, err
		}
	}
	rdPtr, err := wordToU32(rec.Reads[4])
	if err != nil {
		return ExecutionState{}, err
	}
	id, err := m.Mem.Write(MemorySpace, rdPtr, rec.Writes[0])
	if err != nil {
		return ExecutionState{}, err
	}
	rec.WriteIDs = append(rec.WriteIDs, id)
	return advancePC(rec, m), nil
}

func (e *ModularExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	n += copy(row[n:], rec.Writes[0])
	copy(row[n:], rec.Core)
}
