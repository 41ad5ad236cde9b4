package exec

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/arith"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// PairingExecutor covers the BN254 Miller-loop steps, the sparse line
// multiplication, and the final exponentiation. Guest-side pairing drives
// the loop; these opcodes accelerate the per-iteration field work.
//
// Tower convention: Fp2 = Fp[u]/(u^2+1), Fp12 = Fp2[w]/(w^6 - xi) with
// xi = 9 + u. An Fp2 element is 2 wide values (64 limbs), an Fp12 element
// 12 (384 limbs). G2 points are affine (x, y) in Fp2.
type PairingExecutor struct{}

// NewPairingExecutor creates the executor.
func NewPairingExecutor() *PairingExecutor { return &PairingExecutor{} }

func (e *PairingExecutor) Kind() Kind { return KindPairing }

func (e *PairingExecutor) Opcodes() []program.OpCode {
	return []program.OpCode{
		program.MillerDoubleStep, program.MillerDoubleAndAddStep,
		program.Fp12MulByLine, program.FinalExp,
	}
}

// ========== Fp2 ==========

type fp2 struct {
	c0, c1 *arith.IntMod
}

func fp2Zero() fp2 {
	mod := arith.Bn254Coord
	return fp2{arith.NewIntMod(mod, big.NewInt(0)), arith.NewIntMod(mod, big.NewInt(0))}
}

func fp2One() fp2 {
	mod := arith.Bn254Coord
	return fp2{arith.NewIntMod(mod, big.NewInt(1)), arith.NewIntMod(mod, big.NewInt(0))}
}

// xiFp2 is the sextic twist constant 9 + u.
func xiFp2() fp2 {
	mod := arith.Bn254Coord
	return fp2{arith.NewIntMod(mod, big.NewInt(9)), arith.NewIntMod(mod, big.NewInt(1))}
}

func (a fp2) add(b fp2) fp2 { return fp2{a.c0.Add(b.c0), a.c1.Add(b.c1)} }
func (a fp2) sub(b fp2) fp2 { return fp2{a.c0.Sub(b.c0), a.c1.Sub(b.c1)} }
func (a fp2) neg() fp2      { return fp2{a.c0.Neg(), a.c1.Neg()} }
func (a fp2) double() fp2   { return fp2{a.c0.Double(), a.c1.Double()} }

func (a fp2) mul(b fp2) fp2 {
	// (a0 + a1 u)(b0 + b1 u) with u^2 = -1.
	t0 := a.c0.Mul(b.c0).Sub(a.c1.Mul(b.c1))
	t1 := a.c0.Mul(b.c1).Add(a.c1.Mul(b.c0))
	return fp2{t0, t1}
}

func (a fp2) square() fp2 { return a.mul(a) }

func (a fp2) isZero() bool { return a.c0.IsZero() && a.c1.IsZero() }

func (a fp2) equal(b fp2) bool { return a.c0.Equal(b.c0) && a.c1.Equal(b.c1) }

func (a fp2) inverse() (fp2, error) {
	// 1/(a0 + a1 u) = (a0 - a1 u) / (a0^2 + a1^2).
	norm := a.c0.Square().Add(a.c1.Square())
	inv := norm.Inverse()
	if inv == nil {
		return fp2{}, fmt.Errorf("fp2 inverse of zero")
	}
	return fp2{a.c0.Mul(inv), a.c1.Neg().Mul(inv)}, nil
}

func (a fp2) div(b fp2) (fp2, error) {
	bi, err := b.inverse()
	if err != nil {
		return fp2{}, err
	}
	return a.mul(bi), nil
}

func (a fp2) limbs() []fr.Element {
	out := make([]fr.Element, 0, 2*WideSize)
	out = append(out, a.c0.FieldLimbs()...)
	out = append(out, a.c1.FieldLimbs()...)
	return out
}

// ========== Fp12 ==========

// fp12 holds the w-power coefficients c[i] * w^i over Fp2.
type fp12 struct {
	c [6]fp2
}

func fp12One() fp12 {
	f := fp12{}
	f.c[0] = fp2One()
	for i := 1; i < 6; i++ {
		f.c[i] = fp2Zero()
	}
	return f
}

func (a fp12) mul(b fp12) fp12 {
	xi := xiFp2()
	var out fp12
	for i := range out.c {
		out.c[i] = fp2Zero()
	}
	for i := 0; i < 6; i++ {
		if b.c[i].isZero() {
			continue
		}
		for j := 0; j < 6; j++ {
			t := a.c[j].mul(b.c[i])
			k := i + j
			if k >= 6 {
				out.c[k-6] = out.c[k-6].add(t.mul(xi))
			} else {
				out.c[k] = out.c[k].add(t)
			}
		}
	}
	return out
}

func (a fp12) square() fp12 { return a.mul(a) }

func (a fp12) isOne() bool {
	if !a.c[0].equal(fp2One()) {
		return false
	}
	for i := 1; i < 6; i++ {
		if !a.c[i].isZero() {
			return false
		}
	}
	return true
}

// exp is plain square-and-multiply; e must be nonnegative.
func (a fp12) exp(e *big.Int) fp12 {
	out := fp12One()
	for i := e.BitLen() - 1; i >= 0; i-- {
		out = out.square()
		if e.Bit(i) == 1 {
			out = out.mul(a)
		}
	}
	return out
}

func (a fp12) limbs() []fr.Element {
	out := make([]fr.Element, 0, 12*WideSize)
	for i := 0; i < 6; i++ {
		out = append(out, a.c[i].limbs()...)
	}
	return out
}

// finalExpPower is (p^12 - 1) / r for BN254, fixed at startup.
var finalExpPower = func() *big.Int {
	p := arith.Bn254Coord.Prime()
	r, _ := new(big.Int).SetString(
		"30644e72e131a029b85045b68181585d2833e84879b9709143e1f593f0000001", 16)
	e := new(big.Int).Exp(p, big.NewInt(12), nil)
	e.Sub(e, big.NewInt(1))
	return e.Div(e, r)
}()

// ========== Memory plumbing ==========

// readFp2s dereferences ptrReg and reads n consecutive Fp2 values.
func readFp2s(m *Machine, rec *StepRecord, ptrReg uint32, n int) error {
	ptrWord, err := regRead(m, rec, ptrReg)
	if err != nil {
		return err
	}
	ptr, err := wordToU32(ptrWord)
	if err != nil {
		return err
	}
	for i := 0; i < 2*n; i++ {
		vals, id, err := m.Mem.Read(MemorySpace, ptr+uint32(i*WideSize), WideSize)
		if err != nil {
			return err
		}
		rec.Reads = append(rec.Reads, vals)
		rec.ReadIDs = append(rec.ReadIDs, id)
	}
	return nil
}

// fp2At decodes the Fp2 value whose coordinate reads start at rec.Reads[i].
func fp2At(rec *StepRecord, i int) (fp2, error) {
	c0, err := wideToIntMod(arith.Bn254Coord, rec.Reads[i])
	if err != nil {
		return fp2{}, err
	}
	c1, err := wideToIntMod(arith.Bn254Coord, rec.Reads[i+1])
	if err != nil {
		return fp2{}, err
	}
	return fp2{c0, c1}, nil
}

// pairingShape returns the Fp2 count read from each source pointer.
func pairingShape(op program.OpCode) (n1, n2 int) {
	switch op {
	case program.MillerDoubleStep:
		return 2, 0 // T = (x, y)
	case program.MillerDoubleAndAddStep:
		return 2, 2 // T, Q
	case program.Fp12MulByLine:
		return 6, 2 // f, (b, c)
	case program.FinalExp:
		return 6, 0 // f
	}
	return 0, 0
}

func (e *PairingExecutor) Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error) {
	rec := &StepRecord{Inst: inst, From: from}
	n1, n2 := pairingShape(inst.Opcode)
	rs1, err := fieldToU32(inst.B())
	if err != nil {
		return nil, err
	}
	if err := readFp2s(m, rec, rs1, n1); err != nil {
		return nil, err
	}
	if n2 > 0 {
		rs2, err := fieldToU32(inst.C())
		if err != nil {
			return nil, err
		}
		if err := readFp2s(m, rec, rs2, n2); err != nil {
			return nil, err
		}
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

func (e *PairingExecutor) ExecuteCore(rec *StepRecord) error {
	switch rec.Inst.Opcode {
	case program.MillerDoubleStep:
		return millerDoubleStep(rec)
	case program.MillerDoubleAndAddStep:
		return millerDoubleAndAddStep(rec)
	case program.Fp12MulByLine:
		return fp12MulByLine(rec)
	case program.FinalExp:
		return finalExp(rec)
	}
	return fmt.Errorf("opcode %s is not a pairing operation", rec.Inst.Opcode)
}

// millerDoubleStep computes 2T and the tangent line. Output layout:
// x', y', b, c with b = -lambda and c = lambda*x - y.
func millerDoubleStep(rec *StepRecord) error {
	x, err := fp2At(rec, 1)
	if err != nil {
		return err
	}
	y, err := fp2At(rec, 3)
	if err != nil {
		return err
	}
	if y.isZero() {
		return fmt.Errorf("miller double step at a two-torsion point")
	}
	threeXSq := x.square().double().add(x.square())
	lambda, err := threeXSq.div(y.double())
	if err != nil {
		return err
	}
	xp := lambda.square().sub(x.double())
	yp := lambda.mul(x.sub(xp)).sub(y)
	b := lambda.neg()
	c := lambda.mul(x).sub(y)

	out := make([]fr.Element, 0, 8*WideSize)
	for _, v := range []fp2{xp, yp, b, c} {
		out = append(out, v.limbs()...)
	}
	rec.Writes = append(rec.Writes, out)
	return nil
}

// millerDoubleAndAddStep computes 2T + Q with the two chord lines, without
// materializing the intermediate y. Output layout: x4, y4, b0, c0, b1, c1.
func millerDoubleAndAddStep(rec *StepRecord) error {
	x1, err := fp2At(rec, 1)
	if err != nil {
		return err
	}
	y1, err := fp2At(rec, 3)
	if err != nil {
		return err
	}
	x2, err := fp2At(rec, 6)
	if err != nil {
		return err
	}
	y2, err := fp2At(rec, 8)
	if err != nil {
		return err
	}
	if x1.equal(x2) {
		return fmt.Errorf("miller double-and-add requires distinct x coordinates")
	}
	lambda1, err := y2.sub(y1).div(x2.sub(x1))
	if err != nil {
		return err
	}
	x3 := lambda1.square().sub(x1).sub(x2)
	if x3.equal(x1) {
		return fmt.Errorf("miller double-and-add degenerates at 2T + Q")
	}
	twoY1, err := y1.double().div(x3.sub(x1))
	if err != nil {
		return err
	}
	lambda2 := lambda1.neg().sub(twoY1)
	x4 := lambda2.square().sub(x1).sub(x3)
	y4 := lambda2.mul(x1.sub(x4)).sub(y1)

	b0 := lambda1.neg()
	c0 := lambda1.mul(x1).sub(y1)
	b1 := lambda2.neg()
	c1 := lambda2.mul(x1).sub(y1)

	out := make([]fr.Element, 0, 12*WideSize)
	for _, v := range []fp2{x4, y4, b0, c0, b1, c1} {
		out = append(out, v.limbs()...)
	}
	rec.Writes = append(rec.Writes, out)
	return nil
}

// fp12At decodes the Fp12 value whose reads start at rec.Reads[i].
func fp12At(rec *StepRecord, i int) (fp12, error) {
	var f fp12
	for k := 0; k < 6; k++ {
		v, err := fp2At(rec, i+2*k)
		if err != nil {
			return fp12{}, err
		}
		f.c[k] = v
	}
	return f, nil
}

// fp12MulByLine multiplies f by the sparse line 1 + b w + c w^3.
func fp12MulByLine(rec *StepRecord) error {
	f, err := fp12At(rec, 1)
	if err != nil {
		return err
	}
	b, err := fp2At(rec, 14)
	if err != nil {
		return err
	}
	c, err := fp2At(rec, 16)
	if err != nil {
		return err
	}
	var line fp12
	line.c[0] = fp2One()
	line.c[1] = b
	line.c[2] = fp2Zero()
	line.c[3] = c
	line.c[4] = fp2Zero()
	line.c[5] = fp2Zero()

	rec.Writes = append(rec.Writes, f.mul(line).limbs())
	return nil
}

// finalExp raises f to (p^12 - 1) / r. The guest checks the result against
// one to decide pairing equality.
func finalExp(rec *StepRecord) error {
	f, err := fp12At(rec, 1)
	if err != nil {
		return err
	}
	rec.Writes = append(rec.Writes, f.exp(finalExpPower).limbs())
	return nil
}

func (e *PairingExecutor) Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error) {
	rdPtr, err := wordToU32(rec.Reads[len(rec.Reads)-1])
	if err != nil {
		return ExecutionState{}, err
	}
	out := rec.Writes[0]
	for off := 0; off < len(out); off += WideSize {
		for _, l := range out[off : off+WideSize] {
			v, lerr := limbValue(l)
			if lerr != nil {
				return ExecutionState{}, lerr
			}
			if err := m.Range.AddCount(v, LimbBits); err != nil {
				return ExecutionState{}, err
			}
		}
		id, err := m.Mem.Write(MemorySpace, rdPtr+uint32(off), out[off:off+WideSize])
		if err != nil {
			return ExecutionState{}, err
		}
		rec.WriteIDs = append(rec.WriteIDs, id)
	}
	return advancePC(rec, m), nil
}

func (e *PairingExecutor) GenerateTraceRow(row []fr.Element, rec *StepRecord) {
	n := baseRow(row, rec)
	for _, r := range rec.Reads {
		n += copy(row[n:], r)
	}
	copy(row[n:], rec.Writes[0])
}
