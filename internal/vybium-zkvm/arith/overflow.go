package arith

import (
	"fmt"
	"math/big"
)

// OverflowInt tracks a signed wide integer as a limb vector whose per-limb
// magnitude bound is known statically. Constraint writers use it to build the
// polynomial identity expr = 0 (mod p) and to extract the signed carry
// sequence that closes the identity over F.
type OverflowInt struct {
	limbs      []*big.Int
	limbMaxAbs *big.Int
}

// NewOverflowInt wraps signed limb values with an explicit magnitude bound.
func NewOverflowInt(limbs []int64, maxAbs int64) (*OverflowInt, error) {
	if maxAbs < 0 {
		return nil, fmt.Errorf("limb bound must be non-negative")
	}
	bound := big.NewInt(maxAbs)
	wide := make([]*big.Int, len(limbs))
	for i, l := range limbs {
		v := big.NewInt(l)
		if v.CmpAbs(bound) > 0 {
			return nil, fmt.Errorf("limb %d magnitude %d exceeds declared bound %d", i, l, maxAbs)
		}
		wide[i] = v
	}
	return &OverflowInt{limbs: wide, limbMaxAbs: bound}, nil
}

// OverflowIntFromIntMod lifts a reduced IntMod into an exact overflow vector.
func OverflowIntFromIntMod(x *IntMod) *OverflowInt {
	limbs := x.Limbs()
	wide := make([]*big.Int, len(limbs))
	for i, l := range limbs {
		wide[i] = big.NewInt(int64(l))
	}
	return &OverflowInt{
		limbs:      wide,
		limbMaxAbs: big.NewInt(int64(1)<<x.Modulus().LimbBits() - 1),
	}
}

// NumLimbs returns the limb count.
func (o *OverflowInt) NumLimbs() int { return len(o.limbs) }

// LimbMaxAbs returns the static magnitude bound.
func (o *OverflowInt) LimbMaxAbs() *big.Int { return new(big.Int).Set(o.limbMaxAbs) }

// Limb returns limb i as a copy.
func (o *OverflowInt) Limb(i int) *big.Int { return new(big.Int).Set(o.limbs[i]) }

func padTo(limbs []*big.Int, n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		if i < len(limbs) {
			out[i] = new(big.Int).Set(limbs[i])
		} else {
			out[i] = new(big.Int)
		}
	}
	return out
}

// Add returns the limb-wise sum; the bound is the sum of bounds.
func (o *OverflowInt) Add(other *OverflowInt) *OverflowInt {
	n := max(len(o.limbs), len(other.limbs))
	a := padTo(o.limbs, n)
	b := padTo(other.limbs, n)
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int).Add(a[i], b[i])
	}
	return &OverflowInt{
		limbs:      out,
		limbMaxAbs: new(big.Int).Add(o.limbMaxAbs, other.limbMaxAbs),
	}
}

// Sub returns the limb-wise difference; the bound is the sum of bounds.
func (o *OverflowInt) Sub(other *OverflowInt) *OverflowInt {
	n := max(len(o.limbs), len(other.limbs))
	a := padTo(o.limbs, n)
	b := padTo(other.limbs, n)
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int).Sub(a[i], b[i])
	}
	return &OverflowInt{
		limbs:      out,
		limbMaxAbs: new(big.Int).Add(o.limbMaxAbs, other.limbMaxAbs),
	}
}

// Mul returns the schoolbook product. The bound grows to
// min(len_a, len_b) * bound_a * bound_b.
func (o *OverflowInt) Mul(other *OverflowInt) *OverflowInt {
	n := len(o.limbs) + len(other.limbs) - 1
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int)
	}
	t := new(big.Int)
	for i, a := range o.limbs {
		for j, b := range other.limbs {
			t.Mul(a, b)
			out[i+j].Add(out[i+j], t)
		}
	}
	width := int64(min(len(o.limbs), len(other.limbs)))
	bound := new(big.Int).Mul(o.limbMaxAbs, other.limbMaxAbs)
	bound.Mul(bound, big.NewInt(width))
	return &OverflowInt{limbs: out, limbMaxAbs: bound}
}

// Value evaluates the limb vector at base 2^limbBits.
func (o *OverflowInt) Value(limbBits int) *big.Int {
	v := new(big.Int)
	for i := len(o.limbs) - 1; i >= 0; i-- {
		v.Lsh(v, uint(limbBits))
		v.Add(v, o.limbs[i])
	}
	return v
}

// CalculateCarries returns the signed carry sequence c such that
// limb_i + c_{i-1} - c_i * 2^limbBits = 0 for every i. When the represented
// value is zero the final carry closes to zero, which makes the polynomial
// identity expr - carryShift = 0 hold over F once every carry is
// range-checked against the soundness budget.
func (o *OverflowInt) CalculateCarries(limbBits int) ([]*big.Int, error) {
	if limbBits < 1 || limbBits > 16 {
		return nil, fmt.Errorf("limb width %d out of range [1, 16]", limbBits)
	}
	carries := make([]*big.Int, len(o.limbs))
	carry := new(big.Int)
	for i, l := range o.limbs {
		carry.Add(carry, l)
		// Floor division keeps the carry exact for negative sums.
		carry = floorDiv(carry, limbBits)
		carries[i] = new(big.Int).Set(carry)
	}
	if carry.Sign() != 0 {
		return nil, fmt.Errorf("residual carry %s: limb vector does not represent zero", carry)
	}
	return carries, nil
}

// CheckCarryBounds verifies that carries extracted from this vector respect
// the soundness budget: (carryMinAbs + carryMax) * 2^limbBits < 2^SoundnessBudgetBits.
func (o *OverflowInt) CheckCarryBounds(limbBits int) error {
	// Any carry is bounded by limbMaxAbs / 2^limbBits + 1 in magnitude.
	carryBound := new(big.Int).Rsh(o.limbMaxAbs, uint(limbBits))
	carryBound.Add(carryBound, big.NewInt(1))
	// Symmetric bound: min-abs and max coincide.
	budget := new(big.Int).Lsh(new(big.Int).Add(carryBound, carryBound), uint(limbBits))
	limit := new(big.Int).Lsh(big.NewInt(1), SoundnessBudgetBits)
	if budget.Cmp(limit) >= 0 {
		return fmt.Errorf("carry budget %s exceeds 2^%d", budget, SoundnessBudgetBits)
	}
	return nil
}

// floorDiv computes floor(v / 2^bits) for possibly negative v.
func floorDiv(v *big.Int, bits int) *big.Int {
	d := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	q, r := new(big.Int).QuoRem(v, d, new(big.Int))
	if r.Sign() < 0 {
		q.Sub(q, big.NewInt(1))
	}
	return q
}
