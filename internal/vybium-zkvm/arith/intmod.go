// Package arith provides the field-element and limb arithmetic primitives
// shared by every constraint writer: fixed-modulus integers in a little-endian
// limb representation, overflow-tracked wide integers with carry extraction,
// and helpers over the degree-4 FRI extension field.
package arith

import (
	"fmt"
	"math/big"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

const (
	// DefaultLimbBits is the canonical limb width for modular executors.
	DefaultLimbBits = 8

	// DefaultNumLimbs is the canonical limb count for 256-bit moduli.
	DefaultNumLimbs = 32

	// FieldElementBits is the bit width of the native field F (KoalaBear).
	FieldElementBits = 31

	// SoundnessBudgetBits bounds the carry range of any overflow identity:
	// (carryMinAbs + carryMax) * 2^limbBits must stay below 2^SoundnessBudgetBits.
	SoundnessBudgetBits = 30
)

// Modulus describes a fixed compile-time modulus together with its limb
// representation. Instances are immutable and shared.
type Modulus struct {
	name     string
	prime    *big.Int
	numLimbs int
	limbBits int
}

// NewModulus creates a modulus descriptor. The limb geometry must be wide
// enough to hold the prime.
func NewModulus(name string, prime *big.Int, numLimbs, limbBits int) (*Modulus, error) {
	if prime == nil || prime.Sign() <= 0 {
		return nil, fmt.Errorf("modulus %q must be a positive integer", name)
	}
	if limbBits < 1 || limbBits > 16 {
		return nil, fmt.Errorf("limb width %d out of range [1, 16]", limbBits)
	}
	if numLimbs*limbBits < prime.BitLen() {
		return nil, fmt.Errorf("limb geometry %dx%d too small for %d-bit modulus %q",
			numLimbs, limbBits, prime.BitLen(), name)
	}
	return &Modulus{
		name:     name,
		prime:    new(big.Int).Set(prime),
		numLimbs: numLimbs,
		limbBits: limbBits,
	}, nil
}

func mustModulus(name, hexPrime string) *Modulus {
	p, ok := new(big.Int).SetString(hexPrime, 16)
	if !ok {
		panic("invalid modulus literal " + name)
	}
	m, err := NewModulus(name, p, DefaultNumLimbs, DefaultLimbBits)
	if err != nil {
		panic(err)
	}
	return m
}

// Common moduli used by the modular and curve executors.
var (
	// Secp256k1Coord is the secp256k1 base-field prime.
	Secp256k1Coord = mustModulus("secp256k1-coord",
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f")

	// Secp256k1Scalar is the secp256k1 scalar-field prime.
	Secp256k1Scalar = mustModulus("secp256k1-scalar",
		"fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")

	// Bn254Coord is the BN254 base-field prime used by the pairing line ops.
	Bn254Coord = mustModulus("bn254-coord",
		"30644e72e131a029b85045b68181585d97816a916871ca8d3c208c16d87cfd47")
)

// Name returns the descriptor's name.
func (m *Modulus) Name() string { return m.name }

// Prime returns a copy of the modulus value.
func (m *Modulus) Prime() *big.Int { return new(big.Int).Set(m.prime) }

// NumLimbs returns the limb count of the representation.
func (m *Modulus) NumLimbs() int { return m.numLimbs }

// LimbBits returns the limb width of the representation.
func (m *Modulus) LimbBits() int { return m.limbBits }

// IntMod is a modular integer with a fixed modulus and a little-endian limb
// representation. Values are kept reduced (each limb < 2^limbBits and the
// whole value < modulus) by every constructor and operation.
type IntMod struct {
	modulus *Modulus
	value   *big.Int
}

// NewIntMod creates the reduced representative of v under m.
func NewIntMod(m *Modulus, v *big.Int) *IntMod {
	r := new(big.Int).Mod(v, m.prime)
	return &IntMod{modulus: m, value: r}
}

// NewIntModFromLimbs assembles an IntMod from little-endian limb values.
func NewIntModFromLimbs(m *Modulus, limbs []uint32) (*IntMod, error) {
	if len(limbs) != m.numLimbs {
		return nil, fmt.Errorf("expected %d limbs, got %d", m.numLimbs, len(limbs))
	}
	v := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		if limbs[i] >= 1<<m.limbBits {
			return nil, fmt.Errorf("limb %d value %d exceeds %d bits", i, limbs[i], m.limbBits)
		}
		v.Lsh(v, uint(m.limbBits))
		v.Or(v, big.NewInt(int64(limbs[i])))
	}
	return NewIntMod(m, v), nil
}

// Modulus returns the descriptor of the value.
func (x *IntMod) Modulus() *Modulus { return x.modulus }

// BigInt returns a copy of the reduced value.
func (x *IntMod) BigInt() *big.Int { return new(big.Int).Set(x.value) }

// Limbs returns the little-endian limb decomposition of the reduced value.
func (x *IntMod) Limbs() []uint32 {
	limbs := make([]uint32, x.modulus.numLimbs)
	v := new(big.Int).Set(x.value)
	mask := big.NewInt(int64(1)<<x.modulus.limbBits - 1)
	t := new(big.Int)
	for i := range limbs {
		limbs[i] = uint32(t.And(v, mask).Uint64())
		v.Rsh(v, uint(x.modulus.limbBits))
	}
	return limbs
}

// FieldLimbs returns the limbs embedded into F, the form trace rows store.
func (x *IntMod) FieldLimbs() []fr.Element {
	limbs := x.Limbs()
	out := make([]fr.Element, len(limbs))
	for i, l := range limbs {
		out[i] = fr.NewElement(uint64(l))
	}
	return out
}

func (x *IntMod) sameModulus(y *IntMod) {
	if x.modulus != y.modulus {
		panic(fmt.Sprintf("mixed moduli %q and %q", x.modulus.name, y.modulus.name))
	}
}

// Add returns x + y mod p.
func (x *IntMod) Add(y *IntMod) *IntMod {
	x.sameModulus(y)
	return NewIntMod(x.modulus, new(big.Int).Add(x.value, y.value))
}

// Sub returns x - y mod p.
func (x *IntMod) Sub(y *IntMod) *IntMod {
	x.sameModulus(y)
	return NewIntMod(x.modulus, new(big.Int).Sub(x.value, y.value))
}

// Mul returns x * y mod p.
func (x *IntMod) Mul(y *IntMod) *IntMod {
	x.sameModulus(y)
	return NewIntMod(x.modulus, new(big.Int).Mul(x.value, y.value))
}

// Square returns x^2 mod p.
func (x *IntMod) Square() *IntMod {
	return x.Mul(x)
}

// Double returns 2x mod p.
func (x *IntMod) Double() *IntMod {
	return x.Add(x)
}

// Neg returns -x mod p.
func (x *IntMod) Neg() *IntMod {
	return NewIntMod(x.modulus, new(big.Int).Neg(x.value))
}

// Inverse returns x^-1 mod p, or nil when x is not a unit.
func (x *IntMod) Inverse() *IntMod {
	inv := new(big.Int).ModInverse(x.value, x.modulus.prime)
	if inv == nil {
		return nil
	}
	return &IntMod{modulus: x.modulus, value: inv}
}

// DivUnsafe returns x / y mod p. Division is defined only when y is a unit;
// calling it on a non-unit is a precondition violation and panics. The
// in-circuit counterpart of that violation must never verify.
func (x *IntMod) DivUnsafe(y *IntMod) *IntMod {
	x.sameModulus(y)
	inv := y.Inverse()
	if inv == nil {
		panic(fmt.Sprintf("division by non-unit under modulus %q", x.modulus.name))
	}
	return x.Mul(inv)
}

// Equal reports whether the reduced values agree.
func (x *IntMod) Equal(y *IntMod) bool {
	x.sameModulus(y)
	return x.value.Cmp(y.value) == 0
}

// IsZero reports whether the reduced value is zero.
func (x *IntMod) IsZero() bool {
	return x.value.Sign() == 0
}

// AssertReduced panics unless the value is fully reduced. Values built
// through this package always are; the check guards witness material coming
// from the hint stream.
func (x *IntMod) AssertReduced() {
	if x.value.Sign() < 0 || x.value.Cmp(x.modulus.prime) >= 0 {
		panic(fmt.Sprintf("unreduced value under modulus %q", x.modulus.name))
	}
}
