package arith

import (
	"math/big"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"github.com/consensys/gnark-crypto/field/koalabear/extensions"
)

// Ext4 is the degree-4 extension of F over which FRI operates. Arithmetic
// (add, sub, mul, inverse via the norm map) comes from gnark-crypto's tower;
// this file adds the exponentiation and Frobenius maps the verifier circuits
// need.
type Ext4 = extensions.E4

// Ext4One returns the multiplicative identity.
func Ext4One() Ext4 {
	var one Ext4
	one.SetOne()
	return one
}

// Ext4FromBase embeds a base-field element into the extension.
func Ext4FromBase(x fr.Element) Ext4 {
	var e Ext4
	e.B0.A0 = x
	return e
}

// Ext4Exp computes a^e by square-and-multiply.
func Ext4Exp(a Ext4, e *big.Int) Ext4 {
	res := Ext4One()
	if e.Sign() == 0 {
		return res
	}
	for i := e.BitLen() - 1; i >= 0; i-- {
		res.Mul(&res, &res)
		if e.Bit(i) == 1 {
			res.Mul(&res, &a)
		}
	}
	return res
}

// Ext4Frobenius applies the Frobenius endomorphism x -> x^p. The
// characteristic is 31 bits, so plain exponentiation is cheap and avoids
// hardcoding tower-specific twist constants.
func Ext4Frobenius(a Ext4) Ext4 {
	return Ext4Exp(a, fr.Modulus())
}
