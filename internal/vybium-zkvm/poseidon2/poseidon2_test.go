package poseidon2

import (
	"testing"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"github.com/stretchr/testify/require"
)

func TestPermuteIsDeterministic(t *testing.T) {
	p := NewPermutation()

	var a, b [Width]fr.Element
	for i := range a {
		a[i] = fr.NewElement(uint64(i + 1))
		b[i] = fr.NewElement(uint64(i + 1))
	}
	p.Permute(&a)
	p.Permute(&b)
	for i := range a {
		require.True(t, a[i].Equal(&b[i]))
	}
}

func TestPermuteChangesState(t *testing.T) {
	p := NewPermutation()

	var s [Width]fr.Element
	p.Permute(&s)
	allZero := true
	for i := range s {
		if !s[i].IsZero() {
			allZero = false
		}
	}
	require.False(t, allZero, "permutation of the zero state must not be zero")
}

func TestCompressOrderSensitivity(t *testing.T) {
	p := NewPermutation()

	var l, r Digest
	l[0] = fr.NewElement(1)
	r[0] = fr.NewElement(2)

	lr := p.Compress(l, r)
	rl := p.Compress(r, l)
	require.False(t, lr.Equal(&rl), "compression must depend on child order")
}

func TestHashVarlen(t *testing.T) {
	p := NewPermutation()

	short := []fr.Element{fr.NewElement(7)}
	long := make([]fr.Element, DigestLen+1)
	long[0] = fr.NewElement(7)

	h1 := p.HashVarlen(short)
	h2 := p.HashVarlen(long)
	require.False(t, h1.Equal(&h2), "inputs of different length must not collide trivially")

	h3 := p.HashVarlen(short)
	require.True(t, h1.Equal(&h3))
}

func TestDigestEqual(t *testing.T) {
	var a, b Digest
	require.True(t, a.Equal(&b))
	require.True(t, a.IsZero())
	b[3] = fr.NewElement(9)
	require.False(t, a.Equal(&b))
	require.False(t, b.IsZero())
}
