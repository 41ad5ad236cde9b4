// Package poseidon2 implements the Poseidon2 permutation over the KoalaBear
// field and the digest / compression helpers built on it. It is the hash
// oracle behind the memory Merkle tree, the program commitment, and the
// public-values commitment.
//
// Round constants and the internal diagonal are generated deterministically
// from a domain-separation seed (SHA-256 in counter mode, reduced into the
// field), so no precomputed constant files are needed.
package poseidon2

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

const (
	// Width is the permutation state width t.
	Width = 16

	// DigestLen is the number of field elements in a digest. It equals the
	// memory Merkleization chunk size.
	DigestLen = 8

	// roundsFull is the number of full (external) rounds, split evenly
	// before and after the partial rounds.
	roundsFull = 8

	// roundsPartial is the number of partial (internal) rounds.
	roundsPartial = 20

	constantSeed = "vybium-zkvm/poseidon2/koalabear/v1"
)

// Digest is the output of the hash oracle: one Merkle node, one chunk hash.
type Digest [DigestLen]fr.Element

// IsZero reports whether every digest element is zero.
func (d *Digest) IsZero() bool {
	for i := range d {
		if !d[i].IsZero() {
			return false
		}
	}
	return true
}

// Equal reports element-wise equality of two digests.
func (d *Digest) Equal(other *Digest) bool {
	for i := range d {
		if !d[i].Equal(&other[i]) {
			return false
		}
	}
	return true
}

// Permutation is a fixed-parameter Poseidon2 permutation instance. It is
// safe for concurrent use; all state is read-only after construction.
type Permutation struct {
	externalConstants [roundsFull][Width]fr.Element
	internalConstants [roundsPartial]fr.Element
	internalDiag      [Width]fr.Element
}

var (
	defaultOnce sync.Once
	defaultPerm *Permutation
)

// NewPermutation returns the canonical permutation instance.
func NewPermutation() *Permutation {
	defaultOnce.Do(func() {
		defaultPerm = generatePermutation()
	})
	return defaultPerm
}

// generatePermutation derives all round constants from the seed.
func generatePermutation() *Permutation {
	p := &Permutation{}
	ctr := uint64(0)
	next := func() fr.Element {
		// 8 bytes of SHA-256(seed || counter) reduced into the field.
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], ctr)
		ctr++
		h := sha256.Sum256(append([]byte(constantSeed), buf[:]...))
		var e fr.Element
		e.SetUint64(binary.BigEndian.Uint64(h[:8]))
		return e
	}
	for r := 0; r < roundsFull; r++ {
		for i := 0; i < Width; i++ {
			p.externalConstants[r][i] = next()
		}
	}
	for r := 0; r < roundsPartial; r++ {
		p.internalConstants[r] = next()
	}
	for i := 0; i < Width; i++ {
		// The internal matrix is J + diag(v); v_i must avoid 0 and -1 so
		// the matrix stays invertible.
		d := next()
		var minusOne fr.Element
		minusOne.SetOne()
		minusOne.Neg(&minusOne)
		for d.IsZero() || d.Equal(&minusOne) {
			d = next()
		}
		p.internalDiag[i] = d
	}
	return p
}

// sbox is x -> x^3; 3 is coprime to p-1 for KoalaBear, so it permutes F.
func sbox(x *fr.Element) {
	var sq fr.Element
	sq.Square(x)
	x.Mul(&sq, x)
}

// matmulM4 applies the 4x4 block matrix [[2,3,1,1],[1,2,3,1],[1,1,2,3],[3,1,1,2]]
// to one block of four state elements.
func matmulM4(s []fr.Element) {
	var t0, t1, t2, t3, t4, t5, t6, t7 fr.Element
	t0.Add(&s[0], &s[1])
	t1.Add(&s[2], &s[3])
	t2.Double(&s[1])
	t2.Add(&t2, &t1)
	t3.Double(&s[3])
	t3.Add(&t3, &t0)
	t4.Double(&t1)
	t4.Double(&t4)
	t4.Add(&t4, &t3)
	t5.Double(&t0)
	t5.Double(&t5)
	t5.Add(&t5, &t2)
	t6.Add(&t3, &t5)
	t7.Add(&t2, &t4)
	s[0] = t6
	s[1] = t5
	s[2] = t7
	s[3] = t4
}

// matmulExternal applies the external linear layer: M4 on each block, then
// each block gains the sum of all blocks.
func (p *Permutation) matmulExternal(state *[Width]fr.Element) {
	for b := 0; b < Width; b += 4 {
		matmulM4(state[b : b+4])
	}
	var sums [4]fr.Element
	for i := 0; i < 4; i++ {
		sums[i] = state[i]
		for b := 4; b < Width; b += 4 {
			sums[i].Add(&sums[i], &state[b+i])
		}
	}
	for i := 0; i < Width; i++ {
		state[i].Add(&state[i], &sums[i%4])
	}
}

// matmulInternal applies the internal layer J + diag(v).
func (p *Permutation) matmulInternal(state *[Width]fr.Element) {
	var sum fr.Element
	sum = state[0]
	for i := 1; i < Width; i++ {
		sum.Add(&sum, &state[i])
	}
	for i := 0; i < Width; i++ {
		state[i].Mul(&state[i], &p.internalDiag[i])
		state[i].Add(&state[i], &sum)
	}
}

// Permute applies the Poseidon2 permutation to state in place.
func (p *Permutation) Permute(state *[Width]fr.Element) {
	half := roundsFull / 2

	p.matmulExternal(state)

	for r := 0; r < half; r++ {
		for i := 0; i < Width; i++ {
			state[i].Add(&state[i], &p.externalConstants[r][i])
		}
		for i := 0; i < Width; i++ {
			sbox(&state[i])
		}
		p.matmulExternal(state)
	}

	for r := 0; r < roundsPartial; r++ {
		state[0].Add(&state[0], &p.internalConstants[r])
		sbox(&state[0])
		p.matmulInternal(state)
	}

	for r := half; r < roundsFull; r++ {
		for i := 0; i < Width; i++ {
			state[i].Add(&state[i], &p.externalConstants[r][i])
		}
		for i := 0; i < Width; i++ {
			sbox(&state[i])
		}
		p.matmulExternal(state)
	}
}

// Compress is the two-to-one compression used for Merkle nodes: the
// truncated permutation of left || right with feed-forward of the left half.
func (p *Permutation) Compress(left, right Digest) Digest {
	var state [Width]fr.Element
	copy(state[:DigestLen], left[:])
	copy(state[DigestLen:], right[:])
	p.Permute(&state)
	var out Digest
	for i := 0; i < DigestLen; i++ {
		out[i].Add(&state[i], &left[i])
	}
	return out
}

// HashChunk hashes one chunk of DigestLen field elements into a leaf digest.
func (p *Permutation) HashChunk(chunk [DigestLen]fr.Element) Digest {
	var zero Digest
	return p.Compress(chunk, zero)
}

// HashVarlen absorbs an arbitrary-length slice of field elements at rate
// DigestLen and squeezes one digest. The final partial block is padded with
// a single one followed by zeros.
func (p *Permutation) HashVarlen(input []fr.Element) Digest {
	var state [Width]fr.Element
	absorb := func(block []fr.Element) {
		for i, v := range block {
			state[i].Add(&state[i], &v)
		}
		p.Permute(&state)
	}
	for len(input) >= DigestLen {
		absorb(input[:DigestLen])
		input = input[DigestLen:]
	}
	last := make([]fr.Element, DigestLen)
	copy(last, input)
	last[len(input)].SetOne()
	absorb(last)
	var out Digest
	copy(out[:], state[:DigestLen])
	return out
}
