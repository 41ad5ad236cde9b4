// Package lookup implements the shared multiplicity-counted lookup tables
// used across the zkVM chips: the variable-bit-length range checker, the
// byte-wise bitwise-operation table, and the range-tuple checker.
//
// Each table is shared mutable state during trace generation: many chips
// increment its multiplicity counters concurrently, so the counters are
// atomic. The counters are frozen once the table's trace is committed.
package lookup

import (
	"fmt"
	"sync/atomic"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

// BusIndex identifies one logical interaction bus between chips. Senders emit
// (bus, fields, mult) and receivers (bus, fields, -mult); the proof engine
// checks the multiset sum is zero.
type BusIndex uint16

// VariableRangeChecker is a logically global table indexed by
// (value, bitLength). A sender declaring AddCount(v, k) asserts v < 2^k.
//
// The preprocessed trace enumerates every (v, k) pair with v < 2^k and
// k <= MaxBits; one multiplicity counter exists per pair. Row layout:
// row(v, k) holds the pair itself, the committed multiplicity column is
// produced by Multiplicities at commit time.
type VariableRangeChecker struct {
	bus     BusIndex
	maxBits int
	// counts[offset(k) + v] is the multiplicity of the pair (v, k).
	counts []atomic.Uint32
	frozen atomic.Bool
}

// NewVariableRangeChecker creates a range checker covering bit lengths
// 0..maxBits inclusive. maxBits above 24 would make the preprocessed table
// taller than the field allows for a single trace, so it is rejected.
func NewVariableRangeChecker(bus BusIndex, maxBits int) (*VariableRangeChecker, error) {
	if maxBits < 1 || maxBits > 24 {
		return nil, fmt.Errorf("range checker max bits %d out of range [1, 24]", maxBits)
	}
	size := 0
	for k := 0; k <= maxBits; k++ {
		size += 1 << k
	}
	return &VariableRangeChecker{
		bus:     bus,
		maxBits: maxBits,
		counts:  make([]atomic.Uint32, size),
	}, nil
}

// Bus returns the interaction bus index of the table.
func (rc *VariableRangeChecker) Bus() BusIndex {
	return rc.bus
}

// MaxBits returns the largest bit length the table covers.
func (rc *VariableRangeChecker) MaxBits() int {
	return rc.maxBits
}

func (rc *VariableRangeChecker) offset(k int) int {
	// sum of 2^i for i < k
	return (1 << k) - 1
}

// AddCount declares that v fits in k bits and bumps the (v, k) multiplicity.
// The declaration itself is checked here so that a malformed witness is
// caught at trace-generation time rather than at proving time.
func (rc *VariableRangeChecker) AddCount(v uint32, k int) error {
	if rc.frozen.Load() {
		return fmt.Errorf("range checker is frozen")
	}
	if k < 0 || k > rc.maxBits {
		return fmt.Errorf("bit length %d out of range [0, %d]", k, rc.maxBits)
	}
	if k < 32 && v >= 1<<k {
		return fmt.Errorf("value %d does not fit in %d bits", v, k)
	}
	rc.counts[rc.offset(k)+int(v)].Add(1)
	return nil
}

// CheckRange decomposes v into limbs of at most decompBits bits each and
// declares every limb to the table. This is the canonical way chips
// range-check quantities wider than the table's maximum bit length.
func (rc *VariableRangeChecker) CheckRange(v uint64, bits, decompBits int) error {
	if decompBits < 1 || decompBits > rc.maxBits {
		return fmt.Errorf("decomposition width %d out of range [1, %d]", decompBits, rc.maxBits)
	}
	if bits < 64 && v >= 1<<bits {
		return fmt.Errorf("value %d does not fit in %d bits", v, bits)
	}
	for bits > 0 {
		limbBits := decompBits
		if bits < decompBits {
			limbBits = bits
		}
		limb := uint32(v & ((1 << limbBits) - 1))
		if err := rc.AddCount(limb, limbBits); err != nil {
			return err
		}
		v >>= limbBits
		bits -= limbBits
	}
	if v != 0 {
		return fmt.Errorf("value has residual high bits after decomposition")
	}
	return nil
}

// Freeze stops further multiplicity updates. Called once the table's trace
// is about to be committed.
func (rc *VariableRangeChecker) Freeze() {
	rc.frozen.Store(true)
}

// Multiplicities materializes the committed multiplicity column. The row
// order is (k ascending, v ascending), matching the preprocessed pair
// enumeration.
func (rc *VariableRangeChecker) Multiplicities() []fr.Element {
	out := make([]fr.Element, len(rc.counts))
	for i := range rc.counts {
		out[i] = fr.NewElement(uint64(rc.counts[i].Load()))
	}
	return out
}

// Reset clears every counter and unfreezes the table. Used between segments
// in tests; production provers build a fresh checker per proof.
func (rc *VariableRangeChecker) Reset() {
	for i := range rc.counts {
		rc.counts[i].Store(0)
	}
	rc.frozen.Store(false)
}
