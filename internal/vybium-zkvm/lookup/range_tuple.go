package lookup

import (
	"fmt"
	"sync/atomic"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

// RangeTupleChecker checks that a tuple (x_0, ..., x_{n-1}) lies in the
// product of ranges [0, S_0) x ... x [0, S_{n-1}). The preprocessed trace
// enumerates the whole product set, so the product of the sizes bounds the
// table height and must stay below 2^24.
//
// The multiplication executors use a two-column instance (limb, carry) to
// range-check each output limb together with its carry in one interaction.
type RangeTupleChecker struct {
	bus    BusIndex
	sizes  []uint32
	counts []atomic.Uint32
	frozen atomic.Bool
}

// NewRangeTupleChecker creates a tuple checker for the given range sizes.
func NewRangeTupleChecker(bus BusIndex, sizes []uint32) (*RangeTupleChecker, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("range tuple checker needs at least one range")
	}
	height := uint64(1)
	for i, s := range sizes {
		if s == 0 {
			return nil, fmt.Errorf("range size %d is zero", i)
		}
		height *= uint64(s)
		if height > 1<<24 {
			return nil, fmt.Errorf("product of range sizes exceeds 2^24")
		}
	}
	return &RangeTupleChecker{
		bus:    bus,
		sizes:  append([]uint32(nil), sizes...),
		counts: make([]atomic.Uint32, height),
	}, nil
}

// Bus returns the interaction bus index of the table.
func (rt *RangeTupleChecker) Bus() BusIndex {
	return rt.bus
}

// Sizes returns the per-coordinate range sizes.
func (rt *RangeTupleChecker) Sizes() []uint32 {
	return rt.sizes
}

// AddCount declares one tuple and bumps its multiplicity.
func (rt *RangeTupleChecker) AddCount(tuple []uint32) error {
	if rt.frozen.Load() {
		return fmt.Errorf("range tuple checker is frozen")
	}
	if len(tuple) != len(rt.sizes) {
		return fmt.Errorf("tuple arity %d does not match table arity %d", len(tuple), len(rt.sizes))
	}
	idx := uint64(0)
	for i, v := range tuple {
		if v >= rt.sizes[i] {
			return fmt.Errorf("tuple coordinate %d value %d exceeds range size %d", i, v, rt.sizes[i])
		}
		idx = idx*uint64(rt.sizes[i]) + uint64(v)
	}
	rt.counts[idx].Add(1)
	return nil
}

// Freeze stops further multiplicity updates.
func (rt *RangeTupleChecker) Freeze() {
	rt.frozen.Store(true)
}

// Multiplicities materializes the committed multiplicity column in
// lexicographic tuple order.
func (rt *RangeTupleChecker) Multiplicities() []fr.Element {
	out := make([]fr.Element, len(rt.counts))
	for i := range rt.counts {
		out[i] = fr.NewElement(uint64(rt.counts[i].Load()))
	}
	return out
}
