package lookup

import (
	"fmt"
	"sync/atomic"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

// BitwiseOp selects which byte-wise operation a sender queries.
type BitwiseOp uint8

const (
	BitwiseXor BitwiseOp = iota
	BitwiseAnd
	BitwiseOr
	numBitwiseOps
)

// BitwiseLookup is the precomputed table of byte-operation triples
// (x, y, x op y) for all x, y < 2^bits. Senders submit a pair (x, y) with an
// operation selector; the AIR receives the triple with the sender's
// multiplicity.
type BitwiseLookup struct {
	bus    BusIndex
	bits   int
	counts []atomic.Uint32
	frozen atomic.Bool
}

// NewBitwiseLookup creates the table for operand width bits (canonically 8).
func NewBitwiseLookup(bus BusIndex, bits int) (*BitwiseLookup, error) {
	if bits < 1 || bits > 8 {
		return nil, fmt.Errorf("bitwise table operand width %d out of range [1, 8]", bits)
	}
	n := 1 << bits
	return &BitwiseLookup{
		bus:    bus,
		bits:   bits,
		counts: make([]atomic.Uint32, int(numBitwiseOps)*n*n),
	}, nil
}

// Bus returns the interaction bus index of the table.
func (bl *BitwiseLookup) Bus() BusIndex {
	return bl.bus
}

// OperandBits returns the operand width of the table.
func (bl *BitwiseLookup) OperandBits() int {
	return bl.bits
}

func (bl *BitwiseLookup) index(op BitwiseOp, x, y uint32) int {
	n := 1 << bl.bits
	return int(op)*n*n + int(x)*n + int(y)
}

// AddPair submits one (x, y) query for op and returns the table's result.
func (bl *BitwiseLookup) AddPair(op BitwiseOp, x, y uint32) (uint32, error) {
	if bl.frozen.Load() {
		return 0, fmt.Errorf("bitwise table is frozen")
	}
	if op >= numBitwiseOps {
		return 0, fmt.Errorf("unknown bitwise operation %d", op)
	}
	if x >= 1<<bl.bits || y >= 1<<bl.bits {
		return 0, fmt.Errorf("operands (%d, %d) exceed %d bits", x, y, bl.bits)
	}
	bl.counts[bl.index(op, x, y)].Add(1)
	switch op {
	case BitwiseXor:
		return x ^ y, nil
	case BitwiseAnd:
		return x & y, nil
	default:
		return x | y, nil
	}
}

// Freeze stops further multiplicity updates.
func (bl *BitwiseLookup) Freeze() {
	bl.frozen.Store(true)
}

// Multiplicities materializes the committed multiplicity column, ordered by
// (op, x, y).
func (bl *BitwiseLookup) Multiplicities() []fr.Element {
	out := make([]fr.Element, len(bl.counts))
	for i := range bl.counts {
		out[i] = fr.NewElement(uint64(bl.counts[i].Load()))
	}
	return out
}
