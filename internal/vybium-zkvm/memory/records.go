package memory

import (
	fr "github.com/consensys/gnark-crypto/field/koalabear"
)

// RecordID is an opaque handle into the controller's record arena. The arena
// is append-only during one segment and consumed by trace generation at
// segment close; the arena is the record's single owner.
type RecordID int

// ImmediateRecord marks an address-space-0 read, which touches no memory.
const ImmediateRecord RecordID = -1

// Address is a (addressSpace, pointer) pair. Address space 0 denotes
// immediates and is non-writable.
type Address struct {
	Space   uint32
	Pointer uint32
}

// AccessRecord is one read or write of Len consecutive cells starting at
// Address, occupying timestamps [Timestamp, Timestamp+Len). The previous
// values and timestamps are the offline witness the replay layer
// materializes.
type AccessRecord struct {
	Address   Address
	Timestamp uint32
	IsWrite   bool

	// Values are the cells as seen by the instruction: the data read, or
	// the data written.
	Values []fr.Element

	// PrevValues and PrevTimestamps are the per-cell state being replaced.
	PrevValues     []fr.Element
	PrevTimestamps []uint32
}

// Len returns the access width in cells.
func (r *AccessRecord) Len() int { return len(r.Values) }

// CellAccess is a width-1 event, the canonical stream the offline checker
// operates on. Adapters decompose every wider record into these.
type CellAccess struct {
	Space         uint32
	Pointer       uint32
	Timestamp     uint32
	IsWrite       bool
	Value         fr.Element
	PrevValue     fr.Element
	PrevTimestamp uint32
}
