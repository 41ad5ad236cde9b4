// Package memory implements the trace-oriented memory subsystem: the
// timestamped read/write controller, the offline-checker witness, the access
// adapters reconciling wide accesses with the chunk granularity, and the
// boundary Merkle commitments over the equipartition.
package memory

import "fmt"

const (
	// Chunk is the memory Merkle leaf width: an aligned run of Chunk cells
	// is one block, the unit of Merkleization.
	Chunk = 8

	// PublicValuesAddressSpaceOffset locates the public-values region:
	// its address space is PublicValuesAddressSpaceOffset + ASOffset.
	PublicValuesAddressSpaceOffset = 2
)

// Config shapes the memory AIRs and range-checker widths. It mirrors the
// memory_config block of the VM configuration.
type Config struct {
	// ASHeight is the number of address-space selector bits in the Merkle
	// tree.
	ASHeight int

	// PointerMaxBits bounds every pointer; pointers are range-checked
	// against it.
	PointerMaxBits int

	// ClkMaxBits bounds the timestamp so that cur - prev - 1 stays
	// expressible in F. Both operands of the strict-less-than argument
	// must be below 2^ClkMaxBits.
	ClkMaxBits int

	// Decomp is the limb width of range-check decompositions.
	Decomp int

	// MaxAccessAdapterN is the widest access adapter chip (a power of two).
	MaxAccessAdapterN int
}

// DefaultConfig returns the canonical memory shape.
func DefaultConfig() Config {
	return Config{
		ASHeight:          3,
		PointerMaxBits:    29,
		ClkMaxBits:        29,
		Decomp:            17,
		MaxAccessAdapterN: 32,
	}
}

// Validate checks the numeric relationships between the configured widths.
func (c Config) Validate() error {
	if c.ASHeight < 1 || c.ASHeight > 8 {
		return fmt.Errorf("as_height %d out of range [1, 8]", c.ASHeight)
	}
	if c.PointerMaxBits < Chunk || c.PointerMaxBits > 29 {
		return fmt.Errorf("pointer_max_bits %d out of range [%d, 29]", c.PointerMaxBits, Chunk)
	}
	if c.ClkMaxBits < 1 || c.ClkMaxBits > 29 {
		return fmt.Errorf("clk_max_bits %d out of range [1, 29]", c.ClkMaxBits)
	}
	if c.Decomp < 1 || c.Decomp > 24 {
		return fmt.Errorf("decomp %d out of range [1, 24]", c.Decomp)
	}
	if c.MaxAccessAdapterN < 2 || c.MaxAccessAdapterN&(c.MaxAccessAdapterN-1) != 0 {
		return fmt.Errorf("max_access_adapter_n %d must be a power of two >= 2", c.MaxAccessAdapterN)
	}
	return nil
}

// Dimensions derives the Merkle tree geometry: the tree has height
// ASHeight + AddressHeight, the upper ASHeight bits select the address space
// (offset by ASOffset), the lower AddressHeight bits select the block.
type Dimensions struct {
	ASHeight      int
	AddressHeight int
	ASOffset      uint32
}

// Dimensions derives the tree geometry from the config.
func (c Config) Dimensions() Dimensions {
	return Dimensions{
		ASHeight:      c.ASHeight,
		AddressHeight: c.PointerMaxBits - chunkBits,
		ASOffset:      1,
	}
}

const chunkBits = 3 // log2(Chunk)

// Height is the total Merkle tree height.
func (d Dimensions) Height() int {
	return d.ASHeight + d.AddressHeight
}

// PublicValuesAddressSpace returns the address space holding the
// user-declared public values.
func (d Dimensions) PublicValuesAddressSpace() uint32 {
	return PublicValuesAddressSpaceOffset + d.ASOffset
}

// LeafIndex maps (addressSpace, blockLabel) to the global leaf index.
func (d Dimensions) LeafIndex(space, label uint32) (uint64, error) {
	if space < d.ASOffset || space >= d.ASOffset+1<<d.ASHeight {
		return 0, fmt.Errorf("address space %d outside [%d, %d)", space, d.ASOffset, d.ASOffset+1<<d.ASHeight)
	}
	if label >= 1<<d.AddressHeight {
		return 0, fmt.Errorf("block label %d exceeds address height %d", label, d.AddressHeight)
	}
	return uint64(space-d.ASOffset)<<d.AddressHeight | uint64(label), nil
}
