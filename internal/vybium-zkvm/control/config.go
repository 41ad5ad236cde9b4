// Package control drives segmented program execution: it owns the VM
// configuration, the segmentation loop that splits a run into provable
// segments, and per-segment trace generation.
package control

import (
	"fmt"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
)

// VmConfig configures one virtual machine instance.
type VmConfig struct {
	// MaxConstraintDegree bounds the AIR degree the prover supports.
	MaxConstraintDegree int

	// ContinuationEnabled selects persistent memory with Merkle-committed
	// boundaries. Volatile runs must fit a single segment.
	ContinuationEnabled bool

	// Memory is the address-space shape.
	Memory memory.Config

	// NumPublicValues is the size of the user public-values space.
	NumPublicValues int

	// MaxSegmentLen caps the instruction count of one segment.
	MaxSegmentLen int

	// MaxSegmentCells caps the memory cells one segment may access. The
	// segmentation loop seals on whichever cap is hit first, so memory
	// heavy instructions cannot blow up the trace height.
	MaxSegmentCells uint64

	// CollectMetrics enables per-opcode execution counters.
	CollectMetrics bool
}

// DefaultVmConfig returns the canonical configuration.
func DefaultVmConfig() VmConfig {
	return VmConfig{
		MaxConstraintDegree: 4,
		ContinuationEnabled: true,
		Memory:              memory.DefaultConfig(),
		NumPublicValues:     32,
		MaxSegmentLen:       1 << 22,
		MaxSegmentCells:     1 << 25,
		CollectMetrics:      false,
	}
}

// Validate checks the configuration for internal consistency.
func (c VmConfig) Validate() error {
	if c.MaxConstraintDegree < 2 {
		return fmt.Errorf("max constraint degree %d below the transition minimum", c.MaxConstraintDegree)
	}
	if c.NumPublicValues <= 0 {
		return fmt.Errorf("public value count must be positive, got %d", c.NumPublicValues)
	}
	if c.MaxSegmentLen <= 0 {
		return fmt.Errorf("max segment length must be positive, got %d", c.MaxSegmentLen)
	}
	if c.MaxSegmentCells == 0 {
		return fmt.Errorf("max segment cells must be positive")
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory config: %w", err)
	}
	return nil
}

// WithContinuations toggles continuation support.
func (c VmConfig) WithContinuations(enabled bool) VmConfig {
	c.ContinuationEnabled = enabled
	return c
}

// WithMaxSegmentLen overrides the segment cap.
func (c VmConfig) WithMaxSegmentLen(n int) VmConfig {
	c.MaxSegmentLen = n
	return c
}

// WithPublicValues overrides the public-values count.
func (c VmConfig) WithPublicValues(n int) VmConfig {
	c.NumPublicValues = n
	return c
}

// WithMaxSegmentCells overrides the per-segment memory cell cap.
func (c VmConfig) WithMaxSegmentCells(n uint64) VmConfig {
	c.MaxSegmentCells = n
	return c
}

// WithMetrics toggles per-opcode execution counters.
func (c VmConfig) WithMetrics(enabled bool) VmConfig {
	c.CollectMetrics = enabled
	return c
}
