package memory

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// BoundaryRow is one touched block's entry in the boundary trace: the
// initial chunk entering the segment and the final chunk leaving it. In
// persistent mode each row sends the initial digest to and receives the
// final digest from the Merkle bus.
type BoundaryRow struct {
	Space uint32
	Label uint32

	InitialValues    [Chunk]fr.Element
	InitialTimestamp uint32
	FinalValues      [Chunk]fr.Element
	FinalTimestamp   uint32
}

// BoundaryRows emits one row per touched block, sorted by (space, label).
func (c *Controller) BoundaryRows() []BoundaryRow {
	blocks := c.TouchedBlocks()
	rows := make([]BoundaryRow, len(blocks))
	for i, b := range blocks {
		row := BoundaryRow{
			Space:         b.Space,
			Label:         b.Pointer,
			InitialValues: c.InitialBlock(b.Space, b.Pointer),
			FinalValues:   c.FinalBlock(b.Space, b.Pointer),
		}
		for j := 0; j < Chunk; j++ {
			ts := c.cells[cellKey{b.Space, b.Pointer*Chunk + uint32(j)}].timestamp
			if ts > row.FinalTimestamp {
				row.FinalTimestamp = ts
			}
		}
		rows[i] = row
	}
	return rows
}

// FinalMerkleTree folds the final equipartition into a fresh tree and
// returns it. Persistent mode exposes its root as the segment's final root.
func (c *Controller) FinalMerkleTree(h *poseidon2.Permutation) (*MerkleTree, error) {
	mt := NewMerkleTree(h, c.dims)
	for _, b := range c.TouchedBlocks() {
		if err := mt.SetBlock(b.Space, b.Pointer, c.FinalBlock(b.Space, b.Pointer)); err != nil {
			return nil, err
		}
	}
	return mt, nil
}

// InitialMerkleTree folds the initial image into a fresh tree.
func (c *Controller) InitialMerkleTree(h *poseidon2.Permutation) (*MerkleTree, error) {
	mt := NewMerkleTree(h, c.dims)
	seen := make(map[Address]struct{})
	for k := range c.initial {
		a := Address{Space: k.space, Pointer: k.pointer / Chunk}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		if err := mt.SetBlock(a.Space, a.Pointer, c.InitialBlock(a.Space, a.Pointer)); err != nil {
			return nil, err
		}
	}
	return mt, nil
}

// CheckVolatileBoundary is the volatile-mode boundary argument: over the
// width-1 event stream, the multiset of previous timestamps must equal the
// multiset of current timestamps shifted by the per-address first and last
// accesses. Concretely: every event's (prev, cur) pair chains, so the
// multiset {prev} u {last-per-address} equals {cur} u {first-per-address}.
// A cheaper equivalent checked here: per address, prev timestamps form a
// permutation of the current timestamps minus the last plus the initial 0.
func CheckVolatileBoundary(events []CellAccess) error {
	prevCount := make(map[uint64]int)
	curCount := make(map[uint64]int)
	for _, ev := range events {
		prevCount[uint64(ev.PrevTimestamp)]++
		curCount[uint64(ev.Timestamp)]++
	}
	// Each current timestamp is unique; each prev either matches an earlier
	// cur of the same address or is 0 (fresh cell). Verify no prev refers
	// to a timestamp never produced.
	for ts, n := range prevCount {
		if ts == 0 {
			continue
		}
		if curCount[ts] < n {
			return fmt.Errorf("previous timestamp %d referenced %d times but produced %d times", ts, n, curCount[ts])
		}
	}
	return nil
}
