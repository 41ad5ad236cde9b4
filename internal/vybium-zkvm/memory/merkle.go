package memory

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"
	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// MerkleTree commits to the equipartition: leaf i is the hash of block
// (space, label) with i = (space - asOffset) << addressHeight | label.
//
// The tree is built lazily and incrementally: touched blocks form a sparse
// set and only touched paths are materialized; every untouched subtree
// collapses to a precomputed zero digest for its height. Node children are
// index-based, the structure is acyclic.
type MerkleTree struct {
	h    *poseidon2.Permutation
	dims Dimensions

	// zero[l] is the digest of a fully-zero subtree of height l.
	zero []poseidon2.Digest

	leaves map[uint64][Chunk]fr.Element

	// sortedKeys caches the sorted leaf indices for subtree pruning;
	// invalidated on every SetBlock.
	sortedKeys []uint64

	// touchedSpaces tracks which address spaces hold any touched block;
	// the boundary chip and the public-values extraction iterate it.
	touchedSpaces *bitset.BitSet
}

// PathStep is one step of a sibling path: Bit encodes whether the current
// node is the right child at that height.
type PathStep struct {
	Bit     bool
	Sibling poseidon2.Digest
}

// NewMerkleTree creates an empty (all-zero) memory tree.
func NewMerkleTree(h *poseidon2.Permutation, dims Dimensions) *MerkleTree {
	height := dims.Height()
	zero := make([]poseidon2.Digest, height+1)
	zero[0] = h.HashChunk([Chunk]fr.Element{})
	for l := 1; l <= height; l++ {
		zero[l] = h.Compress(zero[l-1], zero[l-1])
	}
	return &MerkleTree{
		h:             h,
		dims:          dims,
		zero:          zero,
		leaves:        make(map[uint64][Chunk]fr.Element),
		touchedSpaces: bitset.New(uint(1) << dims.ASHeight),
	}
}

// SetBlock installs or overwrites the chunk of one block.
func (mt *MerkleTree) SetBlock(space, label uint32, chunk [Chunk]fr.Element) error {
	idx, err := mt.dims.LeafIndex(space, label)
	if err != nil {
		return err
	}
	mt.leaves[idx] = chunk
	mt.sortedKeys = nil
	mt.touchedSpaces.Set(uint(space - mt.dims.ASOffset))
	return nil
}

// TouchedSpaces returns the set of address spaces holding touched blocks.
func (mt *MerkleTree) TouchedSpaces() *bitset.BitSet {
	return mt.touchedSpaces
}

// nodeDigest materializes the digest of the node at (level, index), where
// level 0 is the leaf layer.
func (mt *MerkleTree) nodeDigest(level int, index uint64) poseidon2.Digest {
	if level == 0 {
		if chunk, ok := mt.leaves[index]; ok {
			return mt.h.HashChunk(chunk)
		}
		return mt.zero[0]
	}
	if !mt.subtreeTouched(level, index) {
		return mt.zero[level]
	}
	left := mt.nodeDigest(level-1, 2*index)
	right := mt.nodeDigest(level-1, 2*index+1)
	return mt.h.Compress(left, right)
}

// subtreeTouched reports whether any touched leaf lies under (level, index).
func (mt *MerkleTree) subtreeTouched(level int, index uint64) bool {
	if mt.sortedKeys == nil {
		mt.sortedKeys = make([]uint64, 0, len(mt.leaves))
		for leaf := range mt.leaves {
			mt.sortedKeys = append(mt.sortedKeys, leaf)
		}
		slices.Sort(mt.sortedKeys)
	}
	lo := index << uint(level)
	pos, _ := slices.BinarySearch(mt.sortedKeys, lo)
	return pos < len(mt.sortedKeys) && mt.sortedKeys[pos] < lo+1<<uint(level)
}

// Root returns the full-tree root.
func (mt *MerkleTree) Root() poseidon2.Digest {
	return mt.nodeDigest(mt.dims.Height(), 0)
}

// PathFromNode returns the digest of the node at (level, index) and the
// sibling path from it up to the root. Verifying the path is iteratively
// hashing the node with each sibling under the step's bit.
func (mt *MerkleTree) PathFromNode(level int, index uint64) (poseidon2.Digest, []PathStep, error) {
	height := mt.dims.Height()
	if level < 0 || level > height {
		return poseidon2.Digest{}, nil, fmt.Errorf("level %d outside [0, %d]", level, height)
	}
	if index >= 1<<uint(height-level) {
		return poseidon2.Digest{}, nil, fmt.Errorf("node index %d out of range at level %d", index, level)
	}
	node := mt.nodeDigest(level, index)
	steps := make([]PathStep, 0, height-level)
	for l := level; l < height; l++ {
		bit := index&1 == 1
		steps = append(steps, PathStep{
			Bit:     bit,
			Sibling: mt.nodeDigest(l, index^1),
		})
		index >>= 1
	}
	return node, steps, nil
}

// VerifyPath folds a node digest up a sibling path and reports whether the
// result equals root.
func VerifyPath(h *poseidon2.Permutation, node poseidon2.Digest, steps []PathStep, root poseidon2.Digest) bool {
	curr := node
	for _, s := range steps {
		if s.Bit {
			curr = h.Compress(s.Sibling, curr)
		} else {
			curr = h.Compress(curr, s.Sibling)
		}
	}
	return curr.Equal(&root)
}
