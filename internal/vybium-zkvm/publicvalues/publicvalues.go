// Package publicvalues extracts and verifies the user public-values
// commitment. The user's public values live in a dedicated address space of
// the final memory tree; their commitment is the root of that subtree, and
// the proof is the sibling path tying it into the final memory root.
package publicvalues

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// RootProof ties the public-values commitment into the final memory root.
type RootProof struct {
	// PublicValuesCommit is the root of the public-values subtree.
	PublicValuesCommit poseidon2.Digest

	// SiblingPath runs from the subtree node up to the memory root.
	SiblingPath []memory.PathStep
}

// subtreeShape validates num and returns the subtree height and node index.
func subtreeShape(dims memory.Dimensions, num int) (level int, index uint64, err error) {
	if num <= 0 || num%memory.Chunk != 0 {
		return 0, 0, fmt.Errorf("public value count %d is not a multiple of %d", num, memory.Chunk)
	}
	blocks := num / memory.Chunk
	if blocks&(blocks-1) != 0 {
		return 0, 0, fmt.Errorf("public value block count %d is not a power of two", blocks)
	}
	for blocks > 1 {
		blocks >>= 1
		level++
	}
	if level > dims.AddressHeight {
		return 0, 0, fmt.Errorf("public values exceed the address space")
	}
	first, err := dims.LeafIndex(dims.PublicValuesAddressSpace(), 0)
	if err != nil {
		return 0, 0, err
	}
	return level, first >> uint(level), nil
}

// Extract pulls the commitment and its sibling path out of the final
// memory tree.
func Extract(tree *memory.MerkleTree, dims memory.Dimensions, num int) (*RootProof, error) {
	level, index, err := subtreeShape(dims, num)
	if err != nil {
		return nil, err
	}
	node, steps, err := tree.PathFromNode(level, index)
	if err != nil {
		return nil, err
	}
	return &RootProof{PublicValuesCommit: node, SiblingPath: steps}, nil
}

// Verify folds the commitment up the sibling path and checks both the
// resulting root and the path's position: the step bits must spell the
// public-values subtree location, so a valid-looking path for a different
// subtree is rejected.
func Verify(h *poseidon2.Permutation, proof *RootProof, root poseidon2.Digest, dims memory.Dimensions, num int) error {
	level, index, err := subtreeShape(dims, num)
	if err != nil {
		return err
	}
	if len(proof.SiblingPath) != dims.Height()-level {
		return fmt.Errorf("sibling path has %d steps, want %d", len(proof.SiblingPath), dims.Height()-level)
	}
	for i, step := range proof.SiblingPath {
		if step.Bit != (index>>uint(i)&1 == 1) {
			return fmt.Errorf("sibling path step %d addresses the wrong subtree", i)
		}
	}
	if !memory.VerifyPath(h, proof.PublicValuesCommit, proof.SiblingPath, root) {
		return fmt.Errorf("public values commitment does not fold to the memory root")
	}
	return nil
}

// Commit computes the subtree root of an explicit value list, padding with
// zeros to the declared count. It must agree with the extracted commitment
// whenever the final memory holds the same values.
func Commit(h *poseidon2.Permutation, values []fr.Element, num int) (poseidon2.Digest, error) {
	if len(values) > num {
		return poseidon2.Digest{}, fmt.Errorf("%d values exceed the declared count %d", len(values), num)
	}
	if num <= 0 || num%memory.Chunk != 0 {
		return poseidon2.Digest{}, fmt.Errorf("public value count %d is not a multiple of %d", num, memory.Chunk)
	}
	blocks := num / memory.Chunk
	if blocks&(blocks-1) != 0 {
		return poseidon2.Digest{}, fmt.Errorf("public value block count %d is not a power of two", blocks)
	}

	layer := make([]poseidon2.Digest, blocks)
	for b := 0; b < blocks; b++ {
		var chunk [memory.Chunk]fr.Element
		for i := 0; i < memory.Chunk; i++ {
			if idx := b*memory.Chunk + i; idx < len(values) {
				chunk[i] = values[idx]
			}
		}
		layer[b] = h.HashChunk(chunk)
	}
	for len(layer) > 1 {
		next := make([]poseidon2.Digest, len(layer)/2)
		for i := range next {
			next[i] = h.Compress(layer[2*i], layer[2*i+1])
		}
		layer = next
	}
	return layer[0], nil
}
