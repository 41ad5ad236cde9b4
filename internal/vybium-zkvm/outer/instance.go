// Package outer packs the root proof's public instance for a pairing-based
// outer SNARK. The instance is a fixed slot layout of Bn254 scalars; the
// calldata encoding feeds a Solidity verifier and the fallback encoding
// matches the generic outer-SNARK verifier ABI.
package outer

import (
	"encoding/binary"
	"fmt"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/recursion"
)

// NumAccumulatorSlots is the number of KZG accumulator scalars leading the
// instance.
const NumAccumulatorSlots = 12

// Slot indices of the commitment scalars.
const (
	AppExeCommitSlot = NumAccumulatorSlots
	AppVmCommitSlot  = NumAccumulatorSlots + 1
	UserValuesOffset = NumAccumulatorSlots + 2
)

// Instance is the outer proof's public input vector.
type Instance struct {
	// Accumulator holds the KZG pairing accumulator limbs.
	Accumulator [NumAccumulatorSlots]bn254fr.Element

	AppExeCommit bn254fr.Element
	AppVmCommit  bn254fr.Element

	// UserPublicValues occupy one byte per slot.
	UserPublicValues []byte
}

// NewInstance assembles the instance from the root output and the raw user
// public value bytes.
func NewInstance(acc [NumAccumulatorSlots]bn254fr.Element, root *recursion.RootOutput, userValues []byte) (*Instance, error) {
	if root == nil {
		return nil, fmt.Errorf("root output cannot be nil")
	}
	return &Instance{
		Accumulator:      acc,
		AppExeCommit:     root.AppExeCommit,
		AppVmCommit:      root.AppVmCommit,
		UserPublicValues: append([]byte(nil), userValues...),
	}, nil
}

// NumSlots returns the total slot count.
func (inst *Instance) NumSlots() int {
	return UserValuesOffset + len(inst.UserPublicValues)
}

// Slots lays the instance out in slot order. Each user byte sits in the
// least-significant byte of its own scalar.
func (inst *Instance) Slots() []bn254fr.Element {
	slots := make([]bn254fr.Element, 0, inst.NumSlots())
	slots = append(slots, inst.Accumulator[:]...)
	slots = append(slots, inst.AppExeCommit, inst.AppVmCommit)
	for _, b := range inst.UserPublicValues {
		var s bn254fr.Element
		s.SetUint64(uint64(b))
		slots = append(slots, s)
	}
	return slots
}

// Calldata concatenates the big-endian bytes of every slot in order.
func (inst *Instance) Calldata() []byte {
	slots := inst.Slots()
	out := make([]byte, 0, len(slots)*bn254fr.Bytes)
	for i := range slots {
		b := slots[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// Fallback prefixes the calldata with the big-endian slot count, matching
// the generic verifier's ABI.
func (inst *Instance) Fallback() []byte {
	out := make([]byte, 4, 4+inst.NumSlots()*bn254fr.Bytes)
	binary.BigEndian.PutUint32(out, uint32(inst.NumSlots()))
	return append(out, inst.Calldata()...)
}

// KeccakDigest is the Keccak-256 hash of the calldata encoding; the
// on-chain verifier binds the instance through it.
func (inst *Instance) KeccakDigest() [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(inst.Calldata())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
