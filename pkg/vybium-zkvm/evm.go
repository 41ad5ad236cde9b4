package vybiumzkvm

import (
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/outer"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/recursion"
)

// OuterScalar is a scalar of the pairing-friendly outer curve.
type OuterScalar = bn254fr.Element

// NumAccumulatorSlots is the number of KZG accumulator scalars leading an
// outer instance.
const NumAccumulatorSlots = outer.NumAccumulatorSlots

// Aggregation layer re-exports. The internal layer folds batches of leaf
// or internal proofs; the root layer compresses the surviving digests into
// outer-curve scalars.
type (
	InternalVerifier = recursion.InternalVerifier
	InternalChild    = recursion.InternalChild
	InternalOutput   = recursion.InternalOutput
	RootVerifier     = recursion.RootVerifier
	RootOutput       = recursion.RootOutput
)

// NewInternalVerifier builds an aggregation verifier over one child circuit.
func NewInternalVerifier(engine StarkEngine, childVK *VerifyingKey) (*InternalVerifier, error) {
	iv, err := recursion.NewInternalVerifier(engine, childVK)
	if err != nil {
		return nil, vmErr(ErrInvalidInput, "internal verifier", err)
	}
	return iv, nil
}

// NewRootVerifier builds the final compression verifier.
func NewRootVerifier(engine StarkEngine, internalVK *VerifyingKey) (*RootVerifier, error) {
	rv, err := recursion.NewRootVerifier(engine, internalVK)
	if err != nil {
		return nil, vmErr(ErrInvalidInput, "root verifier", err)
	}
	return rv, nil
}

// NewEvmInstance assembles the on-chain instance from the KZG accumulator
// and the root verifier output, with one user public value byte per slot.
func NewEvmInstance(acc [NumAccumulatorSlots]OuterScalar, root *RootOutput, userValues []byte) (*EvmInstance, error) {
	inst, err := outer.NewInstance(acc, root, userValues)
	if err != nil {
		return nil, vmErr(ErrInvalidInput, "outer instance", err)
	}
	return inst, nil
}
