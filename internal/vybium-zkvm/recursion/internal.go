package recursion

import (
	"fmt"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// InternalVerifier aggregates leaf or internal proofs. On top of the
// connector chain it asserts that all children were produced by the same
// leaf circuit, carrying that commitment upward for the root to expose.
type InternalVerifier struct {
	engine  StarkEngine
	childVK *VerifyingKey
}

// InternalOutput is the internal circuit's public output.
type InternalOutput struct {
	Connector Connector

	// LeafVerifierCommit is the chained circuit commitment of the children.
	LeafVerifierCommit poseidon2.Digest

	// PublicValuesCommit passes through from the terminating child.
	PublicValuesCommit poseidon2.Digest
}

// InternalChild is one child of the internal layer: its proof plus the
// outputs the child circuit exposed.
type InternalChild struct {
	Proof *Proof

	// PublicValuesCommit is nonzero only on the terminating child.
	PublicValuesCommit poseidon2.Digest
}

// NewInternalVerifier builds an internal verifier over one child circuit.
func NewInternalVerifier(engine StarkEngine, childVK *VerifyingKey) (*InternalVerifier, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if childVK == nil {
		return nil, fmt.Errorf("verifying key cannot be nil")
	}
	return &InternalVerifier{engine: engine, childVK: childVK}, nil
}

// Verify checks the children, chains connectors and the leaf circuit
// commitment, and forwards the public-values commitment of the terminating
// child.
func (iv *InternalVerifier) Verify(children []*InternalChild) (*InternalOutput, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("empty child batch")
	}
	var agg Connector
	var leafCommit poseidon2.Digest
	out := &InternalOutput{}

	for i, child := range children {
		if err := iv.engine.VerifyChildProof(iv.childVK, child.Proof); err != nil {
			return nil, fmt.Errorf("child proof %d: %w", i, err)
		}
		if i == 0 {
			leafCommit = child.Proof.CircuitCommit
		} else if !leafCommit.Equal(&child.Proof.CircuitCommit) {
			return nil, fmt.Errorf("child proof %d was produced by a different circuit", i)
		}
		if err := chainConnectors(&agg, child.Proof.Connector, i); err != nil {
			return nil, err
		}
		if !child.PublicValuesCommit.IsZero() {
			if i != len(children)-1 {
				return nil, fmt.Errorf("child proof %d exposes public values before the end of the chain", i)
			}
			out.PublicValuesCommit = child.PublicValuesCommit
		}
	}
	if agg.IsTerminate && out.PublicValuesCommit.IsZero() {
		return nil, fmt.Errorf("terminated chain without a public-values commitment")
	}

	out.Connector = agg
	out.LeafVerifierCommit = leafCommit
	return out, nil
}
