package recursion

import (
	"fmt"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/publicvalues"
)

// LeafVerifier verifies a contiguous batch of application segment proofs
// and re-emits their aggregated connector. When the batch closes the run it
// also ingests the user public-values root proof against the merged final
// memory root.
type LeafVerifier struct {
	engine StarkEngine
	appVK  *VerifyingKey
	hash   *poseidon2.Permutation

	dims            memory.Dimensions
	numPublicValues int
}

// LeafOutput is the leaf circuit's public output.
type LeafOutput struct {
	Connector Connector

	// PublicValuesCommit is set when the batch terminates the run.
	PublicValuesCommit poseidon2.Digest
}

// NewLeafVerifier builds a leaf verifier for one application circuit.
func NewLeafVerifier(engine StarkEngine, appVK *VerifyingKey, dims memory.Dimensions, numPublicValues int) (*LeafVerifier, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if appVK == nil {
		return nil, fmt.Errorf("verifying key cannot be nil")
	}
	return &LeafVerifier{
		engine:          engine,
		appVK:           appVK,
		hash:            poseidon2.NewPermutation(),
		dims:            dims,
		numPublicValues: numPublicValues,
	}, nil
}

// Verify checks each segment proof, chains the connectors, and -- when the
// last proof terminates -- verifies pvProof against the final memory root.
func (lv *LeafVerifier) Verify(proofs []*Proof, pvProof *publicvalues.RootProof) (*LeafOutput, error) {
	if len(proofs) == 0 {
		return nil, fmt.Errorf("empty proof batch")
	}
	var agg Connector
	for i, p := range proofs {
		if err := lv.engine.VerifyChildProof(lv.appVK, p); err != nil {
			return nil, fmt.Errorf("segment proof %d: %w", i, err)
		}
		if err := chainConnectors(&agg, p.Connector, i); err != nil {
			return nil, err
		}
	}

	out := &LeafOutput{Connector: agg}
	if agg.IsTerminate {
		if pvProof == nil {
			return nil, fmt.Errorf("terminated run without a public-values root proof")
		}
		if err := publicvalues.Verify(lv.hash, pvProof, agg.FinalRoot, lv.dims, lv.numPublicValues); err != nil {
			return nil, fmt.Errorf("public values: %w", err)
		}
		out.PublicValuesCommit = pvProof.PublicValuesCommit
	} else if pvProof != nil {
		return nil, fmt.Errorf("public-values root proof on an unterminated batch")
	}
	return out, nil
}
