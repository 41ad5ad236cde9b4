// Package recursion implements the verifier stack: leaf verifiers chain
// segment proofs of one run, internal verifiers aggregate leaf or internal
// proofs, and the root verifier compresses the surviving commitments into
// outer-curve scalars. The STARK engine itself is external; every layer
// talks to it through the same child-proof subroutine.
package recursion

import (
	"fmt"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// VerifyingKey identifies the circuit a proof must verify against.
type VerifyingKey struct {
	Commit poseidon2.Digest
}

// Connector is the chained public record of one proof: the state interval
// it covers and the memory roots at its edges.
type Connector struct {
	AppCommit poseidon2.Digest

	InitialPC uint32
	FinalPC   uint32

	IsTerminate bool
	ExitCode    uint32

	InitialRoot poseidon2.Digest
	FinalRoot   poseidon2.Digest
}

// Proof is one child proof as seen by a recursion layer: its connector
// publics, the commitment of the circuit that produced it, and the opaque
// engine payload.
type Proof struct {
	Connector Connector

	// CircuitCommit is the program commitment of the proving circuit; the
	// internal layer chains it across children.
	CircuitCommit poseidon2.Digest

	// Body is the engine's serialized STARK proof.
	Body []byte
}

// StarkEngine is the external proof system boundary. Implementations check
// the opaque body against the verifying key and the exposed publics.
type StarkEngine interface {
	VerifyChildProof(vk *VerifyingKey, proof *Proof) error
}

// chainConnectors folds a child connector into the running aggregate,
// asserting the continuation invariants along the way.
func chainConnectors(agg *Connector, child Connector, index int) error {
	if index == 0 {
		*agg = child
		return nil
	}
	if !agg.AppCommit.Equal(&child.AppCommit) {
		return fmt.Errorf("proof %d commits to a different program", index)
	}
	if agg.IsTerminate {
		return fmt.Errorf("proof %d follows a terminated run", index)
	}
	if agg.FinalPC != child.InitialPC {
		return fmt.Errorf("proof %d breaks the pc chain: %#x != %#x", index, agg.FinalPC, child.InitialPC)
	}
	if !agg.FinalRoot.Equal(&child.InitialRoot) {
		return fmt.Errorf("proof %d breaks the memory root chain", index)
	}
	agg.FinalPC = child.FinalPC
	agg.FinalRoot = child.FinalRoot
	agg.IsTerminate = child.IsTerminate
	agg.ExitCode = child.ExitCode
	return nil
}
