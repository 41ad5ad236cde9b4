package recursion

import (
	"fmt"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// RootVerifier is the volatile single-segment top of the stack: it checks
// one internal proof and compresses the surviving commitments into
// outer-curve scalars for the static wrapper.
type RootVerifier struct {
	engine     StarkEngine
	internalVK *VerifyingKey

	// HandlePublicValues intercepts the public-values commitment before
	// folding; nil accepts any commitment.
	HandlePublicValues func(poseidon2.Digest) error
}

// RootOutput is the compressed public instance of the whole run.
type RootOutput struct {
	AppExeCommit       bn254fr.Element
	AppVmCommit        bn254fr.Element
	PublicValuesDigest bn254fr.Element

	ExitCode uint32
}

// NewRootVerifier builds the root verifier over the internal circuit.
func NewRootVerifier(engine StarkEngine, internalVK *VerifyingKey) (*RootVerifier, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if internalVK == nil {
		return nil, fmt.Errorf("verifying key cannot be nil")
	}
	return &RootVerifier{engine: engine, internalVK: internalVK}, nil
}

// FoldDigest compresses a digest into one Bn254 scalar: the eight F
// elements are serialized to little-endian bytes and folded with Horner's
// method in base 2^8.
func FoldDigest(d poseidon2.Digest) bn254fr.Element {
	bytes := make([]byte, 0, 4*poseidon2.DigestLen)
	for i := 0; i < poseidon2.DigestLen; i++ {
		b := d[i].Bits()
		v := uint32(b[0])
		bytes = append(bytes, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return FoldBytes(bytes)
}

// FoldBytes folds little-endian byte limbs into one Bn254 scalar.
func FoldBytes(limbs []byte) bn254fr.Element {
	var acc, base, limb bn254fr.Element
	base.SetUint64(1 << 8)
	for i := len(limbs) - 1; i >= 0; i-- {
		acc.Mul(&acc, &base)
		limb.SetUint64(uint64(limbs[i]))
		acc.Add(&acc, &limb)
	}
	return acc
}

// Verify checks the internal proof, requires a cleanly terminated run, and
// emits the folded instance.
func (rv *RootVerifier) Verify(child *InternalOutput, proof *Proof) (*RootOutput, error) {
	if child == nil || proof == nil {
		return nil, fmt.Errorf("root verifier needs an internal output and its proof")
	}
	if err := rv.engine.VerifyChildProof(rv.internalVK, proof); err != nil {
		return nil, fmt.Errorf("internal proof: %w", err)
	}
	conn := child.Connector
	if !conn.AppCommit.Equal(&proof.Connector.AppCommit) {
		return nil, fmt.Errorf("internal output does not match its proof")
	}
	if !conn.IsTerminate {
		return nil, fmt.Errorf("run did not terminate")
	}
	if conn.ExitCode != 0 {
		return nil, fmt.Errorf("run terminated with exit code %d", conn.ExitCode)
	}
	if rv.HandlePublicValues != nil {
		if err := rv.HandlePublicValues(child.PublicValuesCommit); err != nil {
			return nil, fmt.Errorf("public values rejected: %w", err)
		}
	}

	return &RootOutput{
		AppExeCommit:       FoldDigest(conn.AppCommit),
		AppVmCommit:        FoldDigest(child.LeafVerifierCommit),
		PublicValuesDigest: FoldDigest(child.PublicValuesCommit),
		ExitCode:           conn.ExitCode,
	}, nil
}
