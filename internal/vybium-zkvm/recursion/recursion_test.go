package recursion

import (
	"fmt"
	"testing"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/publicvalues"
)

// acceptEngine accepts every child proof.
type acceptEngine struct{}

func (acceptEngine) VerifyChildProof(*VerifyingKey, *Proof) error { return nil }

// rejectEngine rejects every child proof.
type rejectEngine struct{}

func (rejectEngine) VerifyChildProof(*VerifyingKey, *Proof) error {
	return fmt.Errorf("bad proof body")
}

func digestOf(vals ...uint64) poseidon2.Digest {
	var chunk [poseidon2.DigestLen]fr.Element
	for i, v := range vals {
		if i >= poseidon2.DigestLen {
			break
		}
		chunk[i] = fr.NewElement(v)
	}
	return poseidon2.NewPermutation().HashChunk(chunk)
}

// segmentChain builds n chained segment proofs ending at finalRoot, with
// the last one terminating.
func segmentChain(n int, appCommit, finalRoot poseidon2.Digest) []*Proof {
	proofs := make([]*Proof, n)
	root := digestOf(42)
	pc := uint32(0)
	for i := 0; i < n; i++ {
		nextRoot := digestOf(uint64(100 + i))
		if i == n-1 {
			nextRoot = finalRoot
		}
		nextPC := pc + 4*uint32(i+1)
		proofs[i] = &Proof{
			Connector: Connector{
				AppCommit:   appCommit,
				InitialPC:   pc,
				FinalPC:     nextPC,
				InitialRoot: root,
				FinalRoot:   nextRoot,
				IsTerminate: i == n-1,
			},
		}
		pc, root = nextPC, nextRoot
	}
	return proofs
}

func pvSetup(t *testing.T) (*publicvalues.RootProof, poseidon2.Digest, memory.Dimensions) {
	t.Helper()
	rc, err := lookup.NewVariableRangeChecker(0, 17)
	require.NoError(t, err)
	ctrl, err := memory.NewController(memory.DefaultConfig(), memory.Persistent, rc)
	require.NoError(t, err)
	dims := ctrl.Dimensions()
	for i := 0; i < 8; i++ {
		_, err := ctrl.Write(dims.PublicValuesAddressSpace(), uint32(i), []fr.Element{fr.NewElement(uint64(i * 3))})
		require.NoError(t, err)
	}
	tree, err := ctrl.FinalMerkleTree(poseidon2.NewPermutation())
	require.NoError(t, err)
	proof, err := publicvalues.Extract(tree, dims, 32)
	require.NoError(t, err)
	return proof, tree.Root(), dims
}

func newLeaf(t *testing.T, dims memory.Dimensions) *LeafVerifier {
	t.Helper()
	lv, err := NewLeafVerifier(acceptEngine{}, &VerifyingKey{Commit: digestOf(1)}, dims, 32)
	require.NoError(t, err)
	return lv
}

func TestLeafChainsSegments(t *testing.T) {
	pvProof, finalRoot, dims := pvSetup(t)
	app := digestOf(7)
	proofs := segmentChain(4, app, finalRoot)

	out, err := newLeaf(t, dims).Verify(proofs, pvProof)
	require.NoError(t, err)
	require.Equal(t, proofs[0].Connector.InitialPC, out.Connector.InitialPC)
	require.Equal(t, proofs[3].Connector.FinalPC, out.Connector.FinalPC)
	require.True(t, out.Connector.IsTerminate)
	require.True(t, out.PublicValuesCommit.Equal(&pvProof.PublicValuesCommit))
}

func TestLeafRejectsBrokenPcChain(t *testing.T) {
	pvProof, finalRoot, dims := pvSetup(t)
	proofs := segmentChain(3, digestOf(7), finalRoot)
	proofs[1].Connector.InitialPC += 4

	_, err := newLeaf(t, dims).Verify(proofs, pvProof)
	require.ErrorContains(t, err, "pc chain")
}

func TestLeafRejectsBrokenRootChain(t *testing.T) {
	pvProof, finalRoot, dims := pvSetup(t)
	proofs := segmentChain(3, digestOf(7), finalRoot)
	proofs[2].Connector.InitialRoot = digestOf(999)

	_, err := newLeaf(t, dims).Verify(proofs, pvProof)
	require.ErrorContains(t, err, "memory root chain")
}

func TestLeafRejectsEarlyTermination(t *testing.T) {
	pvProof, finalRoot, dims := pvSetup(t)
	proofs := segmentChain(3, digestOf(7), finalRoot)
	proofs[0].Connector.IsTerminate = true

	_, err := newLeaf(t, dims).Verify(proofs, pvProof)
	require.ErrorContains(t, err, "terminated")
}

func TestLeafRejectsCorruptPublicValuesProof(t *testing.T) {
	pvProof, finalRoot, dims := pvSetup(t)
	proofs := segmentChain(2, digestOf(7), finalRoot)
	pvProof.SiblingPath[1].Sibling = digestOf(1234)

	_, err := newLeaf(t, dims).Verify(proofs, pvProof)
	require.ErrorContains(t, err, "public values")
}

func TestLeafRejectsEngineFailure(t *testing.T) {
	pvProof, finalRoot, dims := pvSetup(t)
	proofs := segmentChain(2, digestOf(7), finalRoot)
	lv, err := NewLeafVerifier(rejectEngine{}, &VerifyingKey{}, dims, 32)
	require.NoError(t, err)

	_, err = lv.Verify(proofs, pvProof)
	require.ErrorContains(t, err, "segment proof 0")
}

func internalChildren(t *testing.T, leafCommit poseidon2.Digest) []*InternalChild {
	t.Helper()
	pvProof, finalRoot, dims := pvSetup(t)
	out, err := newLeaf(t, dims).Verify(segmentChain(3, digestOf(7), finalRoot), pvProof)
	require.NoError(t, err)

	// Two children covering disjoint halves of the run.
	first := &InternalChild{Proof: &Proof{
		Connector: Connector{
			AppCommit:   out.Connector.AppCommit,
			InitialPC:   0,
			FinalPC:     out.Connector.InitialPC + 8,
			InitialRoot: out.Connector.InitialRoot,
			FinalRoot:   digestOf(55),
		},
		CircuitCommit: leafCommit,
	}}
	second := &InternalChild{
		Proof: &Proof{
			Connector: Connector{
				AppCommit:   out.Connector.AppCommit,
				InitialPC:   first.Proof.Connector.FinalPC,
				FinalPC:     out.Connector.FinalPC,
				InitialRoot: digestOf(55),
				FinalRoot:   out.Connector.FinalRoot,
				IsTerminate: true,
			},
			CircuitCommit: leafCommit,
		},
		PublicValuesCommit: out.PublicValuesCommit,
	}
	return []*InternalChild{first, second}
}

func TestInternalChainsLeafCommit(t *testing.T) {
	leafCommit := digestOf(11)
	iv, err := NewInternalVerifier(acceptEngine{}, &VerifyingKey{})
	require.NoError(t, err)

	out, err := iv.Verify(internalChildren(t, leafCommit))
	require.NoError(t, err)
	require.True(t, out.LeafVerifierCommit.Equal(&leafCommit))
	require.True(t, out.Connector.IsTerminate)
	require.False(t, out.PublicValuesCommit.IsZero())
}

func TestInternalRejectsMixedCircuits(t *testing.T) {
	children := internalChildren(t, digestOf(11))
	children[1].Proof.CircuitCommit = digestOf(12)
	iv, err := NewInternalVerifier(acceptEngine{}, &VerifyingKey{})
	require.NoError(t, err)

	_, err = iv.Verify(children)
	require.ErrorContains(t, err, "different circuit")
}

func TestRootFoldsAndGates(t *testing.T) {
	iv, err := NewInternalVerifier(acceptEngine{}, &VerifyingKey{})
	require.NoError(t, err)
	out, err := iv.Verify(internalChildren(t, digestOf(11)))
	require.NoError(t, err)

	rv, err := NewRootVerifier(acceptEngine{}, &VerifyingKey{})
	require.NoError(t, err)

	handled := false
	rv.HandlePublicValues = func(d poseidon2.Digest) error {
		handled = true
		require.True(t, d.Equal(&out.PublicValuesCommit))
		return nil
	}

	proof := &Proof{Connector: out.Connector}
	rootOut, err := rv.Verify(out, proof)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, uint32(0), rootOut.ExitCode)

	// Folding is deterministic and injective across these digests.
	require.Equal(t, FoldDigest(out.Connector.AppCommit), rootOut.AppExeCommit)
	require.NotEqual(t, rootOut.AppExeCommit, rootOut.AppVmCommit)
}

func TestRootRejectsNonzeroExit(t *testing.T) {
	iv, err := NewInternalVerifier(acceptEngine{}, &VerifyingKey{})
	require.NoError(t, err)
	out, err := iv.Verify(internalChildren(t, digestOf(11)))
	require.NoError(t, err)
	out.Connector.ExitCode = 3

	rv, err := NewRootVerifier(acceptEngine{}, &VerifyingKey{})
	require.NoError(t, err)
	_, err = rv.Verify(out, &Proof{Connector: out.Connector})
	require.ErrorContains(t, err, "exit code")
}

func TestFoldBytesHorner(t *testing.T) {
	// 0x0201 = 1 + 2*256.
	got := FoldBytes([]byte{1, 2})
	var want bn254fr.Element
	want.SetUint64(513)
	require.True(t, want.Equal(&got))
}
