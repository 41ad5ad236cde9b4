package vybiumzkvm

import (
	"context"
	"time"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/control"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/exec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/publicvalues"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/recursion"
)

// SegmentProver is the external proving half of the STARK backend: it
// turns one executed segment and its generated trace into an opaque proof
// body that the paired StarkEngine can later check.
type SegmentProver interface {
	ProveSegment(ctx context.Context, seg *Segment, trace [][]FieldElement) ([]byte, error)
}

// VM wraps one execution of a program.
type VM struct {
	cfg    Config
	prog   *Program
	inner  *control.VM
	commit Digest
}

// NewVM builds a machine for one execution of prog under cfg.
func NewVM(cfg Config, prog *Program) (*VM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, vmErr(ErrInvalidConfig, "invalid configuration", err)
	}
	if prog == nil || prog.Len() == 0 {
		return nil, vmErr(ErrInvalidProgram, "program is empty", nil)
	}
	inner, err := control.NewVM(cfg, prog)
	if err != nil {
		return nil, vmErr(ErrInvalidConfig, "vm construction failed", err)
	}
	return &VM{
		cfg:    cfg,
		prog:   prog,
		inner:  inner,
		commit: prog.Commit(inner.Machine().Hash),
	}, nil
}

// Commit returns the program commitment the proof chain is bound to.
func (v *VM) Commit() Digest { return v.commit }

// VerifyingKey returns the key a verifier needs for this program.
func (v *VM) VerifyingKey() *VerifyingKey {
	return &VerifyingKey{Commit: v.commit}
}

// Streams exposes the host input and hint streams for seeding inputs
// before execution.
func (v *VM) Streams() *Streams { return v.inner.Streams() }

// PublicValues reads back the user public-values region. Cells the guest
// never published are zero.
func (v *VM) PublicValues() []FieldElement {
	mem := v.inner.Machine().Mem
	out := make([]FieldElement, v.cfg.NumPublicValues)
	for i := range out {
		out[i] = mem.CellValue(exec.PublicValuesSpace, uint32(i))
	}
	return out
}

// Execute runs the program to termination and returns the segment chain.
func (v *VM) Execute(ctx context.Context) ([]*Segment, error) {
	segs, err := v.inner.Execute(ctx)
	if err != nil {
		return nil, vmErr(ErrExecution, "execution failed", err)
	}
	return segs, nil
}

// Prove executes the program and assembles the continuation proof: one
// proof body per segment from prover, connectors chained through the
// boundary memory roots, and the public-values opening under the final
// root. Continuations must be enabled; the boundary roots only exist in
// persistent memory mode.
func (v *VM) Prove(ctx context.Context, prover SegmentProver) (*ContinuationProof, error) {
	if prover == nil {
		return nil, vmErr(ErrInvalidInput, "segment prover cannot be nil", nil)
	}
	if !v.cfg.ContinuationEnabled {
		return nil, vmErr(ErrInvalidConfig, "proof generation requires continuations", nil)
	}
	segs, err := v.Execute(ctx)
	if err != nil {
		return nil, err
	}

	proofs := make([]*SegmentProof, len(segs))
	for i, seg := range segs {
		trace, err := v.inner.GenerateTrace(ctx, seg)
		if err != nil {
			return nil, vmErr(ErrProofGeneration, "trace generation failed", err)
		}
		body, err := prover.ProveSegment(ctx, seg, trace)
		if err != nil {
			return nil, vmErr(ErrProofGeneration, "segment proving failed", err)
		}
		proofs[i] = &SegmentProof{
			Connector: Connector{
				AppCommit:   v.commit,
				InitialPC:   seg.Publics.InitialPC,
				FinalPC:     seg.Publics.FinalPC,
				IsTerminate: seg.Publics.IsTerminate,
				ExitCode:    seg.Publics.ExitCode,
				InitialRoot: seg.PreRoot,
				FinalRoot:   seg.PostRoot,
			},
			CircuitCommit: v.commit,
			Body:          body,
		}
	}

	mem := v.inner.Machine().Mem
	tree, err := mem.FinalMerkleTree(v.inner.Machine().Hash)
	if err != nil {
		return nil, vmErr(ErrProofGeneration, "final memory tree", err)
	}
	pv, err := publicvalues.Extract(tree, mem.Dimensions(), v.cfg.NumPublicValues)
	if err != nil {
		return nil, vmErr(ErrProofGeneration, "public values extraction", err)
	}

	return &ContinuationProof{
		AppCommit:    v.commit,
		Segments:     proofs,
		PublicValues: pv,
	}, nil
}

// Verifier checks continuation proofs of one application circuit.
type Verifier struct {
	vk   *VerifyingKey
	leaf *recursion.LeafVerifier
}

// NewVerifier builds a verifier from the application verifying key and an
// external STARK engine. cfg must match the prover's configuration.
func NewVerifier(cfg Config, vk *VerifyingKey, engine StarkEngine) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, vmErr(ErrInvalidConfig, "invalid configuration", err)
	}
	if vk == nil {
		return nil, vmErr(ErrInvalidInput, "verifying key cannot be nil", nil)
	}
	leaf, err := recursion.NewLeafVerifier(engine, vk, cfg.Memory.Dimensions(), cfg.NumPublicValues)
	if err != nil {
		return nil, vmErr(ErrInvalidInput, "leaf verifier", err)
	}
	return &Verifier{vk: vk, leaf: leaf}, nil
}

// Result reports the outcome of verifying a continuation proof.
type Result struct {
	// Valid is true when every segment proof checked out and the chain
	// covers a terminated run.
	Valid bool

	// ExitCode is the guest exit code of the terminated run.
	ExitCode uint32

	// PublicValuesCommit commits to the user public values.
	PublicValuesCommit Digest

	// Error holds the failure reason when Valid is false.
	Error string

	// VerificationTimeMs is the wall-clock verification time.
	VerificationTimeMs int64
}

// Verify checks the whole continuation chain. A failed proof yields a
// Result with Valid false and no error; an error means the proof container
// itself was unusable.
func (vf *Verifier) Verify(proof *ContinuationProof) (*Result, error) {
	if proof == nil {
		return nil, vmErr(ErrInvalidInput, "proof cannot be nil", nil)
	}
	start := time.Now()
	out, err := vf.verify(proof)
	res := &Result{VerificationTimeMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	res.Valid = true
	res.ExitCode = out.Connector.ExitCode
	res.PublicValuesCommit = out.PublicValuesCommit
	return res, nil
}

func (vf *Verifier) verify(proof *ContinuationProof) (*LeafOutput, error) {
	if len(proof.Segments) == 0 {
		return nil, vmErr(ErrProofVerification, "proof has no segments", nil)
	}
	if !proof.AppCommit.Equal(&vf.vk.Commit) {
		return nil, vmErr(ErrProofVerification, "proof commits to a different program", nil)
	}
	for _, sp := range proof.Segments {
		if !sp.Connector.AppCommit.Equal(&proof.AppCommit) {
			return nil, vmErr(ErrProofVerification, "segment app commit mismatch", nil)
		}
	}
	out, err := vf.leaf.Verify(proof.Segments, proof.PublicValues)
	if err != nil {
		return nil, vmErr(ErrProofVerification, "continuation chain", err)
	}
	if !out.Connector.IsTerminate {
		return nil, vmErr(ErrProofVerification, "run did not terminate", nil)
	}
	return out, nil
}
