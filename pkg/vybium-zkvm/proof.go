package vybiumzkvm

import (
	"bytes"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// proofFormatVersion is encoded ahead of the container so a decoder can
// reject payloads from an incompatible release.
const proofFormatVersion = 1

// ContinuationProof is the transportable proof of one execution: one STARK
// proof per segment, chained through their connectors, plus the opening of
// the user public values under the final memory root.
type ContinuationProof struct {
	// AppCommit is the commitment of the proven program.
	AppCommit Digest

	// Segments holds the per-segment proofs in execution order.
	Segments []*SegmentProof

	// PublicValues opens the public-values subtree of the final root.
	PublicValues *RootProof
}

var proofEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	proofEncMode = em
}

// Serialize writes the version tag and the container to w.
func (p *ContinuationProof) Serialize(w io.Writer) error {
	enc := proofEncMode.NewEncoder(w)
	if err := enc.Encode(proofFormatVersion); err != nil {
		return vmErr(ErrProofEncoding, "encode version", err)
	}
	if err := enc.Encode(p); err != nil {
		return vmErr(ErrProofEncoding, "encode proof", err)
	}
	return nil
}

// Marshal serializes the container to a byte slice.
func (p *ContinuationProof) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeProof reads a container written by Serialize.
func DeserializeProof(r io.Reader) (*ContinuationProof, error) {
	dec := cbor.NewDecoder(r)
	var version int
	if err := dec.Decode(&version); err != nil {
		return nil, vmErr(ErrProofEncoding, "decode version", err)
	}
	if version != proofFormatVersion {
		return nil, vmErr(ErrProofEncoding, "unsupported proof format version", nil)
	}
	var p ContinuationProof
	if err := dec.Decode(&p); err != nil {
		return nil, vmErr(ErrProofEncoding, "decode proof", err)
	}
	if len(p.Segments) == 0 {
		return nil, vmErr(ErrProofEncoding, "proof has no segments", nil)
	}
	return &p, nil
}

// UnmarshalProof deserializes a container from a byte slice.
func UnmarshalProof(data []byte) (*ContinuationProof, error) {
	return DeserializeProof(bytes.NewReader(data))
}
