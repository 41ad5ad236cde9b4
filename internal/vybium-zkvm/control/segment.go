package control

import (
	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/exec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// SegmentPublicValues are the connector publics of one segment: the chain
// of (pc, timestamp) pairs across consecutive segments must agree, and only
// the last segment may terminate.
type SegmentPublicValues struct {
	InitialPC        uint32
	FinalPC          uint32
	InitialTimestamp uint32
	FinalTimestamp   uint32

	IsTerminate bool
	ExitCode    uint32
}

// FieldValues flattens the connector publics into committed cells.
func (p SegmentPublicValues) FieldValues() []fr.Element {
	term := uint64(0)
	if p.IsTerminate {
		term = 1
	}
	return []fr.Element{
		fr.NewElement(uint64(p.InitialPC)),
		fr.NewElement(uint64(p.FinalPC)),
		fr.NewElement(uint64(p.InitialTimestamp)),
		fr.NewElement(uint64(p.FinalTimestamp)),
		fr.NewElement(term),
		fr.NewElement(uint64(p.ExitCode)),
	}
}

// Segment is one provable slice of an execution. In persistent mode
// PreRoot and PostRoot are the Merkle roots of the memory image at the
// segment boundaries; each segment's PostRoot equals the next PreRoot.
type Segment struct {
	Index   int
	Records []*exec.StepRecord
	Publics SegmentPublicValues

	PreRoot  poseidon2.Digest
	PostRoot poseidon2.Digest
}

// Len returns the instruction count of the segment.
func (s *Segment) Len() int { return len(s.Records) }
