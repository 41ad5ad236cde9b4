package vybiumzkvm

import (
	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/control"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/exec"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/hint"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/outer"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/publicvalues"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/recursion"
)

// FieldElement is an element of the 31-bit base field all machine state
// lives in.
type FieldElement = fr.Element

// NewFieldElement lifts a small integer into the field.
func NewFieldElement(v uint64) FieldElement { return fr.NewElement(v) }

// Address space identifiers of the machine's memory map.
const (
	RegisterSpace     = exec.RegisterSpace
	MemorySpace       = exec.MemorySpace
	PublicValuesSpace = exec.PublicValuesSpace
	HintSpace         = exec.HintSpace
)

// Digest is the Poseidon2 commitment used for program and memory roots.
type Digest = poseidon2.Digest

// Program is an executable instruction sequence.
type Program = program.Program

// Instruction is one decoded machine instruction.
type Instruction = program.Instruction

// OpCode identifies an instruction.
type OpCode = program.OpCode

// NewInstruction builds an instruction from an opcode and up to seven
// operand values.
func NewInstruction(op OpCode, operands ...uint64) Instruction {
	return program.NewInstruction(op, operands...)
}

// SignedOffset encodes a signed pc-relative branch or jump offset as an
// instruction operand.
func SignedOffset(off int32) uint64 {
	return program.SignedOffset(off)
}

// ParseOpCode resolves an assembler mnemonic such as "add" or
// "poseidon2.compress".
func ParseOpCode(s string) (OpCode, error) {
	op, err := program.ParseOpCode(s)
	if err != nil {
		return 0, vmErr(ErrInvalidProgram, "bad opcode", err)
	}
	return op, nil
}

// NewProgram wraps an instruction sequence with a start pc.
func NewProgram(instructions []Instruction, pcStart uint32) (*Program, error) {
	p, err := program.NewProgram(instructions, pcStart)
	if err != nil {
		return nil, vmErr(ErrInvalidProgram, "invalid program", err)
	}
	return p, nil
}

// Config configures one VM execution.
type Config = control.VmConfig

// DefaultConfig returns the production configuration: continuations
// enabled, 29-bit pointers, 32 public values, segments of 2^22
// instructions.
func DefaultConfig() Config { return control.DefaultVmConfig() }

// Segment is one provable slice of an execution.
type Segment = control.Segment

// Streams carries the host input vectors and the hint FIFO.
type Streams = hint.Streams

// VerifyingKey identifies the circuit a proof must verify against.
type VerifyingKey = recursion.VerifyingKey

// Connector is the chained public record of one proof.
type Connector = recursion.Connector

// SegmentProof is one segment's STARK proof with its connector publics.
type SegmentProof = recursion.Proof

// StarkEngine is the external STARK verifier boundary.
type StarkEngine = recursion.StarkEngine

// LeafOutput is the aggregated result of verifying one continuation chain.
type LeafOutput = recursion.LeafOutput

// RootProof opens the user public values under a final memory root.
type RootProof = publicvalues.RootProof

// EvmInstance is the outer proof instance submitted to the on-chain
// verifier contract.
type EvmInstance = outer.Instance
