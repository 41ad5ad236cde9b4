package program

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
)

// DefaultPCStep is the program-counter increment of a non-jumping
// instruction. Every pc must be a multiple of it.
const DefaultPCStep = 4

// NumOperands is the fixed operand count a..g of every instruction.
const NumOperands = 7

// Instruction is one fixed record (opcode, a, b, c, d, e, f, g). Operand
// meaning is opcode-dependent.
type Instruction struct {
	Opcode   OpCode
	Operands [NumOperands]fr.Element
}

// NewInstruction builds an instruction from uint64 operand values. Missing
// operands default to zero.
func NewInstruction(op OpCode, operands ...uint64) Instruction {
	inst := Instruction{Opcode: op}
	for i, v := range operands {
		if i >= NumOperands {
			break
		}
		inst.Operands[i] = fr.NewElement(v)
	}
	return inst
}

// SignedOffset encodes a signed pc-relative offset as an operand value.
// A negative offset -k is stored as its field negation p-k, so the
// executors can recover the sign from the residue. Raw 32-bit two's
// complement does not survive the 31-bit field and must not be used.
func SignedOffset(off int32) uint64 {
	if off >= 0 {
		return uint64(off)
	}
	return fr.Modulus().Uint64() - uint64(-int64(off))
}

// A..G are the conventional operand accessors.
func (i *Instruction) A() fr.Element { return i.Operands[0] }
func (i *Instruction) B() fr.Element { return i.Operands[1] }
func (i *Instruction) C() fr.Element { return i.Operands[2] }
func (i *Instruction) D() fr.Element { return i.Operands[3] }
func (i *Instruction) E() fr.Element { return i.Operands[4] }
func (i *Instruction) F() fr.Element { return i.Operands[5] }
func (i *Instruction) G() fr.Element { return i.Operands[6] }

// Program is an ordered, content-addressed instruction sequence.
type Program struct {
	Instructions []Instruction
	PcStart      uint32

	commit *poseidon2.Digest
}

// NewProgram wraps instructions with a starting pc. The start address must
// be aligned and inside the program.
func NewProgram(instructions []Instruction, pcStart uint32) (*Program, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("program has no instructions")
	}
	if pcStart%DefaultPCStep != 0 {
		return nil, fmt.Errorf("pc_start %d is not a multiple of %d", pcStart, DefaultPCStep)
	}
	if int(pcStart/DefaultPCStep) >= len(instructions) {
		return nil, fmt.Errorf("pc_start %d is outside the program", pcStart)
	}
	return &Program{Instructions: instructions, PcStart: pcStart}, nil
}

// Len returns the instruction count.
func (p *Program) Len() int { return len(p.Instructions) }

// InstructionAt fetches the instruction at pc, enforcing alignment and
// bounds.
func (p *Program) InstructionAt(pc uint32) (*Instruction, error) {
	if pc%DefaultPCStep != 0 {
		return nil, fmt.Errorf("pc %d is not aligned to %d", pc, DefaultPCStep)
	}
	idx := int(pc / DefaultPCStep)
	if idx >= len(p.Instructions) {
		return nil, fmt.Errorf("pc %d is outside the program", pc)
	}
	return &p.Instructions[idx], nil
}

// Commit returns the program commitment: a Merkle root over the opcode and
// operand columns, one chunk-aligned leaf per instruction. The commitment is
// computed once and cached; the program is read-only after keygen.
func (p *Program) Commit(h *poseidon2.Permutation) poseidon2.Digest {
	if p.commit != nil {
		return *p.commit
	}
	leaves := make([]poseidon2.Digest, nextPowerOfTwo(len(p.Instructions)))
	for i, inst := range p.Instructions {
		var chunk [poseidon2.DigestLen]fr.Element
		chunk[0] = fr.NewElement(uint64(inst.Opcode))
		copy(chunk[1:], inst.Operands[:])
		leaves[i] = h.HashChunk(chunk)
	}
	for i := len(p.Instructions); i < len(leaves); i++ {
		leaves[i] = poseidon2.Digest{}
	}
	for len(leaves) > 1 {
		next := make([]poseidon2.Digest, len(leaves)/2)
		for i := range next {
			next[i] = h.Compress(leaves[2*i], leaves[2*i+1])
		}
		leaves = next
	}
	p.commit = &leaves[0]
	return leaves[0]
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
