// Package program defines the instruction format, the global opcode space,
// and the content-addressed program commitment.
package program

import "fmt"

// OpCode is a dense index into the global opcode space. Low-order ranges are
// reserved per extension:
//
//	0x000        system (PHANTOM, TERMINATE, PUBLISH)
//	0x010-0x01F  base ALU, branch, jump, load/store
//	0x020-0x03F  multiplication, division, shift, less-than
//	0x040-       extension opcodes (modular, EC, pairing, hash)
type OpCode uint32

const (
	// ========== System (0x000) ==========

	// Phantom executes a host-visible sub-instruction; never mutates memory.
	Phantom OpCode = 0x000

	// Terminate halts the run with the exit code in operand a.
	Terminate OpCode = 0x001

	// Publish writes operand value b at index a of the public-values region.
	Publish OpCode = 0x002

	// ========== Base ALU, branch, jump, load/store (0x010-0x01F) ==========

	Add OpCode = 0x010
	Sub OpCode = 0x011
	Xor OpCode = 0x012
	Or  OpCode = 0x013
	And OpCode = 0x014

	Beq  OpCode = 0x015
	Bne  OpCode = 0x016
	Blt  OpCode = 0x017
	Bltu OpCode = 0x018
	Bge  OpCode = 0x019
	Bgeu OpCode = 0x01A

	Jal  OpCode = 0x01B
	Jalr OpCode = 0x01C

	// Load reads a sub-word at (base + imm); operand f encodes the access
	// size in bytes, operand g the sign-extension flag.
	Load OpCode = 0x01D

	// Store writes a sub-word at (base + imm); operand f encodes the size.
	Store OpCode = 0x01E

	// HintStore pops one element from the hint stream and writes it as a
	// native cell at (base + imm).
	HintStore OpCode = 0x01F

	// ========== Mul/div, shift, less-than (0x020-0x03F) ==========

	Mul    OpCode = 0x020
	Mulh   OpCode = 0x021
	Mulhu  OpCode = 0x022
	Mulhsu OpCode = 0x023
	Div    OpCode = 0x024
	Divu   OpCode = 0x025
	Rem    OpCode = 0x026
	Remu   OpCode = 0x027

	Sll OpCode = 0x028
	Srl OpCode = 0x029
	Sra OpCode = 0x02A

	Slt  OpCode = 0x02B
	Sltu OpCode = 0x02C

	// 256-bit integer kernels (NUM_LIMBS=32, LIMB_BITS=8).

	Add256  OpCode = 0x030
	Sub256  OpCode = 0x031
	Xor256  OpCode = 0x032
	Or256   OpCode = 0x033
	And256  OpCode = 0x034
	Slt256  OpCode = 0x035
	Sltu256 OpCode = 0x036
	Sll256  OpCode = 0x037
	Srl256  OpCode = 0x038
	Sra256  OpCode = 0x039
	Mul256  OpCode = 0x03A
	Beq256  OpCode = 0x03B

	// ========== Extension opcodes (0x040-) ==========

	ModAdd OpCode = 0x040
	ModSub OpCode = 0x041
	ModMul OpCode = 0x042
	ModDiv OpCode = 0x043

	// EcAddNe adds two distinct affine points; EcDouble doubles one.
	EcAddNe  OpCode = 0x044
	EcDouble OpCode = 0x045

	// Pairing line operations over the degree-12 tower.
	MillerDoubleStep       OpCode = 0x046
	MillerDoubleAndAddStep OpCode = 0x047
	Fp12MulByLine          OpCode = 0x048
	FinalExp               OpCode = 0x049

	// Hash opcodes.
	Poseidon2Compress OpCode = 0x050
	Poseidon2Permute  OpCode = 0x051
	Keccak256         OpCode = 0x052
	Sha256            OpCode = 0x053
)

// PhantomDiscriminant selects the phantom sub-instruction. It is drawn from
// the low 16 bits of operand c.
type PhantomDiscriminant uint16

const (
	// PhantomNop has no effect.
	PhantomNop PhantomDiscriminant = iota

	// PhantomPrintF reads the F at (addrSpace = c>>16, a) and emits it on
	// the debug channel.
	PhantomPrintF

	// PhantomHintInput pops one vector from the host input stream and
	// pushes its length then its elements onto the hint stream.
	PhantomHintInput

	// PhantomHintBits reads value v at (addrSpace, a) and pushes b
	// little-endian bits of v onto the hint stream.
	PhantomHintBits

	// PhantomDecompressHint pushes the precomputed sqrt or non-residue
	// witness for curve-point decompression.
	PhantomDecompressHint
)

// String returns the assembler mnemonic of the opcode.
func (op OpCode) String() string {
	if s, ok := mnemonics[op]; ok {
		return s
	}
	return fmt.Sprintf("opcode(0x%03x)", uint32(op))
}

// ParseOpCode resolves an assembler mnemonic.
func ParseOpCode(s string) (OpCode, error) {
	if op, ok := opcodeByMnemonic[s]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown mnemonic %q", s)
}

var opcodeByMnemonic = func() map[string]OpCode {
	m := make(map[string]OpCode, len(mnemonics))
	for op, s := range mnemonics {
		m[s] = op
	}
	return m
}()

var mnemonics = map[OpCode]string{
	Phantom: "phantom", Terminate: "terminate", Publish: "publish",
	Add: "add", Sub: "sub", Xor: "xor", Or: "or", And: "and",
	Beq: "beq", Bne: "bne", Blt: "blt", Bltu: "bltu", Bge: "bge", Bgeu: "bgeu",
	Jal: "jal", Jalr: "jalr", Load: "load", Store: "store", HintStore: "hintstore",
	Mul: "mul", Mulh: "mulh", Mulhu: "mulhu", Mulhsu: "mulhsu",
	Div: "div", Divu: "divu", Rem: "rem", Remu: "remu",
	Sll: "sll", Srl: "srl", Sra: "sra", Slt: "slt", Sltu: "sltu",
	Add256: "add256", Sub256: "sub256", Xor256: "xor256", Or256: "or256",
	And256: "and256", Slt256: "slt256", Sltu256: "sltu256",
	Sll256: "sll256", Srl256: "srl256", Sra256: "sra256",
	Mul256: "mul256", Beq256: "beq256",
	ModAdd: "modadd", ModSub: "modsub", ModMul: "modmul", ModDiv: "moddiv",
	EcAddNe: "ec.addne", EcDouble: "ec.double",
	MillerDoubleStep: "miller.double", MillerDoubleAndAddStep: "miller.dadd",
	Fp12MulByLine: "fp12.mulline", FinalExp: "fp12.finalexp",
	Poseidon2Compress: "poseidon2.compress", Poseidon2Permute: "poseidon2.permute",
	Keccak256: "keccak256", Sha256: "sha256",
}
