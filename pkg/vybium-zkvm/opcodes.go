package vybiumzkvm

import "github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"

// Opcode re-exports, grouped as in the internal opcode space.
const (
	Phantom   = program.Phantom
	Terminate = program.Terminate
	Publish   = program.Publish

	Add = program.Add
	Sub = program.Sub
	Xor = program.Xor
	Or  = program.Or
	And = program.And

	Beq  = program.Beq
	Bne  = program.Bne
	Blt  = program.Blt
	Bltu = program.Bltu
	Bge  = program.Bge
	Bgeu = program.Bgeu

	Jal  = program.Jal
	Jalr = program.Jalr

	Load      = program.Load
	Store     = program.Store
	HintStore = program.HintStore

	Mul    = program.Mul
	Mulh   = program.Mulh
	Mulhu  = program.Mulhu
	Mulhsu = program.Mulhsu
	Div    = program.Div
	Divu   = program.Divu
	Rem    = program.Rem
	Remu   = program.Remu

	Sll = program.Sll
	Srl = program.Srl
	Sra = program.Sra

	Slt  = program.Slt
	Sltu = program.Sltu

	Add256  = program.Add256
	Sub256  = program.Sub256
	Xor256  = program.Xor256
	Or256   = program.Or256
	And256  = program.And256
	Slt256  = program.Slt256
	Sltu256 = program.Sltu256
	Sll256  = program.Sll256
	Srl256  = program.Srl256
	Sra256  = program.Sra256
	Mul256  = program.Mul256
	Beq256  = program.Beq256

	ModAdd = program.ModAdd
	ModSub = program.ModSub
	ModMul = program.ModMul
	ModDiv = program.ModDiv

	EcAddNe  = program.EcAddNe
	EcDouble = program.EcDouble

	MillerDoubleStep       = program.MillerDoubleStep
	MillerDoubleAndAddStep = program.MillerDoubleAndAddStep
	Fp12MulByLine          = program.Fp12MulByLine
	FinalExp               = program.FinalExp

	Poseidon2Compress = program.Poseidon2Compress
	Poseidon2Permute  = program.Poseidon2Permute
	Keccak256         = program.Keccak256
	Sha256            = program.Sha256
)

// PhantomDiscriminant selects the phantom sub-instruction carried in the
// low bits of operand c.
type PhantomDiscriminant = program.PhantomDiscriminant

const (
	PhantomNop            = program.PhantomNop
	PhantomPrintF         = program.PhantomPrintF
	PhantomHintInput      = program.PhantomHintInput
	PhantomHintBits       = program.PhantomHintBits
	PhantomDecompressHint = program.PhantomDecompressHint
)
