// Package exec implements the per-opcode instruction executors. Every
// executor follows a uniform four-phase contract: preprocess performs the
// opcode's reads, executeCore is a pure function of the reads, postprocess
// performs the writes and advances the pc, and generateTraceRow fills the
// committed row with IO plus the offline-checker auxiliary cells.
package exec

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	fr "github.com/consensys/gnark-crypto/field/koalabear"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/hint"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

// Address-space conventions. Space 0 is the immediate pseudo-space handled
// by the memory controller.
const (
	// RegisterSpace holds the 32 machine registers, 4 byte-limbs each.
	RegisterSpace = 1

	// MemorySpace is the byte-addressed linear memory.
	MemorySpace = 2

	// PublicValuesSpace holds the user-declared public values, one F per
	// cell. It equals PublicValuesAddressSpaceOffset + asOffset.
	PublicValuesSpace = 3

	// HintSpace is the buffer HINT stores write into.
	HintSpace = 4
)

const (
	// LimbBits is the byte-limb width of machine words.
	LimbBits = 8

	// WordSize is the limb count of one 32-bit machine word.
	WordSize = 4

	// WideSize is the limb count of one 256-bit operand.
	WideSize = 32
)

// ExecutionState is the machine state threaded between instructions.
type ExecutionState struct {
	PC        uint32
	Timestamp uint32
}

// Machine bundles the shared chips an executor touches: memory, the lookup
// tables, the advice streams, and the hash oracle. The lookup tables are the
// only shared mutable state between parallel trace workers.
type Machine struct {
	Mem        *memory.Controller
	Range      *lookup.VariableRangeChecker
	Bitwise    *lookup.BitwiseLookup
	RangeTuple *lookup.RangeTupleChecker
	Streams    *hint.Streams
	Hash       *poseidon2.Permutation

	// Debug receives PrintF phantom output; nil discards it.
	Debug func(fr.Element)
}

// StepRecord carries one instruction's full witness through the four
// phases. Reads and ReadIDs are filled by preprocess, Writes / WriteIDs /
// ToPC / Core by executeCore and postprocess.
type StepRecord struct {
	Inst *program.Instruction
	From ExecutionState

	Reads   [][]fr.Element
	ReadIDs []memory.RecordID

	Writes   [][]fr.Element
	WriteIDs []memory.RecordID

	// ToPC overrides the default pc step when set.
	ToPC *uint32

	// Core holds executor-specific witness cells (carries, markers,
	// quotients) in the executor's fixed column order.
	Core []fr.Element

	// IsTerminate and ExitCode are set by the system executor.
	IsTerminate bool
	ExitCode    uint32
}

// Kind is the closed tagged union of executor families. Dispatch is by
// exhaustive switch; there is no virtual inheritance.
type Kind int

const (
	KindSystem Kind = iota
	KindPhantom
	KindBaseAlu
	KindLessThan
	KindBranch
	KindJump
	KindLoadStore
	KindMulDiv
	KindShift
	KindAlu256
	KindModular
	KindEllipticCurve
	KindPairing
	KindHash
)

// Executor is the uniform per-opcode contract.
type Executor interface {
	Kind() Kind
	Opcodes() []program.OpCode

	// Preprocess consumes the operand fields and performs the opcode's
	// reads.
	Preprocess(m *Machine, from ExecutionState, inst *program.Instruction) (*StepRecord, error)

	// ExecuteCore computes writes, the pc override, and the core witness
	// as a pure function of the reads.
	ExecuteCore(rec *StepRecord) error

	// Postprocess performs the writes and returns the next state. The pc
	// advances by DefaultPCStep unless the core set ToPC.
	Postprocess(m *Machine, rec *StepRecord) (ExecutionState, error)

	// GenerateTraceRow fills row with the step's IO and auxiliary cells.
	// It depends only on the record and on read-only shared tables, so
	// rows can be generated in parallel.
	GenerateTraceRow(row []fr.Element, rec *StepRecord)
}

// Inventory maps the dense opcode space onto executors. Registration is
// tracked in a bitset so invalid-instruction checks stay O(1).
type Inventory struct {
	executors  map[program.OpCode]Executor
	registered *bitset.BitSet
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		executors:  make(map[program.OpCode]Executor),
		registered: bitset.New(0x100),
	}
}

// Register claims every opcode of ex. Claiming an opcode twice is a
// configuration bug.
func (inv *Inventory) Register(ex Executor) error {
	for _, op := range ex.Opcodes() {
		if inv.registered.Test(uint(op)) {
			return fmt.Errorf("opcode %s registered twice", op)
		}
		inv.registered.Set(uint(op))
		inv.executors[op] = ex
	}
	return nil
}

// Lookup resolves an opcode; ok is false for unregistered opcodes.
func (inv *Inventory) Lookup(op program.OpCode) (Executor, bool) {
	if !inv.registered.Test(uint(op)) {
		return nil, false
	}
	return inv.executors[op], true
}

// DefaultInventory registers the full executor catalogue.
func DefaultInventory() (*Inventory, error) {
	inv := NewInventory()
	all := []Executor{
		NewSystemExecutor(),
		NewPhantomExecutor(),
		NewBaseAluExecutor(),
		NewLessThanExecutor(),
		NewBranchExecutor(),
		NewJumpExecutor(),
		NewLoadStoreExecutor(),
		NewMulDivExecutor(),
		NewShiftExecutor(),
		NewAlu256Executor(),
		NewModularExecutor(),
		NewEllipticCurveExecutor(),
		NewPairingExecutor(),
		NewHashExecutor(),
	}
	for _, ex := range all {
		if err := inv.Register(ex); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// ========== Word helpers ==========

// wordToU32 recomposes a 4-limb little-endian word. Limbs above 8 bits mean
// corrupted memory and are rejected.
func wordToU32(w []fr.Element) (uint32, error) {
	if len(w) != WordSize {
		return 0, fmt.Errorf("word has %d limbs, want %d", len(w), WordSize)
	}
	var v uint32
	for i := WordSize - 1; i >= 0; i-- {
		l, err := limbValue(w[i])
		if err != nil {
			return 0, err
		}
		v = v<<LimbBits | l
	}
	return v, nil
}

// u32ToWord decomposes a 32-bit value into 4 byte-limbs.
func u32ToWord(v uint32) []fr.Element {
	w := make([]fr.Element, WordSize)
	for i := 0; i < WordSize; i++ {
		w[i] = fr.NewElement(uint64(v >> (i * LimbBits) & 0xff))
	}
	return w
}

// limbValue extracts a byte-limb from a field element.
func limbValue(e fr.Element) (uint32, error) {
	v, ok := fieldToU64(e)
	if !ok || v > 0xff {
		return 0, fmt.Errorf("cell is not a byte limb")
	}
	return uint32(v), nil
}

// fieldToU64 interprets a field element as a small unsigned integer.
func fieldToU64(e fr.Element) (uint64, bool) {
	b := e.Bits()
	return uint64(b[0]), true
}

// fieldToU32 interprets a field element as a u32, failing on larger values.
func fieldToU32(e fr.Element) (uint32, error) {
	v, _ := fieldToU64(e)
	if v > 0xffff_ffff {
		return 0, fmt.Errorf("operand %d exceeds 32 bits", v)
	}
	return uint32(v), nil
}

// fieldToI32 decodes a signed pc-relative offset. Residues in the upper
// half of the field are negations: p-k decodes to -k. This mirrors
// program.SignedOffset.
func fieldToI32(e fr.Element) (int32, error) {
	v, _ := fieldToU64(e)
	p := fr.Modulus().Uint64()
	if v >= p {
		return 0, fmt.Errorf("offset %d is not a reduced field element", v)
	}
	if v > p/2 {
		return -int32(p - v), nil
	}
	return int32(v), nil
}

// regRead reads one 4-limb word at register pointer ptr.
func regRead(m *Machine, rec *StepRecord, ptr uint32) ([]fr.Element, error) {
	vals, id, err := m.Mem.Read(RegisterSpace, ptr, WordSize)
	if err != nil {
		return nil, err
	}
	rec.Reads = append(rec.Reads, vals)
	rec.ReadIDs = append(rec.ReadIDs, id)
	return vals, nil
}

// regWrite writes one 4-limb word at register pointer ptr. The word itself
// was staged in rec.Writes by executeCore; only the record id is appended.
func regWrite(m *Machine, rec *StepRecord, ptr uint32, word []fr.Element) error {
	id, err := m.Mem.Write(RegisterSpace, ptr, word)
	if err != nil {
		return err
	}
	rec.WriteIDs = append(rec.WriteIDs, id)
	return nil
}

// advancePC applies the default step or the core's override.
func advancePC(rec *StepRecord, m *Machine) ExecutionState {
	next := ExecutionState{
		PC:        rec.From.PC + program.DefaultPCStep,
		Timestamp: m.Mem.Timestamp(),
	}
	if rec.ToPC != nil {
		next.PC = *rec.ToPC
	}
	return next
}

// setToPC records a pc override on the core record.
func setToPC(rec *StepRecord, pc uint32) {
	rec.ToPC = &pc
}

// baseRow writes the shared IO prefix (pc, timestamp, opcode, operands)
// into row and returns the number of cells consumed.
func baseRow(row []fr.Element, rec *StepRecord) int {
	row[0] = fr.NewElement(uint64(rec.From.PC))
	row[1] = fr.NewElement(uint64(rec.From.Timestamp))
	row[2] = fr.NewElement(uint64(rec.Inst.Opcode))
	copy(row[3:3+program.NumOperands], rec.Inst.Operands[:])
	return 3 + program.NumOperands
}
