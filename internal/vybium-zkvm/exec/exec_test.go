package exec

import (
	"encoding/hex"
	"math/big"
	"math/rand"
	"testing"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/arith"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/hint"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/lookup"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/memory"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/poseidon2"
	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/program"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	rc, err := lookup.NewVariableRangeChecker(0, 17)
	require.NoError(t, err)
	bw, err := lookup.NewBitwiseLookup(1, LimbBits)
	require.NoError(t, err)
	rt, err := lookup.NewRangeTupleChecker(2, []uint32{1 << 8, 1 << 11})
	require.NoError(t, err)
	mem, err := memory.NewController(memory.DefaultConfig(), memory.Volatile, rc)
	require.NoError(t, err)
	return &Machine{
		Mem:        mem,
		Range:      rc,
		Bitwise:    bw,
		RangeTuple: rt,
		Streams:    hint.NewStreams(),
		Hash:       poseidon2.NewPermutation(),
	}
}

// step drives one instruction through the four executor phases.
func step(t *testing.T, m *Machine, from ExecutionState, inst program.Instruction) (*StepRecord, ExecutionState) {
	t.Helper()
	inv, err := DefaultInventory()
	require.NoError(t, err)
	ex, ok := inv.Lookup(inst.Opcode)
	require.True(t, ok, "opcode %s unregistered", inst.Opcode)

	rec, err := ex.Preprocess(m, from, &inst)
	require.NoError(t, err)
	require.NoError(t, ex.ExecuteCore(rec))
	next, err := ex.Postprocess(m, rec)
	require.NoError(t, err)
	return rec, next
}

// setReg seeds one register word.
func setReg(t *testing.T, m *Machine, ptr, v uint32) {
	t.Helper()
	_, err := m.Mem.Write(RegisterSpace, ptr, u32ToWord(v))
	require.NoError(t, err)
}

func regValue(t *testing.T, m *Machine, ptr uint32) uint32 {
	t.Helper()
	w := make([]fr.Element, WordSize)
	for i := uint32(0); i < WordSize; i++ {
		w[i] = m.Mem.CellValue(RegisterSpace, ptr+i)
	}
	v, err := wordToU32(w)
	require.NoError(t, err)
	return v
}

func TestBaseAluAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cases := []struct {
		op  program.OpCode
		ref func(x, y uint32) uint32
	}{
		{program.Add, func(x, y uint32) uint32 { return x + y }},
		{program.Sub, func(x, y uint32) uint32 { return x - y }},
		{program.Xor, func(x, y uint32) uint32 { return x ^ y }},
		{program.Or, func(x, y uint32) uint32 { return x | y }},
		{program.And, func(x, y uint32) uint32 { return x & y }},
	}
	for _, tc := range cases {
		t.Run(tc.op.String(), func(t *testing.T) {
			m := newTestMachine(t)
			for i := 0; i < 50; i++ {
				x, y := rng.Uint32(), rng.Uint32()
				setReg(t, m, 8, x)
				setReg(t, m, 12, y)
				inst := program.NewInstruction(tc.op, 4, 8, 12, 0, RegisterSpace)
				_, next := step(t, m, ExecutionState{PC: 0, Timestamp: m.Mem.Timestamp()}, inst)
				require.Equal(t, tc.ref(x, y), regValue(t, m, 4))
				require.Equal(t, uint32(program.DefaultPCStep), next.PC)
			}
		})
	}
}

func TestBaseAluImmediateOperand(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 40)
	inst := program.NewInstruction(program.Add, 4, 8, 2, 0, 0)
	step(t, m, ExecutionState{}, inst)
	require.Equal(t, uint32(42), regValue(t, m, 4))
}

func TestMulDivAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ref := map[program.OpCode]func(x, y uint32) uint32{
		program.Mul:    func(x, y uint32) uint32 { return uint32(uint64(x) * uint64(y)) },
		program.Mulh:   func(x, y uint32) uint32 { return uint32(uint64(int64(int32(x))*int64(int32(y))) >> 32) },
		program.Mulhu:  func(x, y uint32) uint32 { return uint32(uint64(x) * uint64(y) >> 32) },
		program.Mulhsu: func(x, y uint32) uint32 { return uint32(uint64(int64(int32(x))*int64(y)) >> 32) },
	}
	for op, f := range ref {
		t.Run(op.String(), func(t *testing.T) {
			m := newTestMachine(t)
			for i := 0; i < 50; i++ {
				x, y := rng.Uint32(), rng.Uint32()
				setReg(t, m, 8, x)
				setReg(t, m, 12, y)
				inst := program.NewInstruction(op, 4, 8, 12, 0, RegisterSpace)
				step(t, m, ExecutionState{}, inst)
				require.Equal(t, f(x, y), regValue(t, m, 4))
			}
		})
	}
}

func TestDivRemSpecialCases(t *testing.T) {
	cases := []struct {
		name string
		op   program.OpCode
		x, y uint32
		want uint32
	}{
		{"div by zero", program.Div, 100, 0, ^uint32(0)},
		{"divu by zero", program.Divu, 100, 0, ^uint32(0)},
		{"rem by zero", program.Rem, 100, 0, 100},
		{"remu by zero", program.Remu, 100, 0, 100},
		{"signed overflow div", program.Div, 1 << 31, ^uint32(0), 1 << 31},
		{"signed overflow rem", program.Rem, 1 << 31, ^uint32(0), 0},
		{"signed div", program.Div, ^uint32(6) + 1, 2, ^uint32(2)},
		{"unsigned div", program.Divu, 7, 2, 3},
		{"unsigned rem", program.Remu, 7, 2, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMachine(t)
			setReg(t, m, 8, tc.x)
			setReg(t, m, 12, tc.y)
			inst := program.NewInstruction(tc.op, 4, 8, 12, 0, RegisterSpace)
			step(t, m, ExecutionState{}, inst)
			require.Equal(t, tc.want, regValue(t, m, 4))
		})
	}
}

func TestShiftAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	ref := map[program.OpCode]func(x, y uint32) uint32{
		program.Sll: func(x, y uint32) uint32 { return x << (y & 31) },
		program.Srl: func(x, y uint32) uint32 { return x >> (y & 31) },
		program.Sra: func(x, y uint32) uint32 { return uint32(int32(x) >> (y & 31)) },
	}
	for op, f := range ref {
		t.Run(op.String(), func(t *testing.T) {
			m := newTestMachine(t)
			for i := 0; i < 50; i++ {
				x, y := rng.Uint32(), rng.Uint32()
				setReg(t, m, 8, x)
				setReg(t, m, 12, y)
				inst := program.NewInstruction(op, 4, 8, 12, 0, RegisterSpace)
				step(t, m, ExecutionState{}, inst)
				require.Equal(t, f(x, y), regValue(t, m, 4))
			}
		})
	}
}

func TestBranchTargets(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 5)
	setReg(t, m, 12, 5)
	inst := program.NewInstruction(program.Beq, 8, 12, 16)
	_, next := step(t, m, ExecutionState{PC: 100}, inst)
	require.Equal(t, uint32(116), next.PC)

	setReg(t, m, 12, 6)
	_, next = step(t, m, ExecutionState{PC: 100}, inst)
	require.Equal(t, uint32(104), next.PC)
}

func TestBranchBackwardOffset(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 3)
	setReg(t, m, 12, 0)
	inst := program.NewInstruction(program.Bne, 8, 12, program.SignedOffset(-16))
	_, next := step(t, m, ExecutionState{PC: 24}, inst)
	require.Equal(t, uint32(8), next.PC)
}

func TestJalLinksAndJumps(t *testing.T) {
	m := newTestMachine(t)
	inst := program.NewInstruction(program.Jal, 4, 40)
	_, next := step(t, m, ExecutionState{PC: 100}, inst)
	require.Equal(t, uint32(140), next.PC)
	require.Equal(t, uint32(104), regValue(t, m, 4))

	back := program.NewInstruction(program.Jal, 16, program.SignedOffset(-8))
	_, next = step(t, m, ExecutionState{PC: 40}, back)
	require.Equal(t, uint32(32), next.PC)
	require.Equal(t, uint32(44), regValue(t, m, 16))
}

func TestLoadStoreRoundTrip(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 4, 0xdeadbeef)
	setReg(t, m, 8, 0x1000)
	store := program.NewInstruction(program.Store, 4, 8, 16, 0, MemorySpace, 4, 0)
	step(t, m, ExecutionState{}, store)

	setReg(t, m, 12, 0)
	load := program.NewInstruction(program.Load, 12, 8, 16, 0, MemorySpace, 4, 0)
	step(t, m, ExecutionState{}, load)
	require.Equal(t, uint32(0xdeadbeef), regValue(t, m, 12))
}

func TestLoadSignExtension(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 4, 0x80)
	setReg(t, m, 8, 0x2000)
	store := program.NewInstruction(program.Store, 4, 8, 0, 0, MemorySpace, 1, 0)
	step(t, m, ExecutionState{}, store)

	signed := program.NewInstruction(program.Load, 12, 8, 0, 0, MemorySpace, 1, 1)
	step(t, m, ExecutionState{}, signed)
	require.Equal(t, uint32(0xffffff80), regValue(t, m, 12))

	unsigned := program.NewInstruction(program.Load, 16, 8, 0, 0, MemorySpace, 1, 0)
	step(t, m, ExecutionState{}, unsigned)
	require.Equal(t, uint32(0x80), regValue(t, m, 16))
}

func TestHintStoreDrainsStream(t *testing.T) {
	m := newTestMachine(t)
	m.Streams.PushHints(fr.NewElement(41), fr.NewElement(42))
	setReg(t, m, 8, 0x40)

	for i := uint64(0); i < 2; i++ {
		inst := program.NewInstruction(program.HintStore, 0, 8, i, 0, HintSpace)
		step(t, m, ExecutionState{}, inst)
	}
	got, ok := fieldToU64(m.Mem.CellValue(HintSpace, 0x40))
	require.True(t, ok)
	require.Equal(t, uint64(41), got)
	got, ok = fieldToU64(m.Mem.CellValue(HintSpace, 0x41))
	require.True(t, ok)
	require.Equal(t, uint64(42), got)
	require.Equal(t, 0, m.Streams.HintLen())
}

func TestHintStoreEmptyStream(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 0)
	inst := program.NewInstruction(program.HintStore, 0, 8, 0, 0, HintSpace)
	inv, err := DefaultInventory()
	require.NoError(t, err)
	ex, ok := inv.Lookup(inst.Opcode)
	require.True(t, ok)
	_, err = ex.Preprocess(m, ExecutionState{}, &inst)
	require.ErrorIs(t, err, hint.ErrHintOutOfBounds)
}

// ========== Wide and modular operands ==========

// setWide writes v as 32 byte-limbs at ptr and stores ptr in ptrReg.
func setWide(t *testing.T, m *Machine, ptrReg, ptr uint32, v *big.Int) {
	t.Helper()
	_, err := m.Mem.Write(MemorySpace, ptr, bigLimbs(v))
	require.NoError(t, err)
	setReg(t, m, ptrReg, ptr)
}

func wideValue(t *testing.T, m *Machine, ptr uint32) *big.Int {
	t.Helper()
	bytes := make([]byte, WideSize)
	for i := uint32(0); i < WideSize; i++ {
		v, err := limbValue(m.Mem.CellValue(MemorySpace, ptr+i))
		require.NoError(t, err)
		bytes[WideSize-1-i] = byte(v)
	}
	return new(big.Int).SetBytes(bytes)
}

func TestAlu256AgainstBigInt(t *testing.T) {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	x, _ := new(big.Int).SetString("f000000000000000000000000000000000000000000000000000000000000001", 16)
	y := big.NewInt(0x1234)

	cases := []struct {
		op   program.OpCode
		want *big.Int
	}{
		{program.Add256, new(big.Int).And(new(big.Int).Add(x, y), mask)},
		{program.Sub256, new(big.Int).And(new(big.Int).Sub(x, y), mask)},
		{program.Xor256, new(big.Int).Xor(x, y)},
		{program.Mul256, new(big.Int).And(new(big.Int).Mul(x, y), mask)},
		{program.Sltu256, big.NewInt(0)},
	}
	for _, tc := range cases {
		t.Run(tc.op.String(), func(t *testing.T) {
			m := newTestMachine(t)
			setWide(t, m, 8, 0x1000, x)
			setWide(t, m, 12, 0x1040, y)
			setReg(t, m, 4, 0x1080)
			inst := program.NewInstruction(tc.op, 4, 8, 12)
			step(t, m, ExecutionState{}, inst)
			require.Zero(t, tc.want.Cmp(wideValue(t, m, 0x1080)))
		})
	}
}

func TestModularFieldIdentities(t *testing.T) {
	p := arith.Secp256k1Coord.Prime()
	a, _ := new(big.Int).SetString("5a0b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f809", 16)
	b := big.NewInt(977)

	run := func(t *testing.T, op program.OpCode, x, y *big.Int) *big.Int {
		m := newTestMachine(t)
		setWide(t, m, 8, 0x1000, x)
		setWide(t, m, 12, 0x1040, y)
		setReg(t, m, 4, 0x1080)
		inst := program.NewInstruction(op, 4, 8, 12, 0, 0, 0)
		step(t, m, ExecutionState{}, inst)
		return wideValue(t, m, 0x1080)
	}

	t.Run("add", func(t *testing.T) {
		want := new(big.Int).Mod(new(big.Int).Add(a, b), p)
		require.Zero(t, want.Cmp(run(t, program.ModAdd, a, b)))
	})
	t.Run("mul", func(t *testing.T) {
		want := new(big.Int).Mod(new(big.Int).Mul(a, b), p)
		require.Zero(t, want.Cmp(run(t, program.ModMul, a, b)))
	})
	t.Run("self division is one", func(t *testing.T) {
		require.Zero(t, big.NewInt(1).Cmp(run(t, program.ModDiv, a, a)))
	})
	t.Run("sub then add restores", func(t *testing.T) {
		d := run(t, program.ModSub, a, b)
		want := new(big.Int).Mod(new(big.Int).Add(d, b), p)
		require.Zero(t, want.Cmp(new(big.Int).Set(a)))
	})
}

func mustHexBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 16)
	require.True(t, ok)
	return v
}

func TestEcDoubleGenerator(t *testing.T) {
	m := newTestMachine(t)
	gx := mustHexBig(t, "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	gy := mustHexBig(t, "483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")
	setWide(t, m, 8, 0x1000, gx)
	_, err := m.Mem.Write(MemorySpace, 0x1020, bigLimbs(gy))
	require.NoError(t, err)
	setReg(t, m, 4, 0x2000)

	inst := program.NewInstruction(program.EcDouble, 4, 8)
	step(t, m, ExecutionState{}, inst)

	wantX := mustHexBig(t, "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5")
	wantY := mustHexBig(t, "1ae168fef9dca4f719e53d4b225c99292a09548dbbcbbc1ef68d2563cf383dcf")
	require.Zero(t, wantX.Cmp(wideValue(t, m, 0x2000)))
	require.Zero(t, wantY.Cmp(wideValue(t, m, 0x2020)))
}

func bigLimbs(v *big.Int) []fr.Element {
	bytes := v.FillBytes(make([]byte, WideSize))
	limbs := make([]fr.Element, WideSize)
	for i := 0; i < WideSize; i++ {
		limbs[i] = fr.NewElement(uint64(bytes[WideSize-1-i]))
	}
	return limbs
}

func TestEcAddGeneratorChain(t *testing.T) {
	// G + 2G = 3G.
	m := newTestMachine(t)
	gx := mustHexBig(t, "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	gy := mustHexBig(t, "483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")
	g2x := mustHexBig(t, "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5")
	g2y := mustHexBig(t, "1ae168fef9dca4f719e53d4b225c99292a09548dbbcbbc1ef68d2563cf383dcf")

	setWide(t, m, 8, 0x1000, gx)
	_, err := m.Mem.Write(MemorySpace, 0x1020, bigLimbs(gy))
	require.NoError(t, err)
	setWide(t, m, 12, 0x1040, g2x)
	_, err = m.Mem.Write(MemorySpace, 0x1060, bigLimbs(g2y))
	require.NoError(t, err)
	setReg(t, m, 4, 0x2000)

	inst := program.NewInstruction(program.EcAddNe, 4, 8, 12)
	step(t, m, ExecutionState{}, inst)

	wantX := mustHexBig(t, "f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9")
	require.Zero(t, wantX.Cmp(wideValue(t, m, 0x2000)))
}

func writeBytes(t *testing.T, m *Machine, ptr uint32, msg []byte) {
	t.Helper()
	for i, b := range msg {
		_, err := m.Mem.Write(MemorySpace, ptr+uint32(i), []fr.Element{fr.NewElement(uint64(b))})
		require.NoError(t, err)
	}
}

func digestBytes(t *testing.T, m *Machine, ptr uint32) []byte {
	t.Helper()
	out := make([]byte, 32)
	for i := uint32(0); i < 32; i++ {
		v, err := limbValue(m.Mem.CellValue(MemorySpace, ptr+i))
		require.NoError(t, err)
		out[i] = byte(v)
	}
	return out
}

func TestSha256KnownDigest(t *testing.T) {
	m := newTestMachine(t)
	msg := []byte("abc")
	writeBytes(t, m, 0x1000, msg)
	setReg(t, m, 8, 0x1000)
	setReg(t, m, 12, uint32(len(msg)))
	setReg(t, m, 4, 0x2000)

	inst := program.NewInstruction(program.Sha256, 4, 8, 12)
	step(t, m, ExecutionState{}, inst)

	want, _ := hex.DecodeString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	require.Equal(t, want, digestBytes(t, m, 0x2000))
}

func TestSha256EmptyDigest(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 0x1000)
	setReg(t, m, 12, 0)
	setReg(t, m, 4, 0x2000)

	inst := program.NewInstruction(program.Sha256, 4, 8, 12)
	step(t, m, ExecutionState{}, inst)

	want, _ := hex.DecodeString("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	require.Equal(t, want, digestBytes(t, m, 0x2000))
}

func TestKeccak256EmptyDigest(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 0x1000)
	setReg(t, m, 12, 0)
	setReg(t, m, 4, 0x2000)

	inst := program.NewInstruction(program.Keccak256, 4, 8, 12)
	step(t, m, ExecutionState{}, inst)

	want, _ := hex.DecodeString("c5d2460186f7233c907e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	require.Equal(t, want, digestBytes(t, m, 0x2000))
}

func TestPoseidon2CompressMatchesOracle(t *testing.T) {
	m := newTestMachine(t)
	var left, right poseidon2.Digest
	leftCells := make([]fr.Element, poseidon2.DigestLen)
	rightCells := make([]fr.Element, poseidon2.DigestLen)
	for i := 0; i < poseidon2.DigestLen; i++ {
		leftCells[i] = fr.NewElement(uint64(i + 1))
		rightCells[i] = fr.NewElement(uint64(100 + i))
		left[i] = leftCells[i]
		right[i] = rightCells[i]
	}
	_, err := m.Mem.Write(MemorySpace, 0x1000, leftCells)
	require.NoError(t, err)
	_, err = m.Mem.Write(MemorySpace, 0x1008, rightCells)
	require.NoError(t, err)
	setReg(t, m, 8, 0x1000)
	setReg(t, m, 12, 0x1008)
	setReg(t, m, 4, 0x2000)

	inst := program.NewInstruction(program.Poseidon2Compress, 4, 8, 12)
	step(t, m, ExecutionState{}, inst)

	want := m.Hash.Compress(left, right)
	for i := 0; i < poseidon2.DigestLen; i++ {
		got := m.Mem.CellValue(MemorySpace, 0x2000+uint32(i))
		require.True(t, want[i].Equal(&got))
	}
}

func TestPhantomHintInput(t *testing.T) {
	m := newTestMachine(t)
	vec := []fr.Element{fr.NewElement(7), fr.NewElement(9)}
	m.Streams.PushInputVector(vec)

	disc := uint64(program.PhantomHintInput)
	inst := program.NewInstruction(program.Phantom, 0, 0, disc)
	_, next := step(t, m, ExecutionState{PC: 0}, inst)
	require.Equal(t, uint32(program.DefaultPCStep), next.PC)

	n, err := m.Streams.PopHint()
	require.NoError(t, err)
	length, ok := fieldToU64(n)
	require.True(t, ok)
	require.Equal(t, uint64(2), length)
	rest, err := m.Streams.PopHints(2)
	require.NoError(t, err)
	require.True(t, rest[0].Equal(&vec[0]))
	require.True(t, rest[1].Equal(&vec[1]))
}

func TestPhantomNopLeavesStateAlone(t *testing.T) {
	m := newTestMachine(t)
	before := m.Mem.CellsAccessed()
	inst := program.NewInstruction(program.Phantom, 0, 0, uint64(program.PhantomNop))
	step(t, m, ExecutionState{}, inst)
	require.Equal(t, before, m.Mem.CellsAccessed())
	require.Equal(t, 0, m.Streams.HintLen())
}

func TestPhantomDecompressHintTicksOnce(t *testing.T) {
	m := newTestMachine(t)
	// x = 1: x^3 + 7 = 8, a quadratic residue mod the secp256k1 prime.
	xCells := make([]fr.Element, WideSize)
	xCells[0] = fr.NewElement(1)
	_, err := m.Mem.Write(MemorySpace, 0x3000, xCells)
	require.NoError(t, err)
	setReg(t, m, 8, 0x3000)

	before := m.Mem.Timestamp()
	inst := program.NewInstruction(program.Phantom, 8, 0, uint64(program.PhantomDecompressHint))
	step(t, m, ExecutionState{}, inst)
	require.Equal(t, before+1, m.Mem.Timestamp())

	flag, err := m.Streams.PopHint()
	require.NoError(t, err)
	require.True(t, flag.IsOne())

	y := new(big.Int)
	limbs := make([]fr.Element, WideSize)
	for i := range limbs {
		limbs[i], err = m.Streams.PopHint()
		require.NoError(t, err)
	}
	for i := WideSize - 1; i >= 0; i-- {
		l, err := limbValue(limbs[i])
		require.NoError(t, err)
		y.Lsh(y, LimbBits).Or(y, big.NewInt(int64(l)))
	}
	p := arith.Secp256k1Coord.Prime()
	sq := new(big.Int).Mul(y, y)
	sq.Mod(sq, p)
	require.Zero(t, sq.Cmp(big.NewInt(8)))
	require.Equal(t, uint(0), y.Bit(0))
}

func TestTerminateAndPublish(t *testing.T) {
	m := newTestMachine(t)
	setReg(t, m, 8, 1234)
	pub := program.NewInstruction(program.Publish, 3, 8)
	step(t, m, ExecutionState{}, pub)
	got, ok := fieldToU64(m.Mem.CellValue(PublicValuesSpace, 3))
	require.True(t, ok)
	require.Equal(t, uint64(1234), got)

	term := program.NewInstruction(program.Terminate, 2)
	rec, next := step(t, m, ExecutionState{PC: 96}, term)
	require.True(t, rec.IsTerminate)
	require.Equal(t, uint32(2), rec.ExitCode)
	require.Equal(t, uint32(96), next.PC)
}

func TestInventoryRejectsDoubleRegistration(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Register(NewBaseAluExecutor()))
	require.Error(t, inv.Register(NewBaseAluExecutor()))
}

func TestPairingFinalExpUnity(t *testing.T) {
	// finalExp(1) = 1 and the Miller double step lands back on the curve.
	one := fp12One()
	require.True(t, one.exp(big.NewInt(5)).isOne())
	require.True(t, one.mul(one).isOne())
}

func TestFp2TowerIdentities(t *testing.T) {
	mod := arith.Bn254Coord
	a := fp2{
		arith.NewIntMod(mod, big.NewInt(3)),
		arith.NewIntMod(mod, big.NewInt(4)),
	}
	inv, err := a.inverse()
	require.NoError(t, err)
	prod := a.mul(inv)
	require.True(t, prod.equal(fp2One()))

	_, err = fp2Zero().inverse()
	require.Error(t, err)
}
