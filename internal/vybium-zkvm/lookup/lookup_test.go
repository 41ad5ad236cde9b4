package lookup

import (
	"math/big"
	"sync"
	"testing"

	fr "github.com/consensys/gnark-crypto/field/koalabear"
	"github.com/stretchr/testify/require"
)

func TestVariableRangeCheckerCounts(t *testing.T) {
	rc, err := NewVariableRangeChecker(3, 8)
	require.NoError(t, err)

	require.NoError(t, rc.AddCount(0, 0))
	require.NoError(t, rc.AddCount(5, 3))
	require.NoError(t, rc.AddCount(5, 3))
	require.NoError(t, rc.AddCount(255, 8))

	m := rc.Multiplicities()
	require.Equal(t, uint64(1), mustUint64(t, m[rc.offset(0)+0]))
	require.Equal(t, uint64(2), mustUint64(t, m[rc.offset(3)+5]))
	require.Equal(t, uint64(1), mustUint64(t, m[rc.offset(8)+255]))
}

func TestVariableRangeCheckerRejectsOutOfRange(t *testing.T) {
	rc, err := NewVariableRangeChecker(3, 8)
	require.NoError(t, err)

	require.Error(t, rc.AddCount(8, 3), "8 does not fit in 3 bits")
	require.Error(t, rc.AddCount(1, 9), "bit length above table maximum")

	rc.Freeze()
	require.Error(t, rc.AddCount(1, 1), "frozen table must reject updates")
}

func TestCheckRangeDecomposition(t *testing.T) {
	rc, err := NewVariableRangeChecker(3, 8)
	require.NoError(t, err)

	// 29-bit value decomposed into 8-bit limbs: 8 + 8 + 8 + 5.
	require.NoError(t, rc.CheckRange(0x1fff_ffff, 29, 8))
	m := rc.Multiplicities()
	require.Equal(t, uint64(3), mustUint64(t, m[rc.offset(8)+255]))
	require.Equal(t, uint64(1), mustUint64(t, m[rc.offset(5)+31]))

	require.Error(t, rc.CheckRange(1<<29, 29, 8), "value exceeding declared width")
}

func TestVariableRangeCheckerConcurrentSenders(t *testing.T) {
	rc, err := NewVariableRangeChecker(3, 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = rc.AddCount(42, 6)
			}
		}()
	}
	wg.Wait()

	m := rc.Multiplicities()
	require.Equal(t, uint64(8000), mustUint64(t, m[rc.offset(6)+42]))
}

func TestBitwiseLookup(t *testing.T) {
	bl, err := NewBitwiseLookup(4, 8)
	require.NoError(t, err)

	v, err := bl.AddPair(BitwiseXor, 0xa5, 0x5a)
	require.NoError(t, err)
	require.Equal(t, uint32(0xff), v)

	v, err = bl.AddPair(BitwiseAnd, 0xf0, 0x3c)
	require.NoError(t, err)
	require.Equal(t, uint32(0x30), v)

	v, err = bl.AddPair(BitwiseOr, 0xf0, 0x3c)
	require.NoError(t, err)
	require.Equal(t, uint32(0xfc), v)

	_, err = bl.AddPair(BitwiseXor, 256, 0)
	require.Error(t, err, "operand exceeding table width")

	m := bl.Multiplicities()
	require.Equal(t, uint64(1), mustUint64(t, m[bl.index(BitwiseXor, 0xa5, 0x5a)]))
}

func TestRangeTupleChecker(t *testing.T) {
	rt, err := NewRangeTupleChecker(5, []uint32{256, 8})
	require.NoError(t, err)

	require.NoError(t, rt.AddCount([]uint32{255, 7}))
	require.NoError(t, rt.AddCount([]uint32{255, 7}))
	require.Error(t, rt.AddCount([]uint32{256, 0}), "first coordinate out of range")
	require.Error(t, rt.AddCount([]uint32{0}), "wrong arity")

	m := rt.Multiplicities()
	require.Equal(t, uint64(2), mustUint64(t, m[255*8+7]))
}

func TestRangeTupleCheckerRejectsHugeProduct(t *testing.T) {
	_, err := NewRangeTupleChecker(5, []uint32{1 << 16, 1 << 16})
	require.Error(t, err)
}

func mustUint64(t *testing.T, e fr.Element) uint64 {
	t.Helper()
	var b big.Int
	e.BigInt(&b)
	return b.Uint64()
}
