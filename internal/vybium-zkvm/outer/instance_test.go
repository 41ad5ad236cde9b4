package outer

import (
	"encoding/binary"
	"testing"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/recursion"
)

func testInstance(t *testing.T, userValues []byte) *Instance {
	t.Helper()
	var acc [NumAccumulatorSlots]bn254fr.Element
	for i := range acc {
		acc[i].SetUint64(uint64(i + 1))
	}
	root := &recursion.RootOutput{}
	root.AppExeCommit.SetUint64(0xAAAA)
	root.AppVmCommit.SetUint64(0xBBBB)

	inst, err := NewInstance(acc, root, userValues)
	require.NoError(t, err)
	return inst
}

func TestSlotLayout(t *testing.T) {
	inst := testInstance(t, []byte{0x11, 0x22, 0x33})
	slots := inst.Slots()
	require.Len(t, slots, NumAccumulatorSlots+2+3)

	var want bn254fr.Element
	want.SetUint64(0xAAAA)
	require.True(t, slots[AppExeCommitSlot].Equal(&want))
	want.SetUint64(0x22)
	require.True(t, slots[UserValuesOffset+1].Equal(&want))
}

func TestCalldataEncoding(t *testing.T) {
	inst := testInstance(t, []byte{0x7f})
	data := inst.Calldata()
	require.Len(t, data, inst.NumSlots()*bn254fr.Bytes)

	// The user byte lands in the last byte of its big-endian scalar.
	start := UserValuesOffset * bn254fr.Bytes
	slot := data[start : start+bn254fr.Bytes]
	require.Equal(t, byte(0x7f), slot[bn254fr.Bytes-1])
	for _, b := range slot[:bn254fr.Bytes-1] {
		require.Zero(t, b)
	}
}

func TestFallbackEncoding(t *testing.T) {
	inst := testInstance(t, []byte{1, 2})
	fb := inst.Fallback()
	require.Equal(t, uint32(inst.NumSlots()), binary.BigEndian.Uint32(fb[:4]))
	require.Equal(t, inst.Calldata(), fb[4:])
}

func TestKeccakDigestBindsInstance(t *testing.T) {
	a := testInstance(t, []byte{1})
	b := testInstance(t, []byte{2})
	require.NotEqual(t, a.KeccakDigest(), b.KeccakDigest())
	require.Equal(t, a.KeccakDigest(), testInstance(t, []byte{1}).KeccakDigest())
}
