package sbs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBytesNamedTypes(t *testing.T) {
	r := NewBinaryReader([]byte{0xFF, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12})
	v, ok := Type{Kind: KindUint8}.DecodeBytes(r)
	require.True(t, ok)
	require.Equal(t, uint8(0xFF), v.U8)

	v, ok = Type{Kind: KindUint16}.DecodeBytes(r)
	require.True(t, ok)
	require.Equal(t, uint16(0x1234), v.U16)

	v, ok = Type{Kind: KindUint32}.DecodeBytes(r)
	require.True(t, ok)
	require.Equal(t, uint32(0x12345678), v.U32)
}

func TestDecodeBytesInsufficientData(t *testing.T) {
	r := NewBinaryReader([]byte{0x01})
	_, ok := Type{Kind: KindUint16}.DecodeBytes(r)
	require.False(t, ok)
}

func TestSignExtend(t *testing.T) {
	cases := []struct {
		raw  uint64
		w    uint32
		want int64
	}{
		{0x00, 8, 0},
		{0x7F, 8, 127},
		{0x80, 8, -128},
		{0xFF, 8, -1},
		{0x0FFF, 12, -1},
		{0x0800, 12, -2048},
		{0x07FF, 12, 2047},
	}
	for _, c := range cases {
		require.Equal(t, c.want, signExtend(c.raw, c.w), "raw=%#x w=%d", c.raw, c.w)
	}
}

func TestDecodeBytesSFixSignExtension(t *testing.T) {
	r := NewBinaryReader([]byte{0x80}) // sfix(8, -4), raw byte 0x80 = -128
	v, ok := Type{Kind: KindSFix, W: 8, E: -4}.DecodeBytes(r)
	require.True(t, ok)
	require.Equal(t, int64(-128), v.SRaw)
	require.Equal(t, -8.0, v.ToF64())
}
