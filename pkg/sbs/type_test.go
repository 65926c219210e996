package sbs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTypeNameNamed(t *testing.T) {
	cases := map[string]Kind{
		"uint8":   KindUint8,
		"uint16":  KindUint16,
		"uint32":  KindUint32,
		"int8":    KindInt8,
		"int16":   KindInt16,
		"int32":   KindInt32,
		"float32": KindFloat32,
	}
	for name, kind := range cases {
		ty, ok := ParseTypeName(name)
		require.True(t, ok, name)
		require.Equal(t, kind, ty.Kind, name)
		require.Equal(t, name, ty.String())
	}
}

func TestParseTypeNameFixedPoint(t *testing.T) {
	ty, ok := ParseTypeName("ufix(16, -4)")
	require.True(t, ok)
	require.Equal(t, Type{Kind: KindUFix, W: 16, E: -4}, ty)
	require.Equal(t, "ufix(16, -4)", ty.String())

	ty, ok = ParseTypeName("sfix(32, 0)")
	require.True(t, ok)
	require.Equal(t, Type{Kind: KindSFix, W: 32, E: 0}, ty)
}

func TestParseTypeNameRejectsMalformed(t *testing.T) {
	malformed := []string{
		"",
		"uint64",
		"ufix()",
		"ufix(16)",
		"ufix(16,-4)", // no space after comma
		"ufix(x, -4)",
		"sfix(16, x)",
		"sfix(16, -4",
	}
	for _, s := range malformed {
		_, ok := ParseTypeName(s)
		require.False(t, ok, s)
	}
}

func TestTypeWidth(t *testing.T) {
	cases := []struct {
		ty   Type
		want int
	}{
		{Type{Kind: KindUint8}, 1},
		{Type{Kind: KindInt8}, 1},
		{Type{Kind: KindUint16}, 2},
		{Type{Kind: KindInt16}, 2},
		{Type{Kind: KindUint32}, 4},
		{Type{Kind: KindInt32}, 4},
		{Type{Kind: KindFloat32}, 4},
		{Type{Kind: KindUFix, W: 8}, 1},
		{Type{Kind: KindUFix, W: 9}, 2},
		{Type{Kind: KindUFix, W: 16}, 2},
		{Type{Kind: KindUFix, W: 17}, 4},
		{Type{Kind: KindUFix, W: 32}, 4},
		{Type{Kind: KindUFix, W: 33}, 8},
		{Type{Kind: KindUFix, W: 64}, 8},
		{Type{Kind: KindSFix, W: 12}, 2},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.ty.Width(), "%+v", c.ty)
	}
}
