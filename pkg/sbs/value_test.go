package sbs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToF64Named(t *testing.T) {
	require.Equal(t, float64(42), Value{Kind: KindUint8, U8: 42}.ToF64())
	require.Equal(t, float64(-5), Value{Kind: KindInt8, I8: -5}.ToF64())
	require.Equal(t, float64(3.5), Value{Kind: KindFloat32, F32: 3.5}.ToF64())
}

func TestToF64FixedPoint(t *testing.T) {
	// ufix(8, -4): raw=16 -> 16 * 2^-4 = 1.0
	v := Value{Kind: KindUFix, W: 8, E: -4, Raw: 16}
	require.Equal(t, 1.0, v.ToF64())

	// sfix(8, -4): raw=-16 (two's complement already widened) -> -1.0
	sv := Value{Kind: KindSFix, W: 8, E: -4, SRaw: -16}
	require.Equal(t, -1.0, sv.ToF64())
}

// Invariant 6: type-projection monotonicity. For ufix(w, e) with e <= 0,
// to_f64(raw) < to_f64(raw+1) for all raw < 2^w - 1.
func TestUFixMonotonicity(t *testing.T) {
	for _, w := range []uint32{4, 8, 12} {
		for _, e := range []int32{0, -1, -4, -8} {
			max := uint64(1)<<w - 1
			for raw := uint64(0); raw < max; raw++ {
				a := Value{Kind: KindUFix, W: w, E: e, Raw: raw}.ToF64()
				b := Value{Kind: KindUFix, W: w, E: e, Raw: raw + 1}.ToF64()
				require.Less(t, a, b, "w=%d e=%d raw=%d", w, e, raw)
			}
		}
	}
}

func TestValueStringRendersFixedPointViaToF64(t *testing.T) {
	v := Value{Kind: KindUFix, W: 8, E: -4, Raw: 16}
	require.Equal(t, "1", v.String())
}

func TestPow2ExactForSmallExponents(t *testing.T) {
	require.Equal(t, 1.0, pow2(0))
	require.Equal(t, 8.0, pow2(3))
	require.Equal(t, 0.125, pow2(-3))
}
