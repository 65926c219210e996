package sbs

import (
	"fmt"
	"math"
)

// Value is a typed value variant mirroring Type: it carries the raw decoded
// bits for the kind it holds, plus (W, E) for the fixed-point kinds.
type Value struct {
	Kind Kind

	U8  uint8
	U16 uint16
	U32 uint32
	I8  int8
	I16 int16
	I32 int32
	F32 float32

	W    uint32
	E    int32
	Raw  uint64 // UFix raw bits
	SRaw int64  // SFix raw bits (two's complement, widened)
}

// DefaultValue returns the zero value for a Type.
func (t Type) DefaultValue() Value {
	switch t.Kind {
	case KindUFix:
		return Value{Kind: KindUFix, W: t.W, E: t.E}
	case KindSFix:
		return Value{Kind: KindSFix, W: t.W, E: t.E}
	default:
		return Value{Kind: t.Kind}
	}
}

// pow2 computes 2^e exactly via bit shifts for small magnitudes, falling
// back to floating-point scaling (math.Ldexp) for larger ones; precision
// loss beyond the f64 mantissa past that point is accepted.
func pow2(e int32) float64 {
	abs := e
	if abs < 0 {
		abs = -abs
	}
	if abs <= 62 {
		if e >= 0 {
			return float64(int64(1) << uint(e))
		}
		return 1.0 / float64(int64(1)<<uint(-e))
	}
	return math.Ldexp(1.0, int(e))
}

// ToF64 projects a Value to a real number. Named types convert directly;
// fixed-point types compute raw * 2^e.
func (v Value) ToF64() float64 {
	switch v.Kind {
	case KindUint8:
		return float64(v.U8)
	case KindUint16:
		return float64(v.U16)
	case KindUint32:
		return float64(v.U32)
	case KindInt8:
		return float64(v.I8)
	case KindInt16:
		return float64(v.I16)
	case KindInt32:
		return float64(v.I32)
	case KindFloat32:
		return float64(v.F32)
	case KindUFix:
		return float64(v.Raw) * pow2(v.E)
	case KindSFix:
		return float64(v.SRaw) * pow2(v.E)
	default:
		return 0
	}
}

// String renders a Value using the same raw*2^e projection as ToF64 for
// fixed-point kinds, and the natural decimal form for named kinds.
func (v Value) String() string {
	switch v.Kind {
	case KindUint8:
		return fmt.Sprintf("%d", v.U8)
	case KindUint16:
		return fmt.Sprintf("%d", v.U16)
	case KindUint32:
		return fmt.Sprintf("%d", v.U32)
	case KindInt8:
		return fmt.Sprintf("%d", v.I8)
	case KindInt16:
		return fmt.Sprintf("%d", v.I16)
	case KindInt32:
		return fmt.Sprintf("%d", v.I32)
	case KindFloat32:
		return fmt.Sprintf("%v", v.F32)
	case KindUFix, KindSFix:
		return fmt.Sprintf("%v", v.ToF64())
	default:
		return "<invalid>"
	}
}
