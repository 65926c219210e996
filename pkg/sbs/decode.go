package sbs

import (
	"encoding/binary"
	"math"
)

// BinaryReader is a forward-only cursor over a byte slice used to decode a
// signal frame's payload in declared signal order.
type BinaryReader struct {
	bytes []byte
}

// NewBinaryReader wraps bytes for sequential decoding.
func NewBinaryReader(bytes []byte) *BinaryReader {
	return &BinaryReader{bytes: bytes}
}

// Read consumes and returns the next n bytes, or ok=false if fewer than n
// bytes remain.
func (r *BinaryReader) Read(n int) ([]byte, bool) {
	if len(r.bytes) < n {
		return nil, false
	}
	out := r.bytes[:n]
	r.bytes = r.bytes[n:]
	return out, true
}

// DecodeBytes decodes one value of this type from the reader. Multi-byte
// integers and floats are little-endian; fixed-point reads the smallest
// container that fits its declared width.
func (t Type) DecodeBytes(r *BinaryReader) (Value, bool) {
	switch t.Kind {
	case KindUint8:
		b, ok := r.Read(1)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindUint8, U8: b[0]}, true
	case KindUint16:
		b, ok := r.Read(2)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindUint16, U16: binary.LittleEndian.Uint16(b)}, true
	case KindUint32:
		b, ok := r.Read(4)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindUint32, U32: binary.LittleEndian.Uint32(b)}, true
	case KindInt8:
		b, ok := r.Read(1)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindInt8, I8: int8(b[0])}, true
	case KindInt16:
		b, ok := r.Read(2)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindInt16, I16: int16(binary.LittleEndian.Uint16(b))}, true
	case KindInt32:
		b, ok := r.Read(4)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindInt32, I32: int32(binary.LittleEndian.Uint32(b))}, true
	case KindFloat32:
		b, ok := r.Read(4)
		if !ok {
			return Value{}, false
		}
		bits := binary.LittleEndian.Uint32(b)
		return Value{Kind: KindFloat32, F32: math.Float32frombits(bits)}, true
	case KindUFix:
		raw, ok := readContainer(r, t.W)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindUFix, W: t.W, E: t.E, Raw: raw}, true
	case KindSFix:
		raw, ok := readContainer(r, t.W)
		if !ok {
			return Value{}, false
		}
		return Value{Kind: KindSFix, W: t.W, E: t.E, SRaw: signExtend(raw, t.W)}, true
	default:
		return Value{}, false
	}
}

// readContainer reads the container size implied by a fixed-point width w
// (1/2/4/8 bytes) and returns its little-endian value widened to uint64.
func readContainer(r *BinaryReader, w uint32) (uint64, bool) {
	switch fixedContainerSize(w) {
	case 1:
		b, ok := r.Read(1)
		if !ok {
			return 0, false
		}
		return uint64(b[0]), true
	case 2:
		b, ok := r.Read(2)
		if !ok {
			return 0, false
		}
		return uint64(binary.LittleEndian.Uint16(b)), true
	case 4:
		b, ok := r.Read(4)
		if !ok {
			return 0, false
		}
		return uint64(binary.LittleEndian.Uint32(b)), true
	case 8:
		b, ok := r.Read(8)
		if !ok {
			return 0, false
		}
		return binary.LittleEndian.Uint64(b), true
	default:
		return 0, false
	}
}

// signExtend interprets the low w bits of raw as a two's-complement signed
// integer of width w and widens it to int64.
func signExtend(raw uint64, w uint32) int64 {
	if w == 0 || w >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << (w - 1)
	mask := (uint64(1) << w) - 1
	raw &= mask
	if raw&signBit != 0 {
		return int64(raw) - int64(mask) - 1
	}
	return int64(raw)
}
