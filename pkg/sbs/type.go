// Package sbs implements the type and value model of the signal-frame wire
// protocol: type descriptors, typed value variants, and the textual type
// grammar used by the device's get-frame-info response.
package sbs

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Type or Value.
type Kind int

const (
	KindUint8 Kind = iota
	KindUint16
	KindUint32
	KindInt8
	KindInt16
	KindInt32
	KindFloat32
	KindUFix
	KindSFix
)

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindUFix:
		return "ufix"
	case KindSFix:
		return "sfix"
	default:
		return "unknown"
	}
}

// Type is a signal type descriptor: one of the named scalar kinds, or a
// fixed-point kind carrying its bit width W and scaling exponent E.
type Type struct {
	Kind Kind
	W    uint32
	E    int32
}

// Width returns the container size in bytes for this type on the wire.
func (t Type) Width() int {
	switch t.Kind {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindUFix, KindSFix:
		return fixedContainerSize(t.W)
	default:
		return 0
	}
}

// fixedContainerSize maps a fixed-point bit width to its container size in
// bytes: w<=8->1, w<=16->2, w<=32->4, w<=64->8.
func fixedContainerSize(w uint32) int {
	switch {
	case w <= 8:
		return 1
	case w <= 16:
		return 2
	case w <= 32:
		return 4
	case w <= 64:
		return 8
	default:
		return 0
	}
}

// ParseTypeName parses a textual type name per the grammar:
//
//	NAMED = "uint8" | "uint16" | "uint32" | "int8" | "int16" | "int32" | "float32"
//	FIX   = ("ufix"|"sfix") "(" DIGITS "," SPACE+ SIGNED_DIGITS ")"
//
// An unrecognised name returns ok=false, never an error — the caller treats
// it as "no such type".
func ParseTypeName(s string) (Type, bool) {
	switch s {
	case "uint8":
		return Type{Kind: KindUint8}, true
	case "uint16":
		return Type{Kind: KindUint16}, true
	case "uint32":
		return Type{Kind: KindUint32}, true
	case "int8":
		return Type{Kind: KindInt8}, true
	case "int16":
		return Type{Kind: KindInt16}, true
	case "int32":
		return Type{Kind: KindInt32}, true
	case "float32":
		return Type{Kind: KindFloat32}, true
	}

	var base string
	switch {
	case strings.HasPrefix(s, "ufix("):
		base = "ufix"
	case strings.HasPrefix(s, "sfix("):
		base = "sfix"
	default:
		return Type{}, false
	}

	body := s[len(base)+1:]
	if !strings.HasSuffix(body, ")") {
		return Type{}, false
	}
	body = body[:len(body)-1]

	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		return Type{}, false
	}

	wPart := body[:comma]
	rest := body[comma+1:]

	nSpaces := 0
	for nSpaces < len(rest) && rest[nSpaces] == ' ' {
		nSpaces++
	}
	if nSpaces == 0 {
		return Type{}, false
	}
	ePart := rest[nSpaces:]

	w, err := strconv.ParseUint(wPart, 10, 32)
	if err != nil {
		return Type{}, false
	}
	e, err := strconv.ParseInt(ePart, 10, 32)
	if err != nil {
		return Type{}, false
	}

	k := KindUFix
	if base == "sfix" {
		k = KindSFix
	}
	return Type{Kind: k, W: uint32(w), E: int32(e)}, true
}

// String renders a Type back to its textual name.
func (t Type) String() string {
	switch t.Kind {
	case KindUFix:
		return fmt.Sprintf("ufix(%d, %d)", t.W, t.E)
	case KindSFix:
		return fmt.Sprintf("sfix(%d, %d)", t.W, t.E)
	default:
		return t.Kind.String()
	}
}
