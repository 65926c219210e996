package sbs

import (
	"fmt"
	"strings"
)

// FrameID identifies a signal frame on the wire.
type FrameID uint32

// SignalID identifies a signal uniquely across the system as the pair
// (frame_id, signal_name).
type SignalID struct {
	FrameID FrameID
	Name    string
}

// SignalDescriptor is the metadata for one named, typed signal within a
// frame. Signals are order-significant: payload bytes decode in this order.
type SignalDescriptor struct {
	Name string
	Type Type
}

// FrameDescriptor is the metadata for one signal frame: its id, name,
// enabled flag, and ordered signal schema.
type FrameDescriptor struct {
	ID      FrameID
	Name    string
	Enabled bool
	Signals []SignalDescriptor
}

// RawSignalFrame is the protocol-layer representation of a signal-data
// frame as extracted by the streaming codec, before typed decoding.
type RawSignalFrame struct {
	FrameID   FrameID
	Timestamp uint32
	Data      []byte
}

// SignalFrameValue is the application-layer, typed representation of one
// signal frame's latest sample: a descriptor plus an ordered vector of
// values matching descriptor.Signals.
type SignalFrameValue struct {
	Descriptor FrameDescriptor
	Timestamp  uint32
	Values     []Value
}

// NewSignalFrameValue builds a zero-valued SignalFrameValue for a
// descriptor, one default value per declared signal.
func NewSignalFrameValue(d FrameDescriptor) SignalFrameValue {
	values := make([]Value, len(d.Signals))
	for i, s := range d.Signals {
		values[i] = s.Type.DefaultValue()
	}
	return SignalFrameValue{Descriptor: d, Values: values}
}

// DecodeSignals decodes an ordered vector of values from data according to
// schema. It fails (ok=false) if data is exhausted mid-signal or if any
// bytes remain once every signal has been decoded — data's length must
// exactly equal the sum of declared signal widths.
func DecodeSignals(schema []SignalDescriptor, data []byte) ([]Value, bool) {
	r := NewBinaryReader(data)
	values := make([]Value, len(schema))

	for i, sig := range schema {
		v, ok := sig.Type.DecodeBytes(r)
		if !ok {
			return nil, false
		}
		values[i] = v
	}

	if len(r.bytes) != 0 {
		return nil, false
	}

	return values, true
}

// UpdateFromBytes decodes data into sfv's Values in place, advancing the
// timestamp. It returns false (leaving sfv unmodified on a best-effort
// basis — the caller must drop the frame) if decoding fails.
func (sfv *SignalFrameValue) UpdateFromBytes(timestamp uint32, data []byte) bool {
	values, ok := DecodeSignals(sfv.Descriptor.Signals, data)
	if !ok {
		return false
	}
	sfv.Timestamp = timestamp
	sfv.Values = values
	return true
}

// String renders a SignalFrameValue as "name(t=<ts>, sig=val, ...)".
func (sfv SignalFrameValue) String() string {
	parts := make([]string, len(sfv.Descriptor.Signals))
	for i, s := range sfv.Descriptor.Signals {
		parts[i] = fmt.Sprintf("%s=%s", s.Name, sfv.Values[i])
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s(t=%d)", sfv.Descriptor.Name, sfv.Timestamp)
	}
	return fmt.Sprintf("%s(t=%d, %s)", sfv.Descriptor.Name, sfv.Timestamp, strings.Join(parts, ", "))
}
