// Package protocol implements the streaming frame codec (C3): a resumable,
// byte-driven state machine that extracts framed command responses and raw
// signal frames from a serial byte stream, and encodes outgoing command
// requests. The outgoing request encodings are listed in encode.go.
package protocol

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/librescoot/sbs-host/pkg/sbs"
)

const (
	frameStartMagic uint32 = 0xBBBBBBBB
	frameEndByte    byte   = 0xEE
)

// payloadType identifies which command/frame kind is currently being
// decoded, carried through the tail states (PayloadEndChar, Crc, EndChar)
// that are common to every payload type.
type payloadType int

const (
	ptListFrames payloadType = iota
	ptGetFrameInfo
	ptEnableFrame
	ptDisableFrame
	ptDataFrame
	ptNullFrame
)

// decoderState is the top-level state. Body states carry their own
// sub-state in Decoder.sub.
type decoderState int

const (
	stStartWord decoderState = iota
	stFrameLength
	stPayloadStartChar
	stDataFrame
	stListFrames
	stGetFrameInfo
	stPayloadEndChar
	stCrc
	stEndChar
)

// Sub-states for the body state machines.
const (
	dfFrameID = iota
	dfTimestamp
	dfDataLen
	dfData
)

const (
	lfNumFrames = iota
	lfFrameID
	lfFrameNameLen
	lfFrameName
)

const (
	giIsEnabled = iota
	giNumSignals
	giSignalNameLen
	giSignalName
	giSignalTypeLen
	giSignalType
)

// FrameInfo is one entry of a list-frames response: a frame's id and name.
type FrameInfo struct {
	ID   uint32
	Name string
}

// SignalInfo is one entry of a get-frame-info response: a signal's name and
// parsed type.
type SignalInfo struct {
	Name string
	Type sbs.Type
}

// FrameDetails is the full get-frame-info response body.
type FrameDetails struct {
	Enabled bool
	Signals []SignalInfo
}

// DecodedFrameKind tags which command response DecodedFrame carries.
type DecodedFrameKind int

const (
	FrameListFrames DecodedFrameKind = iota
	FrameGetFrameInfo
	FrameEnableFrame
	FrameDisableFrame
)

// DecodedFrame is a decoded command response.
type DecodedFrame struct {
	Kind    DecodedFrameKind
	Frames  []FrameInfo  // set when Kind == FrameListFrames
	Details FrameDetails // set when Kind == FrameGetFrameInfo
}

// ResultKind tags which field of a DecodeResult is meaningful.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultErr
	ResultCmdFrame
	ResultSignalFrame
)

// DecodeResult is one event produced by Decoder.Decode.
type DecodeResult struct {
	Kind   ResultKind
	Err    string
	Cmd    DecodedFrame
	Signal sbs.RawSignalFrame
}

func none() DecodeResult { return DecodeResult{Kind: ResultNone} }
func errResult(format string, args ...any) DecodeResult {
	return DecodeResult{Kind: ResultErr, Err: fmt.Sprintf(format, args...)}
}
func cmdResult(d DecodedFrame) DecodeResult { return DecodeResult{Kind: ResultCmdFrame, Cmd: d} }
func signalResult(s sbs.RawSignalFrame) DecodeResult {
	return DecodeResult{Kind: ResultSignalFrame, Signal: s}
}

// Decoder is the resumable frame-codec state machine. Zero value is not
// valid; use NewDecoder.
type Decoder struct {
	state decoderState
	sub   int
	pt    payloadType
	endCh byte

	buf    []byte
	offset int

	frameLen         int
	frameStartOffset int
	payloadEndOffset int
	lenExceeded      bool // LEN already reported as exceeded for this frame

	// in-progress data-frame decode
	dataFrameID   uint32
	dataTimestamp uint32
	dataLen       uint32
	dataBytes     []byte

	// in-progress list-frames decode
	numFrames   uint32
	curFrameID  uint32
	nameLen     int
	frames      []FrameInfo

	// in-progress get-frame-info decode
	giEnabled    bool
	giNumSignals uint32
	giSignalName string
	giSignals    []SignalInfo
	giStrLen     int
}

// NewDecoder returns a fresh decoder positioned at StartWord.
func NewDecoder() *Decoder {
	return &Decoder{state: stStartWord}
}

// AddData appends newly-received bytes to the decoder's internal buffer.
// The codec never copies bytes it is not consuming: data already decoded is
// dropped from the front of the buffer on frame completion or resync, not
// copied elsewhere.
func (d *Decoder) AddData(data []byte) {
	d.buf = append(d.buf, data...)
}

// Decode runs the state machine until either one event is produced or the
// buffered input is exhausted (no event: ResultNone). Whenever enough bytes
// are buffered for the current step, the cursor advances by at least one
// byte or an event is yielded; a step that lacks bytes (e.g. fewer than four
// bytes in StartWord) waits without consuming anything.
func (d *Decoder) Decode() DecodeResult {
	for {
		clearRead := false
		var produced *DecodeResult

		switch d.state {
		case stStartWord:
			magic, ok := d.peekU32()
			if !ok {
				return none()
			}
			if magic == frameStartMagic {
				d.consumeU32()
				d.state = stFrameLength
			} else {
				d.consumeU8()
				clearRead = true
			}

		case stFrameLength:
			fl, ok := d.consumeU32()
			if !ok {
				return none()
			}
			d.frameLen = int(fl)
			d.frameStartOffset = d.offset
			d.lenExceeded = false
			d.state = stPayloadStartChar

		case stPayloadStartChar:
			sc, ok := d.consumeU8()
			if !ok {
				return none()
			}
			switch sc {
			case 's':
				d.dataFrameID, d.dataTimestamp, d.dataLen, d.dataBytes = 0, 0, 0, nil
				d.state, d.sub = stDataFrame, dfFrameID
			case 'l':
				d.numFrames, d.curFrameID, d.frames = 0, 0, nil
				d.state, d.sub = stListFrames, lfNumFrames
			case 'i':
				d.giEnabled, d.giNumSignals, d.giSignalName, d.giSignals = false, 0, "", nil
				d.state, d.sub = stGetFrameInfo, giIsEnabled
			case 'e':
				d.state, d.pt, d.endCh = stPayloadEndChar, ptEnableFrame, 'E'
			case 'd':
				d.state, d.pt, d.endCh = stPayloadEndChar, ptDisableFrame, 'D'
			case '(':
				d.state, d.pt, d.endCh = stPayloadEndChar, ptNullFrame, ')'
			default:
				clearRead = true
				d.state = stStartWord
			}

		case stDataFrame:
			r := d.stepDataFrame()
			if r == stepWaiting {
				return none()
			}

		case stListFrames:
			r := d.stepListFrames()
			if r == stepWaiting {
				return none()
			}

		case stGetFrameInfo:
			res, r := d.stepGetFrameInfo()
			if r == stepWaiting {
				return none()
			}
			if r == stepError {
				clearRead = true
				produced = &res
				d.state = stStartWord
			}

		case stPayloadEndChar:
			ec, ok := d.consumeU8()
			if !ok {
				return none()
			}
			if ec == d.endCh {
				d.payloadEndOffset = d.offset
				d.state = stCrc
			} else {
				res := errResult("Invalid payload end char %d", ec)
				produced = &res
				clearRead = true
				d.state = stStartWord
			}

		case stCrc:
			crcBytes, ok := d.peekN(2)
			if !ok {
				return none()
			}
			crc := binary.LittleEndian.Uint16(crcBytes)
			d.consumeU16()

			// CRC-16/ARC over PAYLOAD_START_CHAR through PAYLOAD_END_CHAR
			// inclusive. frameStartOffset marks the start char (recorded on
			// entry to PayloadStartChar); payloadEndOffset marks just past
			// the end char (recorded on leaving PayloadEndChar).
			crcData := d.buf[d.frameStartOffset:d.payloadEndOffset]
			calc := crc16ARC(crcData)

			if crc == calc {
				d.state = stEndChar
			} else {
				res := errResult("Invalid frame CRC")
				produced = &res
				clearRead = true
				d.state = stStartWord
			}

		case stEndChar:
			ec, ok := d.consumeU8()
			if !ok {
				return none()
			}
			clearRead = true
			if ec == frameEndByte {
				produced = d.finishFrame()
			} else {
				res := errResult("Invalid frame end character %d", ec)
				produced = &res
			}
			d.state = stStartWord
		}

		d.checkLenExceeded()

		if clearRead {
			d.clearRead()
		}

		if produced != nil {
			return *produced
		}
	}
}

// checkLenExceeded reports (once per frame, non-fatally) when the cursor has
// advanced past the declared LEN while still inside the frame body, i.e.
// before PayloadEndChar was reached. LEN is advisory and is never used to
// drive framing or CRC math, so this is a log, not an abort: the decoder
// keeps running off PAYLOAD_START_CHAR/PAYLOAD_END_CHAR/CRC as usual.
func (d *Decoder) checkLenExceeded() {
	if d.lenExceeded || d.frameLen <= 0 {
		return
	}
	switch d.state {
	case stStartWord, stFrameLength, stPayloadStartChar, stCrc, stEndChar:
		return
	}
	if d.offset-d.frameStartOffset > d.frameLen {
		log.Printf("protocol: frame body exceeded declared LEN (%d bytes) before PayloadEndChar", d.frameLen)
		d.lenExceeded = true
	}
}

type stepResult int

const (
	stepWaiting stepResult = iota
	stepContinue
	stepError
)

func (d *Decoder) stepDataFrame() stepResult {
	switch d.sub {
	case dfFrameID:
		v, ok := d.consumeU32()
		if !ok {
			return stepWaiting
		}
		d.dataFrameID = v
		d.sub = dfTimestamp
	case dfTimestamp:
		v, ok := d.consumeU32()
		if !ok {
			return stepWaiting
		}
		d.dataTimestamp = v
		d.sub = dfDataLen
	case dfDataLen:
		v, ok := d.consumeU32()
		if !ok {
			return stepWaiting
		}
		d.dataLen = v
		if v > 0 {
			d.sub = dfData
		} else {
			d.state, d.pt, d.endCh = stPayloadEndChar, ptDataFrame, 'S'
		}
	case dfData:
		b, ok := d.consumeN(int(d.dataLen))
		if !ok {
			return stepWaiting
		}
		d.dataBytes = b
		d.state, d.pt, d.endCh = stPayloadEndChar, ptDataFrame, 'S'
	}
	return stepContinue
}

func (d *Decoder) stepListFrames() stepResult {
	switch d.sub {
	case lfNumFrames:
		v, ok := d.consumeU32()
		if !ok {
			return stepWaiting
		}
		d.numFrames = v
		if v > 0 {
			d.sub = lfFrameID
		} else {
			d.state, d.pt, d.endCh = stPayloadEndChar, ptListFrames, 'L'
		}
	case lfFrameID:
		v, ok := d.consumeU32()
		if !ok {
			return stepWaiting
		}
		d.curFrameID = v
		d.sub = lfFrameNameLen
	case lfFrameNameLen:
		v, ok := d.consumeU8()
		if !ok {
			return stepWaiting
		}
		d.nameLen = int(v)
		d.sub = lfFrameName
	case lfFrameName:
		s, ok := d.consumeString(d.nameLen)
		if !ok {
			return stepWaiting
		}
		d.frames = append(d.frames, FrameInfo{ID: d.curFrameID, Name: s})
		if len(d.frames) == int(d.numFrames) {
			d.state, d.pt, d.endCh = stPayloadEndChar, ptListFrames, 'L'
		} else {
			d.sub = lfFrameID
		}
	}
	return stepContinue
}

func (d *Decoder) stepGetFrameInfo() (DecodeResult, stepResult) {
	switch d.sub {
	case giIsEnabled:
		v, ok := d.consumeU8()
		if !ok {
			return DecodeResult{}, stepWaiting
		}
		switch v {
		case 0x00:
			d.giEnabled = false
		case 0x01:
			d.giEnabled = true
		default:
			return errResult("Invalid frame enabled value %d", v), stepError
		}
		d.sub = giNumSignals
	case giNumSignals:
		v, ok := d.consumeU32()
		if !ok {
			return DecodeResult{}, stepWaiting
		}
		d.giNumSignals = v
		if v > 0 {
			d.sub = giSignalNameLen
		} else {
			d.state, d.pt, d.endCh = stPayloadEndChar, ptGetFrameInfo, 'I'
		}
	case giSignalNameLen:
		v, ok := d.consumeU8()
		if !ok {
			return DecodeResult{}, stepWaiting
		}
		d.giStrLen = int(v)
		d.sub = giSignalName
	case giSignalName:
		s, ok := d.consumeString(d.giStrLen)
		if !ok {
			return DecodeResult{}, stepWaiting
		}
		d.giSignalName = s
		d.sub = giSignalTypeLen
	case giSignalTypeLen:
		v, ok := d.consumeU8()
		if !ok {
			return DecodeResult{}, stepWaiting
		}
		d.giStrLen = int(v)
		d.sub = giSignalType
	case giSignalType:
		s, ok := d.consumeString(d.giStrLen)
		if !ok {
			return DecodeResult{}, stepWaiting
		}
		ty, ok := sbs.ParseTypeName(s)
		if !ok {
			return errResult("Invalid signal type %q", s), stepError
		}
		d.giSignals = append(d.giSignals, SignalInfo{Name: d.giSignalName, Type: ty})
		if len(d.giSignals) == int(d.giNumSignals) {
			d.state, d.pt, d.endCh = stPayloadEndChar, ptGetFrameInfo, 'I'
		} else {
			d.sub = giSignalNameLen
		}
	}
	return DecodeResult{}, stepContinue
}

// finishFrame builds the DecodeResult event for the payload type that just
// completed successfully. Null/keepalive frames produce no event.
func (d *Decoder) finishFrame() *DecodeResult {
	var res DecodeResult
	switch d.pt {
	case ptListFrames:
		res = cmdResult(DecodedFrame{Kind: FrameListFrames, Frames: d.frames})
	case ptGetFrameInfo:
		res = cmdResult(DecodedFrame{Kind: FrameGetFrameInfo, Details: FrameDetails{
			Enabled: d.giEnabled,
			Signals: d.giSignals,
		}})
	case ptEnableFrame:
		res = cmdResult(DecodedFrame{Kind: FrameEnableFrame})
	case ptDisableFrame:
		res = cmdResult(DecodedFrame{Kind: FrameDisableFrame})
	case ptDataFrame:
		res = signalResult(sbs.RawSignalFrame{
			FrameID:   sbs.FrameID(d.dataFrameID),
			Timestamp: d.dataTimestamp,
			Data:      d.dataBytes,
		})
	case ptNullFrame:
		return nil
	}
	return &res
}

func (d *Decoder) clearRead() {
	d.buf = d.buf[d.offset:]
	d.offset = 0
}

func (d *Decoder) unread() int { return len(d.buf) - d.offset }

func (d *Decoder) consumeU8() (byte, bool) {
	if d.unread() < 1 {
		return 0, false
	}
	b := d.buf[d.offset]
	d.offset++
	return b, true
}

func (d *Decoder) consumeU16() (uint16, bool) {
	if d.unread() < 2 {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(d.buf[d.offset : d.offset+2])
	d.offset += 2
	return v, true
}

func (d *Decoder) consumeU32() (uint32, bool) {
	if d.unread() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(d.buf[d.offset : d.offset+4])
	d.offset += 4
	return v, true
}

func (d *Decoder) peekU32() (uint32, bool) {
	if d.unread() < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(d.buf[d.offset : d.offset+4]), true
}

func (d *Decoder) peekN(n int) ([]byte, bool) {
	if d.unread() < n {
		return nil, false
	}
	return d.buf[d.offset : d.offset+n], true
}

func (d *Decoder) consumeN(n int) ([]byte, bool) {
	if d.unread() < n {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, d.buf[d.offset:d.offset+n])
	d.offset += n
	return out, true
}

func (d *Decoder) consumeString(n int) (string, bool) {
	if d.unread() < n {
		return "", false
	}
	s := string(d.buf[d.offset : d.offset+n])
	d.offset += n
	return s, true
}
