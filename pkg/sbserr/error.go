// Package sbserr defines the error taxonomy shared by the serial worker and
// the client façade: a small set of kinds rather than a tree of distinct
// error types.
package sbserr

import "fmt"

// Kind tags the category of an Error.
type Kind int

const (
	// KindSerial is an OS/driver failure on open/read/write/clear.
	KindSerial Kind = iota
	// KindSerialTimeout is the short per-read serial timeout; callers never
	// see this kind surfaced — it is treated as "no data" internally.
	KindSerialTimeout
	// KindTimeout is the 2-second request deadline expiring.
	KindTimeout
	// KindDecode is a codec-reported Err event.
	KindDecode
	// KindWrongFrame is a response in the wrong shape for the outstanding request.
	KindWrongFrame
	// KindInvalidCommand is a command issued in a state that cannot service it.
	KindInvalidCommand
	// KindInternal is a channel/worker failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial error"
	case KindSerialTimeout:
		return "serial timeout"
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode error"
	case KindWrongFrame:
		return "wrong frame"
	case KindInvalidCommand:
		return "invalid command"
	case KindInternal:
		return "internal error"
	default:
		return "error"
	}
}

// Error is the error type used throughout the client/worker: a kind plus a
// free-form detail string.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, sbserr.Timeout()) style checks.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func New(kind Kind, detail string) *Error { return &Error{Kind: kind, Detail: detail} }

func Serial(detail string) *Error         { return New(KindSerial, detail) }
func SerialTimeout() *Error               { return New(KindSerialTimeout, "") }
func Timeout() *Error                     { return New(KindTimeout, "") }
func Decode(detail string) *Error         { return New(KindDecode, detail) }
func WrongFrame(detail string) *Error     { return New(KindWrongFrame, detail) }
func InvalidCommand(detail string) *Error { return New(KindInvalidCommand, detail) }
func Internal(detail string) *Error       { return New(KindInternal, detail) }
