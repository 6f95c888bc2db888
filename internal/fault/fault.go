// Package fault classifies pipeline failures into the kinds that decide how
// the caller recovers: the edge loop reopens devices on DeviceIO, sessions are
// abandoned on StreamTransport, and skills turn Parse, ExternalService and
// Store failures into spoken replies.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the recovery class of an error.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that carry no kind.
	KindUnknown Kind = iota

	// KindDeviceIO marks microphone or speaker failures.
	KindDeviceIO

	// KindStreamTransport marks network or RPC failures on the audio stream.
	KindStreamTransport

	// KindParse marks skill input that does not match the expected grammar.
	KindParse

	// KindExternalService marks failures or timeouts of STT, TTS and language
	// model backends.
	KindExternalService

	// KindStore marks datastore failures.
	KindStore
)

// String returns the lowercase metric label for k.
func (k Kind) String() string {
	switch k {
	case KindDeviceIO:
		return "device_io"
	case KindStreamTransport:
		return "stream_transport"
	case KindParse:
		return "parse"
	case KindExternalService:
		return "external_service"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of kind k. A nil err is allowed for failures that have
// no underlying cause, such as a parse mismatch.
func New(k Kind, op string, err error) error {
	return &Error{Kind: k, Op: op, Err: err}
}

// DeviceIO wraps err as a KindDeviceIO failure of op.
func DeviceIO(op string, err error) error { return New(KindDeviceIO, op, err) }

// StreamTransport wraps err as a KindStreamTransport failure of op.
func StreamTransport(op string, err error) error { return New(KindStreamTransport, op, err) }

// Parse wraps err as a KindParse failure of op.
func Parse(op string, err error) error { return New(KindParse, op, err) }

// ExternalService wraps err as a KindExternalService failure of op.
func ExternalService(op string, err error) error { return New(KindExternalService, op, err) }

// Store wraps err as a KindStore failure of op.
func Store(op string, err error) error { return New(KindStore, op, err) }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
