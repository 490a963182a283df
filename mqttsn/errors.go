package mqttsn

import (
	"fmt"

	"github.com/golang-io/mqttsn/pkt"
)

// Kind enumerates the caller-visible error kinds from spec §4.G/§7. It
// names the kind, not a Go type per error — Error.Kind discriminates,
// matching the spec's "error kinds (not type names)" framing.
type Kind int

const (
	NotConnected Kind = iota
	Timeout
	Rejected
	EncodeError
	QueueFull
	InvalidArgument
	TopicUnknown
)

func (k Kind) String() string {
	switch k {
	case NotConnected:
		return "not connected"
	case Timeout:
		return "timeout"
	case Rejected:
		return "rejected"
	case EncodeError:
		return "encode error"
	case QueueFull:
		return "queue full"
	case InvalidArgument:
		return "invalid argument"
	case TopicUnknown:
		return "topic unknown"
	default:
		return "unknown"
	}
}

// Error is the engine's public error type. Code is only meaningful when
// Kind == Rejected; Err carries the underlying cause, if any, and is
// reachable via errors.Unwrap.
type Error struct {
	Kind Kind
	Code pkt.ReturnCode
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == Rejected {
		return fmt.Sprintf("mqttsn: %s: %s", e.Kind, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("mqttsn: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("mqttsn: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, mqttsn.ErrTimeout) against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons against operations that don't need
// to carry extra fields.
var (
	ErrNotConnected     = &Error{Kind: NotConnected}
	ErrTimeout          = &Error{Kind: Timeout}
	ErrQueueFull        = &Error{Kind: QueueFull}
	ErrInvalidArgument  = &Error{Kind: InvalidArgument}
	ErrTopicUnknown     = &Error{Kind: TopicUnknown}
)
