package domain

import "fmt"

// ErrorKind classifies a domain error per the error handling design: callers
// branch on kind with errors.Is against the sentinels below, never on
// string content.
type ErrorKind int

const (
	KindInvalidArgument ErrorKind = iota
	KindNotFound
	KindBackendFailure
	KindChainTransient
	KindChainPermanent
	KindAgentFailure
	KindToolFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	case KindBackendFailure:
		return "BackendFailure"
	case KindChainTransient:
		return "ChainTransient"
	case KindChainPermanent:
		return "ChainPermanent"
	case KindAgentFailure:
		return "AgentFailure"
	case KindToolFailure:
		return "ToolFailure"
	default:
		return "Unknown"
	}
}

// Error is a domain error tagged with a Kind, wrapping an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrNotFound) match by Kind rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind ErrorKind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap tags cause with kind, preserving it for errors.Unwrap/errors.As.
func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

var (
	ErrInvalidArgument = newErr(KindInvalidArgument, "invalid argument")
	ErrNotFound        = newErr(KindNotFound, "not found")
	ErrBackendFailure  = newErr(KindBackendFailure, "backend failure")
	ErrChainTransient  = newErr(KindChainTransient, "transient chain error")
	ErrChainPermanent  = newErr(KindChainPermanent, "permanent chain error")
	ErrAgentFailure    = newErr(KindAgentFailure, "agent invocation failed")
	ErrToolFailure     = newErr(KindToolFailure, "tool invocation failed")
)
