package market

import (
	"errors"
	"strings"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	TransportError ErrorKind = iota + 1
	InvalidResponse
	MalformedRecord
	EmptySeries
	InsufficientHistory
)

func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport_error"
	case InvalidResponse:
		return "invalid_response"
	case MalformedRecord:
		return "malformed_record"
	case EmptySeries:
		return "empty_series"
	case InsufficientHistory:
		return "insufficient_history"
	default:
		return "unknown"
	}
}

// Error is a tagged pipeline failure. ProviderMessage carries the
// provider's own explanation when the payload had one.
type Error struct {
	Kind            ErrorKind
	Message         string
	ProviderMessage string
	Err             error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrTransport           = &Error{Kind: TransportError}
	ErrInvalidResponse     = &Error{Kind: InvalidResponse}
	ErrMalformedRecord     = &Error{Kind: MalformedRecord}
	ErrEmptySeries         = &Error{Kind: EmptySeries}
	ErrInsufficientHistory = &Error{Kind: InsufficientHistory}
)

// NewError returns an *Error of the given kind.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.ProviderMessage != "" {
		b.WriteString(" (provider: ")
		b.WriteString(e.ProviderMessage)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf extracts the kind of a pipeline error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
