package session

import (
	"errors"
	"fmt"
)

var (
	ErrProtocol        = errors.New("protocol error")
	ErrAlreadyJoined   = errors.New("already joined a channel")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNegotiation     = errors.New("negotiation failed")
	ErrTransport       = errors.New("signaling transport error")
)

// ErrorKind classifies errors delivered through Events.OnError.
type ErrorKind int

const (
	TransportError ErrorKind = iota + 1
	NegotiationError
)

func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport"
	case NegotiationError:
		return "negotiation"
	default:
		return "unknown"
	}
}

// Error describes a failed operation, optionally for one remote uid.
type Error struct {
	Op      string
	UID     string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.UID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.UID, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewPeerError(op, uid string, err error) *Error {
	return &Error{Op: op, UID: uid, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// negotiationError tags cause as ErrNegotiation.
func negotiationError(op, uid string, cause error) *Error {
	return NewPeerError(op, uid, fmt.Errorf("%w: %w", ErrNegotiation, cause))
}

// transportError tags cause as ErrTransport.
func transportError(op string, cause error) *Error {
	return NewError(op, fmt.Errorf("%w: %w", ErrTransport, cause))
}
