package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed exchange.
type ErrorKind int

const (
	// KindConnection covers dial, write and read failures on the stream.
	KindConnection ErrorKind = iota + 1
	// KindProtocol covers replies that are empty or cannot be parsed.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

var (
	ErrNoResponse = errors.New("session: no response from server")
	ErrNilRequest = errors.New("session: nil request")
)

// Error is returned by Dial and Send.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("session: %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("session: %s %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries a session error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

func connectionError(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

func protocolError(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}
