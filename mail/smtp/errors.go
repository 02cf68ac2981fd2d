package smtp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind tells at which stage a transport operation failed.
type ErrorKind string

const (
	ConnectFailed ErrorKind = "ConnectFailed"
	TLSFailed     ErrorKind = "TLSFailed"
	AuthFailed    ErrorKind = "AuthFailed"
	SendFailed    ErrorKind = "SendFailed"
)

// ErrSessionClosed is returned by Deliver after Close.
var ErrSessionClosed = errors.New("session is closed")

// TransportError wraps every failure of the SMTP session. None of them are
// retried.
type TransportError struct {
	Kind ErrorKind
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp.%s (%s): %v", e.Kind, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a TransportError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Kind == kind
	}
	return false
}

func newError(kind ErrorKind, addr string, err error, msg string) *TransportError {
	return &TransportError{Kind: kind, Addr: addr, Err: errors.Wrap(err, msg)}
}
