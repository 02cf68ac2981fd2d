package mail

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationKind identifies why a message was rejected.
type ValidationKind string

const (
	MissingRequiredHeader ValidationKind = "MissingRequiredHeader"
	InvalidAddress        ValidationKind = "InvalidAddress"
)

// Sentinel errors matched by ValidationError.Is.
var (
	ErrMissingRequiredHeader = errors.New("missing required header")
	ErrInvalidAddress        = errors.New("invalid address")
)

// ValidationError is returned when a message cannot be built.
type ValidationError struct {
	Kind   ValidationKind
	Header string
	Err    error
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingRequiredHeader:
		return fmt.Sprintf("invalid mail, %q header must be specified", e.Header)
	case InvalidAddress:
		if e.Err != nil {
			return fmt.Sprintf("invalid mail, bad address in %q header: %v", e.Header, e.Err)
		}
		return fmt.Sprintf("invalid mail, bad address in %q header", e.Header)
	default:
		return fmt.Sprintf("invalid mail: %s", e.Kind)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrMissingRequiredHeader:
		return e.Kind == MissingRequiredHeader
	case ErrInvalidAddress:
		return e.Kind == InvalidAddress
	}
	return false
}
