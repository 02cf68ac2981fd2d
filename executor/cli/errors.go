package cli

import "fmt"

// ErrorKind tells how running the external program failed.
type ErrorKind string

const (
	StartFailed ErrorKind = "StartFailed"
	WriteFailed ErrorKind = "WriteFailed"
	ExitFailed  ErrorKind = "ExitFailed"
)

// ExternalProcessError is returned by Pipe. A broken pipe is never reported.
type ExternalProcessError struct {
	Kind    ErrorKind
	Command string
	Err     error
}

func (e *ExternalProcessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Command, e.Kind, e.Err)
}

func (e *ExternalProcessError) Unwrap() error {
	return e.Err
}
