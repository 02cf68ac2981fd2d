package executor

import (
	"context"
	"io"
)

// Piper runs an external program and streams input to its stdin.
type Piper interface {
	// Pipe starts the program, writes r to its stdin and waits for it to exit.
	Pipe(ctx context.Context, r io.Reader) error
	io.Closer
}
