package cli

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pure-golang/csvmail/executor"
)

var _ executor.Piper = (*Executor)(nil)

// Executor runs one external program, typically the pager.
type Executor struct {
	argv   []string
	stdout io.Writer
	stderr io.Writer
	closed bool
	mx     sync.RWMutex
}

// New creates a CLI executor.
func New(cfg Config) *Executor {
	e := &Executor{
		argv:   cfg.argv(),
		stdout: cfg.Stdout,
		stderr: cfg.Stderr,
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	return e
}

// Start checks that the program exists.
func (e *Executor) Start() error {
	if _, err := exec.LookPath(e.argv[0]); err != nil {
		return &ExternalProcessError{Kind: StartFailed, Command: e.argv[0], Err: errors.Wrap(err, "command not found")}
	}
	return nil
}

// Pipe runs the program with r as its stdin. The program may stop reading
// early (a pager quit before the end); the resulting broken pipe is not an
// error. Failing to start, and a non-zero exit, are.
func (e *Executor) Pipe(ctx context.Context, r io.Reader) error {
	ctx, span := tracer.Start(ctx, "executor.Pipe")
	defer span.End()
	span.SetAttributes(attribute.String("executor.command", e.argv[0]))

	e.mx.RLock()
	defer e.mx.RUnlock()

	if e.closed {
		return errors.New("executor is closed")
	}

	started := time.Now()
	err := e.pipe(ctx, r)
	if err != nil {
		recordError(span, err)
		recordExecution(e.argv[0], "error", time.Since(started).Seconds())
		return err
	}

	recordExecution(e.argv[0], "ok", time.Since(started).Seconds())
	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Executor) pipe(ctx context.Context, r io.Reader) error {
	name := e.argv[0]
	cmd := exec.CommandContext(ctx, name, e.argv[1:]...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ExternalProcessError{Kind: StartFailed, Command: name, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &ExternalProcessError{Kind: StartFailed, Command: name, Err: err}
	}

	_, copyErr := io.Copy(stdin, r)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if copyErr != nil && !isBrokenPipe(copyErr) {
		return &ExternalProcessError{Kind: WriteFailed, Command: name, Err: copyErr}
	}
	if closeErr != nil && !isBrokenPipe(closeErr) {
		return &ExternalProcessError{Kind: WriteFailed, Command: name, Err: closeErr}
	}
	if waitErr != nil {
		return &ExternalProcessError{Kind: ExitFailed, Command: name, Err: waitErr}
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

// Close marks the executor closed. Later calls to Pipe fail.
func (e *Executor) Close() error {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.closed = true
	return nil
}
