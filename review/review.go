package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/csvmail/executor"
	"github.com/pure-golang/csvmail/logger"
)

// Mailer is the part of *mailer.Mailer the loop drives.
type Mailer interface {
	Len() int
	Render() string
	SendAll(ctx context.Context, pacing time.Duration) error
}

// State of the review loop.
type State int

const (
	Idle State = iota
	AwaitingChoice
	AwaitingConfirmation
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingChoice:
		return "awaiting_choice"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	ChoiceShow = "show"
	ChoiceSend = "send"
	ChoiceQuit = "quit"
)

// Phrase returns the sentence the user must type to send n messages.
func Phrase(n int) string {
	return fmt.Sprintf("I want send %d mails.", n)
}

// Loop asks the user what to do with the pending messages until they are
// sent or the user quits.
type Loop struct {
	mailer Mailer
	viewer executor.Piper
	in     *bufio.Scanner
	out    io.Writer
	state  State
}

// New creates a Loop reading answers from in and writing prompts to out.
func New(m Mailer, viewer executor.Piper, in io.Reader, out io.Writer) *Loop {
	return &Loop{
		mailer: m,
		viewer: viewer,
		in:     bufio.NewScanner(in),
		out:    out,
		state:  Idle,
	}
}

// State returns the current state.
func (l *Loop) State() State {
	return l.state
}

// Run drives the loop to Done. It returns the error of a failed send or of a
// viewer that could not run; the pending queue is then left as it was.
func (l *Loop) Run(ctx context.Context, pacing time.Duration) error {
	log := logger.FromContext(ctx)
	l.state = AwaitingChoice

	for l.state != Done {
		n := l.mailer.Len()
		l.printf("Loaded %d mails. What do you want to do with?\n", n)
		l.printf(" - %s\n - %s\n - %s\n", ChoiceShow, ChoiceSend, ChoiceQuit)
		l.printf("Choice: ")

		choice, ok := l.readLine()
		if !ok {
			choice = ChoiceQuit
		}
		log.Debug("review choice", "choice", choice, "pending", n)

		switch choice {
		case ChoiceQuit:
			l.state = Done
		case ChoiceShow:
			if err := l.viewer.Pipe(ctx, strings.NewReader(l.mailer.Render())); err != nil {
				return errors.Wrap(err, "failed to show mails")
			}
		case ChoiceSend:
			sent, err := l.confirmAndSend(ctx, n, pacing)
			if err != nil {
				return err
			}
			if sent {
				l.state = Done
			}
		default:
			l.printf("Incorrect input.\n\n")
		}
	}

	return nil
}

func (l *Loop) confirmAndSend(ctx context.Context, n int, pacing time.Duration) (bool, error) {
	l.state = AwaitingConfirmation
	defer func() {
		if l.state == AwaitingConfirmation {
			l.state = AwaitingChoice
		}
	}()

	phrase := Phrase(n)
	l.printf("To confirm, type %q\n", phrase)
	l.printf("Confirmation: ")

	answer, ok := l.readLine()
	if !ok || answer != phrase {
		l.printf("Not confirmed\n")
		return false, nil
	}

	if err := l.mailer.SendAll(ctx, pacing); err != nil {
		return false, errors.Wrap(err, "failed to send mails")
	}
	l.printf("Done\n")
	return true, nil
}

// readLine returns the next line without its line terminator. ok is false at
// end of input.
func (l *Loop) readLine() (string, bool) {
	if !l.in.Scan() {
		return "", false
	}
	return strings.TrimSuffix(l.in.Text(), "\r"), true
}

func (l *Loop) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.out, format, args...)
}
