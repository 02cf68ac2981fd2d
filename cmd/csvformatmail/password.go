package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/pure-golang/csvmail/mailer"
)

// passwordPrompt reads the SMTP password without echo from the controlling
// terminal, so it works while the csv comes from stdin.
func passwordPrompt(out io.Writer) mailer.PromptFunc {
	return func() (string, error) {
		fd := int(os.Stdin.Fd())
		if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
			defer tty.Close()
			fd = int(tty.Fd())
		}
		if !term.IsTerminal(fd) {
			return "", errors.New("no terminal to prompt for the password, set SMTP_PASSWORD")
		}

		_, _ = fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", errors.Wrap(err, "failed to read password")
		}
		return string(b), nil
	}
}
