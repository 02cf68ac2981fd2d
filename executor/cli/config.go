package cli

import (
	"io"
	"strings"
)

// Config holds the external program to run.
type Config struct {
	// Command line of the program, split on whitespace (e.g. "less -R").
	Command string `envconfig:"PAGER" default:"less"`

	// Stdout and Stderr of the program; nil means the ones of this process.
	Stdout io.Writer `ignored:"true"`
	Stderr io.Writer `ignored:"true"`
}

func (c Config) argv() []string {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return []string{"less"}
	}
	return fields
}
