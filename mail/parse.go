package mail

import (
	"regexp"
	"strings"
)

var headerLine = regexp.MustCompile(`^([^:]+): (.*)$`)

// Parse builds a Message from rendered template output.
//
// Lines are read as headers until the first empty line that follows at
// least one header; lines in that section which are not "Name: value" are
// dropped. Every following line goes to the body, newline terminated.
func Parse(text string) (Message, error) {
	var (
		header   Header
		body     strings.Builder
		inHeader = true
	)
	for _, line := range splitLines(text) {
		if inHeader {
			if m := headerLine.FindStringSubmatch(line); m != nil {
				header.Set(m[1], m[2])
			}
			if line == "" && header.Len() > 0 {
				inHeader = false
			}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	return NewMessage(header, body.String())
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
