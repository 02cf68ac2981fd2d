package mail

import (
	"context"
	"io"
	"strings"
)

// Opener establishes transport sessions. One session carries one batch.
type Opener interface {
	Open(ctx context.Context, creds *Credentials) (Session, error)
}

// Session delivers messages over an established connection.
type Session interface {
	Deliver(ctx context.Context, msg Message) error
	io.Closer
}

// Credentials used for SMTP authentication.
type Credentials struct {
	Login    string
	Password string
}

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered set of header fields. Names keep their case;
// lookups are case-insensitive.
type Header struct {
	fields []Field
}

// NewHeader builds a Header from fields, in order.
func NewHeader(fields ...Field) Header {
	var h Header
	for _, f := range fields {
		h.Set(f.Name, f.Value)
	}
	return h
}

// Set replaces the value of the first field matching name or appends a new
// one. A replaced field keeps its position and the case of its name.
func (h *Header) Set(name, value string) {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Name, name) {
			h.fields[i].Value = value
			return
		}
	}
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Get returns the value of the first field matching name.
func (h Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether a field matching name exists.
func (h Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Len returns the number of fields.
func (h Header) Len() int {
	return len(h.fields)
}

// Fields returns a copy of the fields in insertion order.
func (h Header) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

var requiredHeaders = []string{"From", "To", "Subject"}

// Message is a validated email: ordered headers plus a text body.
// It is immutable once built by NewMessage or Parse.
type Message struct {
	header Header
	body   string
}

// NewMessage validates header and returns a Message.
// From, To and Subject must be present (names compared case-insensitively).
func NewMessage(header Header, body string) (Message, error) {
	for _, name := range requiredHeaders {
		if !header.Has(name) {
			return Message{}, &ValidationError{Kind: MissingRequiredHeader, Header: name}
		}
	}
	return Message{header: NewHeader(header.fields...), body: body}, nil
}

// Header returns a copy of the message header.
func (m Message) Header() Header {
	return NewHeader(m.header.fields...)
}

// Body returns the message body.
func (m Message) Body() string {
	return m.body
}

// Render returns the human readable form: one "Name: Value" line per
// header, a blank line, then the body.
func (m Message) Render() string {
	var b strings.Builder
	for i, f := range m.header.fields {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	b.WriteString("\n\n")
	b.WriteString(m.body)
	return b.String()
}

func (m Message) String() string {
	return m.Render()
}
