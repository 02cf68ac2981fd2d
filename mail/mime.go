package mail

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TransportMessage is the wire form of a Message: SMTP envelope plus
// CRLF-terminated MIME data.
type TransportMessage struct {
	From       string
	Recipients []string
	Data       []byte
}

var addressHeaders = map[string]bool{
	"from":     true,
	"to":       true,
	"cc":       true,
	"bcc":      true,
	"reply-to": true,
	"sender":   true,
}

var recipientHeaders = []string{"To", "Cc", "Bcc"}

// now is replaced in tests.
var now = time.Now

// Validate reports the address errors ToTransportMessage would return, so a
// batch can be checked before anything is sent.
func (m Message) Validate() error {
	if _, _, err := m.envelope(); err != nil {
		return err
	}
	for _, f := range m.header.fields {
		if _, err := encodeHeaderValue(f.Name, f.Value); err != nil {
			return err
		}
	}
	return nil
}

// ToTransportMessage converts m into a text/plain MIME message. User headers
// are kept in order; Bcc is used for the envelope only. Date and Message-ID
// are added when missing. Each call builds a new value.
func (m Message) ToTransportMessage() (TransportMessage, error) {
	from, rcpts, err := m.envelope()
	if err != nil {
		return TransportMessage{}, err
	}

	var buf bytes.Buffer
	for _, f := range m.header.fields {
		if strings.EqualFold(f.Name, "Bcc") {
			continue
		}
		value, err := encodeHeaderValue(f.Name, f.Value)
		if err != nil {
			return TransportMessage{}, err
		}
		writeHeader(&buf, f.Name, value)
	}
	if !m.header.Has("Date") {
		writeHeader(&buf, "Date", now().Format(time.RFC1123Z))
	}
	if !m.header.Has("Message-ID") {
		writeHeader(&buf, "Message-ID", messageID(from))
	}

	ascii := isASCII(m.body)
	if !m.header.Has("MIME-Version") {
		writeHeader(&buf, "MIME-Version", "1.0")
	}
	if !m.header.Has("Content-Type") {
		writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
	}
	if !m.header.Has("Content-Transfer-Encoding") {
		if ascii {
			writeHeader(&buf, "Content-Transfer-Encoding", "7bit")
		} else {
			writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		}
	}
	buf.WriteString("\r\n")

	body := toCRLF(m.body)
	if ascii {
		buf.WriteString(body)
	} else {
		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(body)); err != nil {
			return TransportMessage{}, errors.Wrap(err, "failed to encode body")
		}
		if err := qp.Close(); err != nil {
			return TransportMessage{}, errors.Wrap(err, "failed to encode body")
		}
	}

	return TransportMessage{
		From:       from,
		Recipients: rcpts,
		Data:       buf.Bytes(),
	}, nil
}

// envelope returns the sender and all To, Cc and Bcc addresses.
func (m Message) envelope() (string, []string, error) {
	fromList, err := parseAddressList("From", m.header.Get("From"))
	if err != nil {
		return "", nil, err
	}
	if len(fromList) == 0 {
		return "", nil, &ValidationError{Kind: InvalidAddress, Header: "From"}
	}

	var rcpts []string
	for _, f := range m.header.fields {
		if !isRecipientHeader(f.Name) {
			continue
		}
		list, err := parseAddressList(f.Name, f.Value)
		if err != nil {
			return "", nil, err
		}
		for _, a := range list {
			rcpts = append(rcpts, a.Address)
		}
	}
	if len(rcpts) == 0 {
		return "", nil, &ValidationError{Kind: InvalidAddress, Header: "To"}
	}
	return fromList[0].Address, rcpts, nil
}

func isRecipientHeader(name string) bool {
	for _, r := range recipientHeaders {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}

func parseAddressList(name, value string) ([]*netmail.Address, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	list, err := netmail.ParseAddressList(value)
	if err != nil {
		return nil, &ValidationError{Kind: InvalidAddress, Header: name, Err: err}
	}
	return list, nil
}

func encodeHeaderValue(name, value string) (string, error) {
	if isASCII(value) {
		return value, nil
	}
	if !addressHeaders[strings.ToLower(name)] {
		return mime.QEncoding.Encode("utf-8", value), nil
	}
	list, err := parseAddressList(name, value)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", "), nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at+1 < len(from) {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
