package dkim

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"net/mail"
	"os"
	"strings"

	msgauthdkim "github.com/emersion/go-msgauth/dkim"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

var signedHeaders = []string{
	"from",
	"to",
	"subject",
	"date",
	"mime-version",
	"content-type",
	"message-id",
}

// Config enables DKIM when any field is set. Selector and one of the key
// sources are then required.
type Config struct {
	Selector   string `envconfig:"SMTP_DKIM_SELECTOR"`
	KeyPath    string `envconfig:"SMTP_DKIM_KEY_PATH"`
	PrivateKey string `envconfig:"SMTP_DKIM_PRIVATE_KEY"`
	Domain     string `envconfig:"SMTP_DKIM_DOMAIN"` // overrides the sender domain
}

func (c Config) enabled() bool {
	return strings.TrimSpace(c.Selector) != "" ||
		strings.TrimSpace(c.KeyPath) != "" ||
		c.PrivateKey != "" ||
		strings.TrimSpace(c.Domain) != ""
}

// Signer signs the wire form of outgoing messages. A nil *Signer passes
// messages through.
type Signer struct {
	domain   string
	selector string
	key      crypto.Signer
}

// LoadFromEnv builds a Signer from SMTP_DKIM_* variables. It returns nil and
// no error when DKIM is not configured.
func LoadFromEnv() (*Signer, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.Wrap(err, "failed to envconfig.Process")
	}
	return New(c)
}

// New builds a Signer from c, or returns nil when c is empty.
func New(c Config) (*Signer, error) {
	if !c.enabled() {
		return nil, nil
	}

	selector := strings.TrimSpace(c.Selector)
	if selector == "" {
		return nil, errors.New("dkim: SMTP_DKIM_SELECTOR is required when enabling DKIM")
	}

	var pemData []byte
	switch keyPath := strings.TrimSpace(c.KeyPath); {
	case c.PrivateKey != "":
		pemData = []byte(c.PrivateKey)
	case keyPath != "":
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, errors.Wrap(err, "dkim: failed to read private key")
		}
		pemData = data
	default:
		return nil, errors.New("dkim: provide SMTP_DKIM_KEY_PATH or SMTP_DKIM_PRIVATE_KEY")
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, errors.Wrap(err, "dkim: failed to parse private key")
	}

	return &Signer{
		domain:   strings.ToLower(strings.TrimSpace(c.Domain)),
		selector: selector,
		key:      key,
	}, nil
}

func (s *Signer) Selector() string {
	if s == nil {
		return ""
	}
	return s.selector
}

// Sign adds a DKIM-Signature header with relaxed/relaxed canonicalization.
// Messages that already carry one are returned unchanged.
func (s *Signer) Sign(data []byte, from string) ([]byte, error) {
	if s == nil || s.key == nil {
		return data, nil
	}
	if hasSignature(data) {
		return data, nil
	}

	domain := s.domain
	if domain == "" {
		domain = senderDomain(from)
	}
	if domain == "" {
		return nil, errors.Errorf("dkim: unable to determine signing domain from %q", from)
	}

	opts := &msgauthdkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: msgauthdkim.CanonicalizationRelaxed,
		BodyCanonicalization:   msgauthdkim.CanonicalizationRelaxed,
		HeaderKeys:             signedHeaders,
	}

	var signed bytes.Buffer
	if err := msgauthdkim.Sign(&signed, bytes.NewReader(normalizeLineEndings(data)), opts); err != nil {
		return nil, errors.Wrap(err, "dkim: failed to sign")
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if signer, ok := key.(crypto.Signer); ok {
				return signer, nil
			}
			return nil, errors.New("unsupported private key type in PKCS#8 container")
		}
		pemData = rest
	}
	return nil, errors.New("no private key found in PEM data")
}

// senderDomain accepts a bare address or a display-name form.
func senderDomain(from string) string {
	from = strings.TrimSpace(from)
	if addr, err := mail.ParseAddress(from); err == nil {
		from = addr.Address
	}
	from = strings.TrimSuffix(strings.TrimPrefix(from, "<"), ">")
	if i := strings.LastIndex(from, "@"); i >= 0 && i+1 < len(from) {
		return strings.ToLower(from[i+1:])
	}
	return ""
}

func hasSignature(data []byte) bool {
	upper := bytes.ToUpper(data)
	return bytes.HasPrefix(upper, []byte("DKIM-SIGNATURE:")) ||
		bytes.Contains(upper, []byte("\nDKIM-SIGNATURE:"))
}

func normalizeLineEndings(data []byte) []byte {
	if bytes.Contains(data, []byte("\r\n")) || !bytes.Contains(data, []byte("\n")) {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
}
