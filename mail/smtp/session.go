package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/csvmail/logger"
	"github.com/pure-golang/csvmail/mail"
)

var (
	_ mail.Opener  = (*Dialer)(nil)
	_ mail.Session = (*Session)(nil)
)

// Signer adds a signature to the wire form of a message, e.g. DKIM.
type Signer interface {
	Sign(data []byte, from string) ([]byte, error)
}

// selectorSigner is a Signer that reports its DKIM selector.
type selectorSigner interface {
	Signer
	Selector() string
}

// DialerOptions contains optional parameters for a Dialer.
type DialerOptions struct {
	Signer    Signer
	TLSConfig *tls.Config // overrides the config derived from Config
}

// Dialer opens SMTP sessions. It implements mail.Opener.
type Dialer struct {
	cfg       Config
	signer    Signer
	tlsConfig *tls.Config
}

// NewDialer creates a Dialer. cfg is used as given; call Config.Resolve
// beforehand to apply the port and STARTTLS policy.
func NewDialer(cfg Config, options *DialerOptions) *Dialer {
	d := &Dialer{cfg: cfg}
	if options != nil {
		d.signer = options.Signer
		d.tlsConfig = options.TLSConfig
	}
	if d.tlsConfig == nil {
		d.tlsConfig = &tls.Config{
			ServerName:         cfg.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.Insecure, // #nosec G402 -- controlled by config
		}
	}
	return d
}

// Open connects, greets, optionally upgrades with STARTTLS and authenticates.
// creds are only used in STARTTLS mode.
func (d *Dialer) Open(ctx context.Context, creds *mail.Credentials) (mail.Session, error) {
	addr := d.cfg.Addr()
	ctx, span := tracer.Start(ctx, "SMTP.Open", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.address", addr),
		attribute.String("smtp.security", string(d.cfg.Security())),
		attribute.Bool("smtp.auth", creds != nil),
	)

	dialer := &net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		recordError(span, err, "failed to connect")
		return nil, newError(ConnectFailed, addr, err, "failed to connect to SMTP server")
	}

	client, terr := d.handshake(conn, creds)
	if terr != nil {
		recordError(span, terr, string(terr.Kind))
		return nil, terr
	}

	logger.FromContext(ctx).Debug("smtp session opened",
		"addr", addr,
		"security", d.cfg.Security(),
		"auth", creds != nil,
	)

	span.SetStatus(codes.Ok, "")
	return &Session{client: client, addr: addr, signer: d.signer}, nil
}

// handshake greets the server on conn and, in STARTTLS mode, upgrades the
// connection and authenticates. conn is closed on failure.
func (d *Dialer) handshake(conn net.Conn, creds *mail.Credentials) (*gosmtp.Client, *TransportError) {
	addr := d.cfg.Addr()
	helo := d.cfg.heloName()

	if d.cfg.Security() != SecurityStartTLS {
		client := d.setTimeouts(gosmtp.NewClient(conn))
		if err := client.Hello(helo); err != nil {
			_ = client.Close()
			return nil, newError(ConnectFailed, addr, err, "failed to greet SMTP server")
		}
		return client, nil
	}

	// NewClientStartTLS sends EHLO, checks the extension and switches to TLS.
	client, err := gosmtp.NewClientStartTLS(conn, d.tlsConfig)
	if err != nil {
		return nil, newError(TLSFailed, addr, err, "failed to start TLS")
	}
	d.setTimeouts(client)

	// The TLS handshake runs with the EHLO sent over the upgraded connection.
	if err := client.Hello(helo); err != nil {
		_ = client.Close()
		return nil, newError(TLSFailed, addr, err, "failed to greet over TLS")
	}
	if err := client.Noop(); err != nil {
		_ = client.Close()
		return nil, newError(TLSFailed, addr, err, "failed to greet over TLS")
	}

	if creds == nil {
		return client, nil
	}
	auth := sasl.NewPlainClient("", creds.Login, creds.Password)
	if err := client.Auth(auth); err != nil {
		_ = client.Close()
		return nil, newError(AuthFailed, addr, err, "failed to authenticate")
	}
	return client, nil
}

// setTimeouts applies the configured timeout; zero keeps the client defaults.
func (d *Dialer) setTimeouts(client *gosmtp.Client) *gosmtp.Client {
	if d.cfg.Timeout > 0 {
		client.CommandTimeout = d.cfg.Timeout
		client.SubmissionTimeout = d.cfg.Timeout
	}
	return client
}

// Session is one open SMTP connection.
type Session struct {
	mx     sync.Mutex
	client *gosmtp.Client
	addr   string
	signer Signer
	closed bool
}

// Deliver submits msg as a single transaction. Failures are not retried.
func (s *Session) Deliver(ctx context.Context, msg mail.Message) error {
	ctx, span := tracer.Start(ctx, "SMTP.Deliver", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		span.SetStatus(codes.Error, "session is closed")
		return &TransportError{Kind: SendFailed, Addr: s.addr, Err: ErrSessionClosed}
	}

	tm, err := msg.ToTransportMessage()
	if err != nil {
		recordError(span, err, "invalid message")
		return &TransportError{Kind: SendFailed, Addr: s.addr, Err: err}
	}

	span.SetAttributes(
		attribute.String("smtp.from", tm.From),
		attribute.Int("smtp.recipients_count", len(tm.Recipients)),
		attribute.Int("smtp.size", len(tm.Data)),
	)

	data := tm.Data
	var selector string
	if s.signer != nil {
		if sel, ok := s.signer.(selectorSigner); ok {
			selector = sel.Selector()
			span.SetAttributes(attribute.String("dkim.selector", selector))
		}
		data, err = s.signer.Sign(data, tm.From)
		if err != nil {
			recordError(span, err, "failed to sign")
			return newError(SendFailed, s.addr, err, "failed to sign message")
		}
	}

	if err := s.client.SendMail(tm.From, tm.Recipients, bytes.NewReader(data)); err != nil {
		recordError(span, err, "failed to send")
		return newError(SendFailed, s.addr, err, "failed to send message")
	}

	log := logger.FromContext(ctx)
	if selector != "" {
		log = log.With("dkim_selector", selector)
	}
	log.Debug("message delivered",
		"from", tm.From,
		"recipients", len(tm.Recipients),
	)

	span.SetStatus(codes.Ok, "")
	return nil
}

// Close sends QUIT and closes the connection. It is safe to call twice.
func (s *Session) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.client.Quit(); err != nil {
		// The server may drop the connection without answering QUIT.
		_ = s.client.Close()
		return errors.Wrap(err, "failed to quit SMTP session")
	}
	return nil
}
