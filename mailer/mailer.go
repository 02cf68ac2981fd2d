package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pure-golang/csvmail/logger"
	"github.com/pure-golang/csvmail/mail"
)

// Config holds the credentials for the SMTP server. An empty Password with a
// Login set is requested through Options.Prompt on the first send.
type Config struct {
	Login    string
	Password string
}

// PromptFunc asks the user for the SMTP password.
type PromptFunc func() (string, error)

// Options contains optional parameters for a Mailer.
type Options struct {
	Prompt    PromptFunc
	Sleep     func(time.Duration) // time.Sleep by default
	BatchSize int                 // DefaultBatchSize by default
}

// Mailer owns the pending queue and sends it in batches, one SMTP session
// per batch.
type Mailer struct {
	mx        sync.Mutex
	opener    mail.Opener
	login     string
	password  string
	hasPass   bool
	prompt    PromptFunc
	sleep     func(time.Duration)
	batchSize int
	pending   []mail.Message
}

// New creates a Mailer that opens sessions through opener.
func New(opener mail.Opener, cfg Config, options *Options) *Mailer {
	m := &Mailer{
		opener:    opener,
		login:     cfg.Login,
		password:  cfg.Password,
		hasPass:   cfg.Password != "",
		sleep:     time.Sleep,
		batchSize: DefaultBatchSize,
	}
	if options != nil {
		m.prompt = options.Prompt
		if options.Sleep != nil {
			m.sleep = options.Sleep
		}
		if options.BatchSize > 0 {
			m.batchSize = options.BatchSize
		}
	}
	return m
}

// Add appends msg to the pending queue.
func (m *Mailer) Add(msg mail.Message) {
	m.mx.Lock()
	defer m.mx.Unlock()

	m.pending = append(m.pending, msg)
}

// Len returns the number of pending messages.
func (m *Mailer) Len() int {
	m.mx.Lock()
	defer m.mx.Unlock()

	return len(m.pending)
}

// Pending returns a copy of the pending queue.
func (m *Mailer) Pending() []mail.Message {
	m.mx.Lock()
	defer m.mx.Unlock()

	return append([]mail.Message(nil), m.pending...)
}

// Render returns the preview of the pending queue, each message under a
// numbered banner.
func (m *Mailer) Render() string {
	pending := m.Pending()
	blocks := make([]string, len(pending))
	for i, msg := range pending {
		blocks[i] = fmt.Sprintf("#\n# Mail %d\n#\n%s\n", i, msg.Render())
	}
	return strings.Join(blocks, "\n")
}

// SendAll delivers the pending queue. Batches run one after another and
// pacing is waited after every delivery. The queue is cleared only when all
// batches succeed; on error it is left untouched, so messages of the failed
// run may already have been delivered.
func (m *Mailer) SendAll(ctx context.Context, pacing time.Duration) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	total := len(m.pending)
	if total == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Mailer.SendAll")
	defer span.End()

	creds, err := m.credentials()
	if err != nil {
		recordError(span, err, "failed to get credentials")
		return err
	}

	n := NumBatches(total, m.batchSize)
	span.SetAttributes(
		attribute.Int("mailer.messages", total),
		attribute.Int("mailer.batches", n),
		attribute.String("mailer.pacing", pacing.String()),
	)

	log := logger.FromContext(ctx)
	for i, batch := range Partition(m.pending, n) {
		if len(batch) == 0 {
			continue
		}
		started := time.Now()
		if err := m.sendBatch(ctx, creds, batch, pacing); err != nil {
			batchesTotal.WithLabelValues("error").Inc()
			recordError(span, err, "batch failed")
			return errors.Wrapf(err, "batch %d/%d failed", i+1, n)
		}
		batchDuration.Observe(time.Since(started).Seconds())
		batchesTotal.WithLabelValues("ok").Inc()
		log.Debug("batch sent", "batch", i+1, "batches", n, "size", len(batch))
	}

	m.pending = nil
	span.SetStatus(codes.Ok, "")
	return nil
}

func (m *Mailer) sendBatch(ctx context.Context, creds *mail.Credentials, batch []mail.Message, pacing time.Duration) error {
	ctx, span := tracer.Start(ctx, "Mailer.sendBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("mailer.batch_size", len(batch)))

	session, err := m.opener.Open(ctx, creds)
	if err != nil {
		recordError(span, err, "failed to open session")
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.FromContextWithErr(ctx, closeErr).Warn("failed to close SMTP session")
		}
	}()

	for _, msg := range batch {
		if err := session.Deliver(ctx, msg); err != nil {
			recordError(span, err, "failed to deliver")
			return err
		}
		messagesSent.Inc()
		m.sleep(pacing)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// credentials returns nil without a login. The password prompt runs at most
// once per Mailer; a failed prompt is retried on the next send.
func (m *Mailer) credentials() (*mail.Credentials, error) {
	if m.login == "" {
		return nil, nil
	}
	if !m.hasPass {
		if m.prompt == nil {
			return nil, errors.Errorf("no password for login %q", m.login)
		}
		password, err := m.prompt()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read password")
		}
		m.password = password
		m.hasPass = true
	}
	return &mail.Credentials{Login: m.login, Password: m.password}, nil
}
