package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pure-golang/csvmail/env"
	"github.com/pure-golang/csvmail/executor/cli"
	"github.com/pure-golang/csvmail/logger"
	"github.com/pure-golang/csvmail/mail"
	"github.com/pure-golang/csvmail/mail/dkim"
	"github.com/pure-golang/csvmail/mail/smtp"
	"github.com/pure-golang/csvmail/mailer"
	"github.com/pure-golang/csvmail/metrics"
	"github.com/pure-golang/csvmail/render"
	"github.com/pure-golang/csvmail/review"
	"github.com/pure-golang/csvmail/table"
	"github.com/pure-golang/csvmail/tracing"
	"github.com/pure-golang/csvmail/tracing/jaeger"
)

type config struct {
	Log     logger.Config
	SMTP    smtp.Config
	Pager   cli.Config
	Metrics metrics.Config
	Tracing jaeger.Config
}

// loadConfig reads the environment, then lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, o *options) (config, error) {
	var c config
	if err := env.InitConfig(&c.Log, &c.SMTP, &c.Pager, &c.Metrics, &c.Tracing); err != nil {
		return c, errors.Wrap(err, "failed to load configuration")
	}

	f := cmd.Flags()
	if f.Changed("host") {
		c.SMTP.Host = o.host
	}
	if f.Changed("port") {
		c.SMTP.Port = o.port
	}
	if f.Changed("starttls") {
		c.SMTP.StartTLS = o.startTLS
	}
	if f.Changed("login") {
		c.SMTP.Login = o.login
	}
	c.SMTP = c.SMTP.Resolve()

	return c, nil
}

func run(cmd *cobra.Command, o *options, s streams) error {
	c, err := loadConfig(cmd, o)
	if err != nil {
		return err
	}

	log := logger.InitDefault(c.Log)
	ctx := logger.NewContext(cmd.Context(), log)

	metricsCloser, err := metrics.InitDefault(c.Metrics)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, metricsCloser, "failed to stop metrics server")

	if c.Tracing.Enabled() {
		provider, err := tracing.Init(jaeger.NewProviderBuilder(c.Tracing))
		if err != nil {
			logger.FromContextWithErr(ctx, err).Warn("tracing disabled")
		}
		defer closeQuietly(ctx, provider, "failed to flush traces")
	}

	pacing, err := o.pacing()
	if err != nil {
		return err
	}

	msgs, err := loadMessages(o, s.in)
	if err != nil {
		return err
	}

	m, err := newMailer(c.SMTP, s.errOut)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		m.Add(msg)
	}
	log.Debug("mails loaded",
		"count", m.Len(),
		"addr", c.SMTP.Addr(),
		"security", c.SMTP.Security(),
	)

	if o.withoutConfirm {
		return m.SendAll(ctx, pacing)
	}

	c.Pager.Stdout, c.Pager.Stderr = s.out, s.errOut
	pager := cli.New(c.Pager)
	defer closeQuietly(ctx, pager, "failed to close pager")
	if err := pager.Start(); err != nil {
		logger.FromContextWithErr(ctx, err).Warn("pager is not available, show will fail")
	}

	return review.New(m, pager, s.in, s.errOut).Run(ctx, pacing)
}

func newMailer(cfg smtp.Config, promptOut io.Writer) (*mailer.Mailer, error) {
	signer, err := dkim.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	var opts smtp.DialerOptions
	if signer != nil {
		opts.Signer = signer
	}

	return mailer.New(
		smtp.NewDialer(cfg, &opts),
		mailer.Config{Login: cfg.Login, Password: cfg.Password},
		&mailer.Options{Prompt: passwordPrompt(promptOut)},
	), nil
}

// loadMessages renders every row. The first failing row aborts the run, so
// nothing is sent from a partly broken input.
func loadMessages(o *options, stdin io.Reader) ([]mail.Message, error) {
	text, err := os.ReadFile(o.templatePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read template")
	}
	renderer, err := render.New(string(text))
	if err != nil {
		return nil, err
	}

	delim, err := o.delimiter()
	if err != nil {
		return nil, err
	}
	types, err := o.columnTypes()
	if err != nil {
		return nil, err
	}

	in := stdin
	if o.csvPath != "-" {
		f, err := os.Open(o.csvPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open input csv")
		}
		defer f.Close()
		in = f
	}

	tab, err := table.Read(in, table.Options{Delimiter: delim, Types: types})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", o.csvPath)
	}

	namespaces := tab.Namespaces(o.colsName)
	msgs := make([]mail.Message, 0, len(namespaces))
	for i, ns := range namespaces {
		rendered, err := renderer.Render(ns)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		msg, err := mail.Parse(rendered)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		if err := msg.Validate(); err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func closeQuietly(ctx context.Context, c io.Closer, msg string) {
	if err := c.Close(); err != nil {
		logger.FromContextWithErr(ctx, err).Warn(msg)
	}
}
