package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/pure-golang/csvmail/logger/devslog"
	"github.com/pure-golang/csvmail/logger/noop"
	"github.com/pure-golang/csvmail/logger/stdjson"
)

type Level string
type Provider string
type contextKeyT string

var contextKey = contextKeyT("github.com/pure-golang/csvmail/logger")

const (
	INFO  Level = "info"
	ERROR Level = "error"
	WARN  Level = "warn"
	DEBUG Level = "debug"

	ProviderDevSlog Provider = "dev"      // colored output for a terminal
	ProviderStdJson Provider = "std_json" // JSON lines
	ProviderNoop    Provider = "noop"     // for unit tests
)

// Config selects the log handler. The interactive prompt shares the terminal
// with logs, so the default level only lets warnings through.
type Config struct {
	Provider Provider `envconfig:"LOG_PROVIDER" default:"dev"`
	Level    Level    `envconfig:"LOG_LEVEL" default:"warn"`
}

// New creates a logger writing to w.
func New(c Config, w io.Writer) *slog.Logger {
	level := convertLevel(c.Level)
	switch c.Provider {
	case ProviderNoop:
		return noop.New()
	case ProviderStdJson:
		return stdjson.New(w, level)
	case ProviderDevSlog:
		fallthrough
	default:
		return devslog.New(w, level)
	}
}

// InitDefault creates a logger on stderr and sets it as the slog default.
// Stdout is left to the program output.
func InitDefault(c Config) *slog.Logger {
	l := New(c, os.Stderr)
	slog.SetDefault(l)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Default().Warn("otel error", "error", err.Error())
	}))
	return l
}

// FromContext returns the logger stored in ctx or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, l)
}

// WithErr returns the default logger with an error field.
func WithErr(err error) *slog.Logger {
	return appendErr(slog.Default(), err)
}

// FromContextWithErr returns the logger from ctx with an error field.
func FromContextWithErr(ctx context.Context, err error) *slog.Logger {
	return appendErr(FromContext(ctx), err)
}

func appendErr(l *slog.Logger, err error) *slog.Logger {
	var stackTracer interface {
		StackTrace() errors.StackTrace
	}

	if errors.As(err, &stackTracer) {
		l = l.With("stack", stackTracer.StackTrace())
	}

	return l.With("error", err.Error())
}

func convertLevel(level Level) slog.Level {
	switch Level(strings.ToLower(string(level))) {
	case ERROR:
		return slog.LevelError
	case WARN:
		return slog.LevelWarn
	case DEBUG:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
