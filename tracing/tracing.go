package tracing

import (
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Provider interface {
	trace.TracerProvider
	io.Closer
}

// ProviderBuilder hides the construction details of a provider.
type ProviderBuilder func() (Provider, error)

// Init installs the built provider globally. When the builder fails a
// NoopProvider is returned along with the error, so the caller can always
// defer Close.
func Init(creator ProviderBuilder) (Provider, error) {
	provider, err := creator()
	if err != nil {
		return NoopProvider{}, errors.Wrap(err, "failed to load tracing provider")
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return provider, nil
}

// NoopProvider drops every span.
type NoopProvider struct{ noop.TracerProvider }

func (NoopProvider) Close() error { return nil }
