package jaeger

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/pure-golang/csvmail/tracing"
)

var _ tracing.Provider = (*Provider)(nil)

// Config of the OTLP/HTTP exporter, accepted by Jaeger and most collectors.
// Export is off while EndPoint is empty.
type Config struct {
	EndPoint    string `envconfig:"TRACING_ENDPOINT"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"csvformatmail"`
	AppVersion  string `envconfig:"APP_VERSION"`
}

func (c Config) Enabled() bool {
	return c.EndPoint != ""
}

// Provider flushes the spans of the run on Close.
type Provider struct {
	*tracesdk.TracerProvider
}

func (j *Provider) Close() error {
	ctx := context.Background()
	if err := j.ForceFlush(ctx); err != nil {
		if shutdownErr := j.TracerProvider.Shutdown(ctx); shutdownErr != nil {
			return errors.Wrap(err, "trace force flush failed (also shutdown failed)")
		}
		return errors.Wrap(err, "trace force flush failed")
	}

	return errors.Wrap(j.TracerProvider.Shutdown(ctx), "failed to shutdown tracer provider")
}

func NewProviderBuilder(conf Config) tracing.ProviderBuilder {
	return func() (tracing.Provider, error) {
		if conf.EndPoint == "" {
			return nil, errors.New("empty tracing endpoint")
		}
		if conf.ServiceName == "" {
			return nil, errors.New("service name is empty")
		}

		exp, err := otlptrace.New(
			context.Background(),
			otlptracehttp.NewClient(
				otlptracehttp.WithEndpointURL(conf.EndPoint),
			),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create OTLP exporter")
		}
		tp := tracesdk.NewTracerProvider(
			tracesdk.WithBatcher(exp),
			tracesdk.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String(conf.ServiceName),
				semconv.ServiceVersionKey.String(conf.AppVersion),
			)),
			tracesdk.WithSampler(tracesdk.AlwaysSample()),
		)

		return &Provider{TracerProvider: tp}, nil
	}
}
