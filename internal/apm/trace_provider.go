// Package apm wires OpenTelemetry tracing for the aggregator.
package apm

import (
	"context"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/book-aggregator/internal/logger"
)

// Provider selects the span exporter backend.
type Provider string

const (
	ZipkinProvider  Provider = "ZIPKIN_PROVIDER"
	OTLPProvider    Provider = "OTLP_PROVIDER"
	ConsoleProvider Provider = "CONSOLE_PROVIDER"
	EmptyProvider   Provider = "EMPTY_PROVIDER"
)

// TraceProvider owns the installed tracer provider.
type TraceProvider interface {
	Stop() error
}

type TracerOptions struct {
	provider Provider
}

type TracerOption func(*TracerOptions)

// WithProvider selects the exporter backend. Unknown providers fall
// back to the empty provider.
func WithProvider(provider Provider, log logger.LoggerInterface) TracerOption {
	return func(o *TracerOptions) {
		switch provider {
		case ZipkinProvider, OTLPProvider, ConsoleProvider:
			o.provider = provider
		default:
			log.Warn(context.Background(), "unknown trace provider, tracing disabled",
				"provider", string(provider))
			o.provider = EmptyProvider
		}
	}
}

// NewTraceProvider builds the selected exporter, installs a sampling
// tracer provider globally, and returns a handle for shutdown. Exporter
// endpoints come from the standard OTEL_EXPORTER_OTLP_* variables. On
// exporter failure tracing is disabled rather than aborting startup.
func NewTraceProvider(log logger.LoggerInterface, options ...TracerOption) TraceProvider {
	opts := &TracerOptions{provider: EmptyProvider}
	for _, opt := range options {
		opt(opts)
	}

	exporter, err := newExporter(opts.provider)
	if err != nil {
		log.Error(context.Background(), "trace exporter init failed, tracing disabled",
			"provider", string(opts.provider), "error", err)
		return noopTraceProvider{}
	}
	if exporter == nil {
		return noopTraceProvider{}
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(os.Getenv("OTEL_SERVICE_NAME")),
			attribute.String("otel.provider", string(opts.provider)),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	return &traceProvider{tp: tp}
}

func newExporter(provider Provider) (sdktrace.SpanExporter, error) {
	switch provider {
	case ZipkinProvider:
		return zipkin.New(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	case OTLPProvider:
		return newOTLPExporter()
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, nil
	}
}

// newOTLPExporter speaks grpc or http/protobuf depending on
// OTEL_EXPORTER_OTLP_PROTOCOL, passing OTEL_EXPORTER_OTLP_HEADERS
// (key=value) through to the collector.
func newOTLPExporter() (sdktrace.SpanExporter, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	headers := parseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))

	if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "http/protobuf" {
		return otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpointURL(endpoint),
			otlptracehttp.WithHeaders(headers),
		)
	}
	return otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpointURL(endpoint),
		otlptracegrpc.WithHeaders(headers),
	)
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		if key, value, ok := strings.Cut(pair, "="); ok {
			headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return headers
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

func (p *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

type noopTraceProvider struct{}

func (noopTraceProvider) Stop() error { return nil }
