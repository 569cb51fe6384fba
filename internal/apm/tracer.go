package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans against the global tracer provider.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	SpanFromContext(ctx context.Context) Span
}

// Span is the subset of the OTEL span surface the services use.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	AddEvent(name string, options ...trace.EventOption)
	NoticeError(err error)
	SetStatus(code codes.Code, description string)
	End(options ...trace.SpanEndOption)
}

// NewTracer returns a tracer scoped to the given instrumentation name.
func NewTracer(name string) Tracer {
	return tracer{otel.Tracer(name)}
}

type tracer struct {
	t trace.Tracer
}

func (t tracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, s := t.t.Start(ctx, name, opts...)
	return ctx, span{s}
}

func (t tracer) SpanFromContext(ctx context.Context) Span {
	return span{trace.SpanFromContext(ctx)}
}

type span struct {
	s trace.Span
}

func (s span) SetAttributes(values ...attribute.KeyValue) {
	s.s.SetAttributes(values...)
}

func (s span) AddEvent(name string, options ...trace.EventOption) {
	s.s.AddEvent(name, options...)
}

// NoticeError records the error and marks the span failed.
func (s span) NoticeError(err error) {
	s.s.RecordError(err)
	s.s.SetStatus(codes.Error, err.Error())
}

func (s span) SetStatus(code codes.Code, description string) {
	s.s.SetStatus(code, description)
}

func (s span) End(options ...trace.SpanEndOption) {
	s.s.End(options...)
}
