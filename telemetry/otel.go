package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer adapts an OpenTelemetry tracer to the Tracer interface. Span
// export is whatever tracer provider the host installed via otel.SetTracerProvider;
// this package only bridges the span lifecycle.
type otelTracer struct {
	tracer   trace.Tracer
	shutdown func(ctx context.Context) error
}

// otelSpan wraps an OpenTelemetry span.
type otelSpan struct {
	span trace.Span
}

// NewOtel returns a tracer emitting through the named OpenTelemetry tracer
// of the globally installed provider. shutdown may be nil when the host
// owns the provider lifecycle.
func NewOtel(name string, shutdown func(ctx context.Context) error) Tracer {
	return &otelTracer{
		tracer:   otel.Tracer(name),
		shutdown: shutdown,
	}
}

// StartSpan implements Tracer.
func (t *otelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := &SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var attrs []attribute.KeyValue
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &otelSpan{span: span}
}

// Shutdown implements Tracer.
func (t *otelTracer) Shutdown(ctx context.Context) error {
	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

// IsEnabled implements Tracer.
func (t *otelTracer) IsEnabled() bool {
	return true
}

// SetAttributes implements Span.
func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	if s.span == nil {
		return
	}

	var otelAttrs []attribute.KeyValue
	for _, attr := range attrs {
		otelAttrs = append(otelAttrs, attribute.String(attr.Key, fmt.Sprintf("%v", attr.Value)))
	}
	s.span.SetAttributes(otelAttrs...)
}

// SetStatus implements Span.
func (s *otelSpan) SetStatus(status Status, description string) {
	if s.span == nil {
		return
	}
	if status.Code == StatusError.Code {
		s.span.SetStatus(codes.Error, description)
	} else {
		s.span.SetStatus(codes.Ok, description)
	}
}

// RecordError implements Span.
func (s *otelSpan) RecordError(err error) {
	if s.span == nil {
		return
	}
	s.span.RecordError(err)
}

// End implements Span.
func (s *otelSpan) End() {
	if s.span != nil {
		s.span.End()
	}
}
