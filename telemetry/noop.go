package telemetry

import (
	"context"
)

// noopTracer is the default tracer: no spans, no allocations beyond the
// shared instances.
type noopTracer struct{}

// noopSpan is the span handed out by noopTracer.
type noopSpan struct{}

// Noop returns the no-op tracer.
func Noop() Tracer {
	return &noopTracer{}
}

// StartSpan implements Tracer.
func (t *noopTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, &noopSpan{}
}

// Shutdown implements Tracer.
func (t *noopTracer) Shutdown(ctx context.Context) error {
	return nil
}

// IsEnabled implements Tracer.
func (t *noopTracer) IsEnabled() bool {
	return false
}

// SetAttributes implements Span.
func (s *noopSpan) SetAttributes(attrs ...Attribute) {}

// SetStatus implements Span.
func (s *noopSpan) SetStatus(status Status, description string) {}

// RecordError implements Span.
func (s *noopSpan) RecordError(err error) {}

// End implements Span.
func (s *noopSpan) End() {}
