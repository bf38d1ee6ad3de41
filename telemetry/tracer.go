package telemetry

import (
	"context"
	"maps"
)

// Tracer abstracts the tracing backend so the pipeline never depends on a
// concrete exporter. The default is the zero-overhead noop tracer.
type Tracer interface {
	// StartSpan opens a new span under the trace carried by ctx.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes and releases the backend.
	Shutdown(ctx context.Context) error

	// IsEnabled reports whether spans are actually recorded.
	IsEnabled() bool
}

// Span is one traced interval, usually a stage execution or a store call.
type Span interface {
	// SetAttributes attaches key/value metadata to the span.
	SetAttributes(attrs ...Attribute)

	// SetStatus sets the span outcome.
	SetStatus(status Status, description string)

	// RecordError records a failure on the span.
	RecordError(err error)

	// End closes the span.
	End()
}

// SpanOption mutates the configuration of a span under construction.
type SpanOption func(*SpanConfig)

// SpanConfig collects the options applied at StartSpan.
type SpanConfig struct {
	Attributes map[string]any
}

// Attribute is one key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

// Status is the span outcome code.
type Status struct {
	Code int
}

var (
	StatusOK    = Status{Code: 1}
	StatusError = Status{Code: 2}
)

// WithAttributes attaches the given attributes at span start.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *SpanConfig) {
		if cfg.Attributes == nil {
			cfg.Attributes = make(map[string]any)
		}
		maps.Copy(cfg.Attributes, attrs)
	}
}
