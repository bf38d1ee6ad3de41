package telemetry

import (
	"context"
	"sync"
)

var (
	globalTracer Tracer = Noop()
	tracerMutex  sync.RWMutex
)

// Init installs the process tracer. Optional: without it every span is a
// noop.
func Init(tracer Tracer) {
	tracerMutex.Lock()
	defer tracerMutex.Unlock()
	globalTracer = tracer
}

// Get returns the current tracer.
func Get() Tracer {
	tracerMutex.RLock()
	defer tracerMutex.RUnlock()
	return globalTracer
}

// StartSpan opens a span on the current tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return Get().StartSpan(ctx, name, opts...)
}

// Shutdown flushes the current tracer.
func Shutdown(ctx context.Context) error {
	return Get().Shutdown(ctx)
}

// IsEnabled reports whether the current tracer records spans.
func IsEnabled() bool {
	return Get().IsEnabled()
}

// BuildAttributes turns alternating key/value strings into an attribute map.
func BuildAttributes(pairs ...string) map[string]any {
	if len(pairs)%2 != 0 {
		panic("BuildAttributes: pairs must be even number of arguments")
	}

	result := make(map[string]any)
	for i := 0; i < len(pairs); i += 2 {
		result[pairs[i]] = pairs[i+1]
	}
	return result
}
