// Package telemetry records engine spans with OpenTelemetry.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/stepflow/pkg/api"
)

// InstrumentationName is the tracer name used when none is given.
const InstrumentationName = "github.com/petrijr/stepflow"

var _ api.Telemetry = (*Tracer)(nil)

// Tracer implements api.Telemetry on top of an OpenTelemetry tracer.
type Tracer struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

type Option func(*Tracer)

// WithAttributes adds attrs to every span.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(t *Tracer) {
		t.attrs = append(t.attrs, attrs...)
	}
}

// New wraps tracer. A nil tracer falls back to the global provider.
func New(tracer trace.Tracer, opts ...Option) *Tracer {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	t := &Tracer{tracer: tracer}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TraceMethod returns fn wrapped in a span named spanName. A returned error
// is recorded on the span and marks it failed.
func (t *Tracer) TraceMethod(spanName string, fn api.TracedFunc) api.TracedFunc {
	return func(ctx context.Context) (any, error) {
		ctx, span := t.tracer.Start(ctx, spanName, trace.WithAttributes(t.attrs...))
		defer span.End()

		out, err := fn(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		span.SetStatus(codes.Ok, "")
		return out, nil
	}
}
