package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return New(tp.Tracer("test"), opts...), exporter
}

func TestTraceMethod_Success(t *testing.T) {
	tracer, exporter := newTestTracer(t, WithAttributes(attribute.String("service", "orders")))

	out, err := tracer.TraceMethod("workflow.wf.step.s1", func(ctx context.Context) (any, error) {
		return "done", nil
	})(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "workflow.wf.step.s1", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("service", "orders"))
}

func TestTraceMethod_ErrorMarksSpan(t *testing.T) {
	tracer, exporter := newTestTracer(t)
	boom := errors.New("boom")

	_, err := tracer.TraceMethod("workflow.wf.action.s1", func(ctx context.Context) (any, error) {
		return nil, boom
	})(context.Background())
	require.ErrorIs(t, err, boom)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestTraceMethod_NestsSpans(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	inner := tracer.TraceMethod("inner", func(ctx context.Context) (any, error) { return nil, nil })
	outer := tracer.TraceMethod("outer", func(ctx context.Context) (any, error) { return inner(ctx) })
	_, err := outer(context.Background())
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	// Spans are exported as they end: inner first.
	assert.Equal(t, "inner", spans[0].Name)
	assert.Equal(t, "outer", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestNew_NilTracerUsesGlobal(t *testing.T) {
	tracer := New(nil)
	require.NotNil(t, tracer.tracer)

	out, err := tracer.TraceMethod("noop", func(ctx context.Context) (any, error) { return 1, nil })(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}
