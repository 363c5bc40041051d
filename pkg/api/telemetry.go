package api

import "context"

// TracedFunc is the unit wrapped by Telemetry.
type TracedFunc func(ctx context.Context) (any, error)

// Telemetry wraps functions so that each call is recorded as a span named
// spanName. A nil Telemetry leaves functions untouched.
type Telemetry interface {
	TraceMethod(spanName string, fn TracedFunc) TracedFunc
}
