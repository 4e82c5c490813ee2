// Package telemetry collects hierarchical timings of engine operations.
//
// A Collector travels through context.Context so that instrumented code does
// not change its signatures. Without a collector every call is a no-op.
//
// Example usage:
//
//	collector := telemetry.NewTimingCollector()
//	ctx := telemetry.WithCollector(context.Background(), collector)
//
//	timer := telemetry.StartTimer(ctx, "dashboard.build")
//	child := timer.Child("ledger.totals")
//	// ... work ...
//	child.End()
//	timer.End()
//
//	collector.Report(os.Stderr)
package telemetry

import (
	"context"
	"io"
)

type collectorKey struct{}

type rootTimerKey struct{}

// Collector records timers and reports them.
type Collector interface {
	// Start begins timing an operation nested under the innermost running
	// timer started through Start.
	Start(name string) Timer

	// Report writes the collected timings to w.
	Report(w io.Writer)
}

// Timer tracks one operation.
type Timer interface {
	// End stops the timer. Calling End more than once has no further effect.
	End()

	// Child starts a timer nested under this one.
	Child(name string) Timer
}

// WithCollector adds a collector to a context.
func WithCollector(ctx context.Context, collector Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, collector)
}

// FromContext returns the collector of ctx, or a no-op collector.
func FromContext(ctx context.Context) Collector {
	if collector, ok := ctx.Value(collectorKey{}).(Collector); ok {
		return collector
	}
	return noOpCollector{}
}

// WithRootTimer makes timer the parent of timers started with StartTimer.
func WithRootTimer(ctx context.Context, timer Timer) context.Context {
	return context.WithValue(ctx, rootTimerKey{}, timer)
}

// StartTimer starts a timer under the root timer of ctx if there is one,
// otherwise directly on the context's collector.
func StartTimer(ctx context.Context, name string) Timer {
	if root, ok := ctx.Value(rootTimerKey{}).(Timer); ok {
		return root.Child(name)
	}
	return FromContext(ctx).Start(name)
}
