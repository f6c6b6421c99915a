package replyx

import (
	"github.com/fluttercandies/replyx/contrib/buildversion"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fluttercandies/replyx"

var (
	buildVersion string = buildversion.GetVersion(instrumentationName)
	meter               = otel.Meter(instrumentationName,
		metric.WithInstrumentationVersion(buildVersion))
	tracer = otel.Tracer(instrumentationName)
)

var (
	// repliesScheduled counts completions that won the race for their callback
	// and were handed to a dispatcher.
	repliesScheduled, _ = meter.Int64Counter("replyx.replies.scheduled")

	// repliesDropped counts completions that found the callback already taken.
	repliesDropped, _ = meter.Int64Counter("replyx.replies.dropped")

	// dispatchPanics counts work units that panicked on a dispatcher goroutine.
	dispatchPanics, _ = meter.Int64Counter("replyx.dispatch.panics")

	// dispatchDelay measures the time a work unit spent queued before running.
	dispatchDelay, _ = meter.Float64Histogram("replyx.dispatch.delay",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1))
)
