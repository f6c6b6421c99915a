package replyx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

type ReplyKind int

const (
	ReplyKindSuccess ReplyKind = iota
	ReplyKindError
	ReplyKindNotImplemented
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyKindSuccess:
		return "success"
	case ReplyKindError:
		return "error"
	case ReplyKindNotImplemented:
		return "not_implemented"
	}
	return "unknown"
}

var replyKindKey = attribute.Key("replyx.reply_kind")

var replyKindAttribs = map[ReplyKind]attribute.Set{
	ReplyKindSuccess:        attribute.NewSet(replyKindKey.String(ReplyKindSuccess.String())),
	ReplyKindError:          attribute.NewSet(replyKindKey.String(ReplyKindError.String())),
	ReplyKindNotImplemented: attribute.NewSet(replyKindKey.String(ReplyKindNotImplemented.String())),
}

func metricsDisabled() bool {
	switch otel.GetMeterProvider().(type) {
	case metricnoop.MeterProvider:
		return true
	}
	return false
}

func recordReplyScheduled(kind ReplyKind) {
	if metricsDisabled() {
		return
	}
	repliesScheduled.Add(context.Background(), 1,
		metric.WithAttributeSet(replyKindAttribs[kind]))
}

func recordReplyDropped(kind ReplyKind) {
	if metricsDisabled() {
		return
	}
	repliesDropped.Add(context.Background(), 1,
		metric.WithAttributeSet(replyKindAttribs[kind]))
}

func recordDispatchPanic() {
	if metricsDisabled() {
		return
	}
	dispatchPanics.Add(context.Background(), 1)
}

func recordDispatchDelay(d time.Duration) {
	if metricsDisabled() {
		return
	}
	dispatchDelay.Record(context.Background(), float64(d)/float64(time.Second))
}

// startDeliverySpan has no parent: deliveries run on the dispatcher
// goroutine, detached from whatever context produced the reply.
func startDeliverySpan(method string, kind ReplyKind) trace.Span {
	_, span := tracer.Start(context.Background(), "replyx/deliver",
		trace.WithSpanKind(trace.SpanKindInternal))
	if span.IsRecording() {
		span.SetAttributes(replyKindKey.String(kind.String()))
		if method != "" {
			span.SetAttributes(semconv.RPCMethod(method))
		}
	}
	return span
}
