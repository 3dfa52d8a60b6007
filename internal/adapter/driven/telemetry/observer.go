package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

const instrumentationName = "github.com/ericfisherdev/inboxrelay/pipeline"

// Compile-time interface satisfaction check.
var _ driven.PipelineObserver = (*Observer)(nil)

// Observer records one span per pipeline run, with an event per state, and
// counts finished runs by channel, terminal state and reason.
type Observer struct {
	tracer trace.Tracer
	runs   metric.Int64Counter
}

// NewObserver creates an Observer bound to the given providers. Nil providers
// select the global ones.
func NewObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*Observer, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	runs, err := mp.Meter(instrumentationName).Int64Counter(
		"relay.pipeline.runs",
		metric.WithDescription("Finished pipeline runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}

	return &Observer{tracer: tp.Tracer(instrumentationName), runs: runs}, nil
}

// StartRun opens the run span.
func (o *Observer) StartRun(ctx context.Context, channel model.Channel, eventID string) (context.Context, driven.RunTrace) {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(channel),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("relay.channel", string(channel)),
			attribute.String("relay.event_id", eventID),
		),
	)
	return ctx, &runTrace{ctx: ctx, span: span, runs: o.runs}
}

type runTrace struct {
	ctx  context.Context
	span trace.Span
	runs metric.Int64Counter
}

func (r *runTrace) Enter(state string) {
	r.span.AddEvent("state", trace.WithAttributes(attribute.String("relay.state", state)))
}

func (r *runTrace) End(outcome driven.RunOutcome) {
	attrs := []attribute.KeyValue{
		attribute.String("relay.channel", string(outcome.Channel)),
		attribute.String("relay.state", outcome.State),
		attribute.String("relay.reason", outcome.Reason),
	}

	r.span.SetAttributes(append(attrs,
		attribute.String("relay.tenant_id", outcome.TenantID),
		attribute.String("relay.last_state", outcome.LastState),
	)...)

	if outcome.Err != nil {
		r.span.RecordError(outcome.Err)
		r.span.SetStatus(codes.Error, outcome.Reason)
	} else {
		r.span.SetStatus(codes.Ok, "")
	}

	r.runs.Add(r.ctx, 1, metric.WithAttributes(attrs...))
	r.span.End()
}
