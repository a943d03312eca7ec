package otel

import (
	"context"
	"fmt"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MeterName              = "atomref"
	MetricCommits          = "atomref.ref.commits"
	MetricCASRetries       = "atomref.ref.cas_retries"
	MetricRejections       = "atomref.ref.validation_rejections"
	MetricWatchFailures    = "atomref.ref.watch_failures"
	spanNameStressRun      = "atomref.stress"
	attributeRefName       = "ref.name"
	attributeTransitionOp  = "ref.op"
	attributeStressWorkers = "stress.workers"
)

// Instruments records reference activity as OTel counters.
// A nil *Instruments records nothing.
type Instruments struct {
	commits       metric.Int64Counter
	retries       metric.Int64Counter
	rejections    metric.Int64Counter
	watchFailures metric.Int64Counter
}

// NewInstruments registers the reference counters on meter. A nil meter
// uses the global meter provider.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	if meter == nil {
		meter = otelapi.Meter(MeterName)
	}
	commits, err := meter.Int64Counter(MetricCommits,
		metric.WithDescription("Committed reference transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricCommits, err)
	}
	retries, err := meter.Int64Counter(MetricCASRetries,
		metric.WithDescription("Swap attempts that lost a compare-and-swap race"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricCASRetries, err)
	}
	rejections, err := meter.Int64Counter(MetricRejections,
		metric.WithDescription("Candidates rejected by a validator"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricRejections, err)
	}
	watchFailures, err := meter.Int64Counter(MetricWatchFailures,
		metric.WithDescription("Notifications aborted by a failing watch"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", MetricWatchFailures, err)
	}
	return &Instruments{
		commits:       commits,
		retries:       retries,
		rejections:    rejections,
		watchFailures: watchFailures,
	}, nil
}

func (i *Instruments) RecordCommit(ctx context.Context, name, op string) {
	if i == nil {
		return
	}
	i.commits.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attributeRefName, name),
		attribute.String(attributeTransitionOp, op),
	))
}

func (i *Instruments) RecordRetry(ctx context.Context, name string) {
	if i == nil {
		return
	}
	i.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attributeRefName, name)))
}

func (i *Instruments) RecordRejection(ctx context.Context, name string) {
	if i == nil {
		return
	}
	i.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String(attributeRefName, name)))
}

func (i *Instruments) RecordWatchFailure(ctx context.Context, name string) {
	if i == nil {
		return
	}
	i.watchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attributeRefName, name)))
}
