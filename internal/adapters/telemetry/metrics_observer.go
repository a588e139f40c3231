package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aegisnexus/sovereignty-gateway"

// MetricsObserver counts gateway signals with OpenTelemetry instruments.
type MetricsObserver struct {
	topic string

	rejected      metric.Int64Counter
	encodeFailed  metric.Int64Counter
	published     metric.Int64Counter
	publishFailed metric.Int64Counter
	received      metric.Int64Counter
	decodeFailed  metric.Int64Counter
	sinkFailed    metric.Int64Counter
	duplicates    metric.Int64Counter
	weight        metric.Int64Histogram
}

func NewMetricsObserver(provider metric.MeterProvider, topic string) (*MetricsObserver, error) {
	meter := provider.Meter(instrumentationName)
	o := &MetricsObserver{topic: topic}

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{record}"))
		errs = append(errs, err)
		return c
	}
	o.rejected = counter("svt.gate.rejected", "Records dropped by the admission gate")
	o.encodeFailed = counter("svt.gate.encode_failed", "Admitted records that could not be serialized")
	o.published = counter("svt.publisher.acknowledged", "Envelopes acknowledged by the log")
	o.publishFailed = counter("svt.publisher.failed", "Envelopes the log did not acknowledge")
	o.received = counter("svt.subscriber.received", "Records decoded by the subscriber")
	o.decodeFailed = counter("svt.subscriber.decode_failed", "Envelopes skipped as malformed")
	o.sinkFailed = counter("svt.subscriber.sink_failed", "Records the sink failed to archive")
	o.duplicates = counter("svt.subscriber.duplicates", "Redelivered records skipped by dedup")

	weight, err := meter.Int64Histogram("svt.publisher.weight",
		metric.WithDescription("Consensus weight of acknowledged records"))
	errs = append(errs, err)
	o.weight = weight

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create svt instruments: %w", err)
	}
	return o, nil
}

func (o *MetricsObserver) attrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{attribute.String("topic", o.topic)}, extra...)...)
}

func (o *MetricsObserver) Rejected(ctx context.Context, _ domain.Record, reason string) {
	o.rejected.Add(ctx, 1, o.attrs(attribute.String("reason", reason)))
}

func (o *MetricsObserver) EncodeFailed(ctx context.Context, _ domain.Record, _ error) {
	o.encodeFailed.Add(ctx, 1, o.attrs())
}

func (o *MetricsObserver) Published(ctx context.Context, env domain.Envelope, placement domain.Placement) {
	o.published.Add(ctx, 1, o.attrs(attribute.Int("partition", placement.Partition)))
	o.weight.Record(ctx, clampInt64(env.Weight), o.attrs())
}

func (o *MetricsObserver) PublishFailed(ctx context.Context, _ domain.Envelope, _ error) {
	o.publishFailed.Add(ctx, 1, o.attrs())
}

func (o *MetricsObserver) Received(ctx context.Context, rec domain.Record, _ domain.Placement) {
	o.received.Add(ctx, 1, o.attrs(attribute.String("intent", rec.Intent)))
}

func (o *MetricsObserver) DecodeFailed(ctx context.Context, _ string, _ domain.Placement, _ error) {
	o.decodeFailed.Add(ctx, 1, o.attrs())
}

func (o *MetricsObserver) SinkFailed(ctx context.Context, _ domain.Record, _ error) {
	o.sinkFailed.Add(ctx, 1, o.attrs())
}

func (o *MetricsObserver) Duplicate(ctx context.Context, _ domain.Record, _ domain.Placement) {
	o.duplicates.Add(ctx, 1, o.attrs())
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

var _ ports.Observer = (*MetricsObserver)(nil)
