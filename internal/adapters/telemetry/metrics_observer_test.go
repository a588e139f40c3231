package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsObserverCountsSignals(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	obs, err := NewMetricsObserver(provider, domain.DefaultTopic)
	require.NoError(t, err)

	ctx := context.Background()
	rec := domain.NewRecord("SVT-1", "did:x", "AFFIRM", 1, 5000)
	env := domain.Envelope{RecordID: "SVT-1", Weight: 5000, Intent: "AFFIRM"}
	obs.Published(ctx, env, domain.Placement{Topic: domain.DefaultTopic, Partition: 2, Offset: 9})
	obs.Published(ctx, env, domain.Placement{Topic: domain.DefaultTopic, Partition: 2, Offset: 10})
	obs.PublishFailed(ctx, env, errors.New("down"))
	obs.Rejected(ctx, rec, domain.ReasonBelowThreshold)
	obs.Received(ctx, rec, domain.Placement{})
	obs.DecodeFailed(ctx, "SVT-1", domain.Placement{}, domain.ErrDecodeFailure)
	obs.SinkFailed(ctx, rec, domain.ErrSinkFailure)
	obs.Duplicate(ctx, rec, domain.Placement{})
	obs.EncodeFailed(ctx, rec, domain.ErrEncodeFailure)

	metrics := collect(t, reader)
	assert.EqualValues(t, 2, sumOf(t, metrics["svt.publisher.acknowledged"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.publisher.failed"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.gate.rejected"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.gate.encode_failed"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.subscriber.received"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.subscriber.decode_failed"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.subscriber.sink_failed"]))
	assert.EqualValues(t, 1, sumOf(t, metrics["svt.subscriber.duplicates"]))

	hist, ok := metrics["svt.publisher.weight"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 2, hist.DataPoints[0].Count)
	assert.EqualValues(t, 10000, hist.DataPoints[0].Sum)
	topic, ok := hist.DataPoints[0].Attributes.Value(attribute.Key("topic"))
	require.True(t, ok)
	assert.Equal(t, domain.DefaultTopic, topic.AsString())
}

func TestClampInt64(t *testing.T) {
	assert.EqualValues(t, 42, clampInt64(42))
	assert.EqualValues(t, int64(1<<63-1), clampInt64(1<<64-1))
}
