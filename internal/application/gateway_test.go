package application

import (
	"context"
	"errors"
	"testing"

	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/memstream"
	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/telemetry/telemetrytest"
	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(stream *memstream.Stream, recorder *telemetrytest.Recorder) *Gateway {
	publisher := NewPublisher(stream.Producer(testTopic), recorder, PublisherConfig{})
	return NewGateway(NewGate(recorder), publisher)
}

func TestSubmitRejectedRecordIsNeverPublished(t *testing.T) {
	stream := memstream.New()
	recorder := telemetrytest.NewRecorder()
	gateway := newTestGateway(stream, recorder)

	outcome := gateway.Submit(context.Background(), admitted("SVT-low", 500))

	assert.Equal(t, domain.OutcomeRejected, outcome.Status)
	assert.True(t, errors.Is(outcome.Err, domain.ErrPolicyRejection))
	assert.Equal(t, domain.ReasonBelowThreshold, outcome.Reason)
	assert.Equal(t, 0, stream.Produced())
	assert.Empty(t, recorder.Of(telemetrytest.SignalPublished))
}

func TestSubmitInvalidRecord(t *testing.T) {
	stream := memstream.New()
	gateway := newTestGateway(stream, telemetrytest.NewRecorder())

	outcome := gateway.Submit(context.Background(), domain.NewRecord("", "did:x", "AFFIRM", 1, 5000))

	assert.Equal(t, domain.OutcomeInvalid, outcome.Status)
	assert.True(t, errors.Is(outcome.Err, domain.ErrEncodeFailure))
	assert.Equal(t, 0, stream.Produced())
}

func TestSubmitAllKeepsInputOrder(t *testing.T) {
	stream := memstream.New()
	gateway := newTestGateway(stream, telemetrytest.NewRecorder())

	outcomes := gateway.SubmitAll(context.Background(), []domain.Record{
		admitted("SVT-a", 5000),
		admitted("SVT-b", 10),
		domain.NewRecord("SVT-c", "did:\xff", "AFFIRM", 1, 5000),
		admitted("SVT-d", 1000),
	})

	require.Len(t, outcomes, 4)
	assert.Equal(t, domain.OutcomeAcknowledged, outcomes[0].Status)
	assert.Equal(t, domain.OutcomeRejected, outcomes[1].Status)
	assert.Equal(t, domain.OutcomeInvalid, outcomes[2].Status)
	assert.Equal(t, domain.OutcomeAcknowledged, outcomes[3].Status)
	for i, id := range []string{"SVT-a", "SVT-b", "SVT-c", "SVT-d"} {
		assert.Equal(t, id, outcomes[i].RecordID)
	}
	assert.Equal(t, 2, stream.Produced())
}
