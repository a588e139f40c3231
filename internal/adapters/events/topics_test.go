package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTopicCreator struct {
	req  *kafka.CreateTopicsRequest
	resp *kafka.CreateTopicsResponse
	err  error
}

func (c *fakeTopicCreator) CreateTopics(_ context.Context, req *kafka.CreateTopicsRequest) (*kafka.CreateTopicsResponse, error) {
	c.req = req
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func TestEnsureTopicAppliesDefaults(t *testing.T) {
	creator := &fakeTopicCreator{resp: &kafka.CreateTopicsResponse{Errors: map[string]error{}}}

	require.NoError(t, ensureTopic(context.Background(), creator, TopicSpec{Name: domain.DefaultTopic}))

	require.Len(t, creator.req.Topics, 1)
	assert.Equal(t, domain.DefaultTopic, creator.req.Topics[0].Topic)
	assert.Equal(t, 6, creator.req.Topics[0].NumPartitions)
	assert.Equal(t, 3, creator.req.Topics[0].ReplicationFactor)
}

func TestEnsureTopicToleratesExistingTopic(t *testing.T) {
	creator := &fakeTopicCreator{resp: &kafka.CreateTopicsResponse{Errors: map[string]error{
		domain.DefaultTopic: kafka.TopicAlreadyExists,
	}}}

	assert.NoError(t, ensureTopic(context.Background(), creator, TopicSpec{Name: domain.DefaultTopic, Partitions: 1, ReplicationFactor: 1}))
}

func TestEnsureTopicFailures(t *testing.T) {
	creator := &fakeTopicCreator{resp: &kafka.CreateTopicsResponse{Errors: map[string]error{
		domain.DefaultTopic: kafka.InvalidReplicationFactor,
	}}}
	err := ensureTopic(context.Background(), creator, TopicSpec{Name: domain.DefaultTopic})
	assert.ErrorIs(t, err, kafka.InvalidReplicationFactor)

	unreachable := &fakeTopicCreator{err: errors.New("dial tcp: connection refused")}
	err = ensureTopic(context.Background(), unreachable, TopicSpec{Name: domain.DefaultTopic})
	assert.ErrorIs(t, err, domain.ErrConnectionFailure)
}

type nopCloser struct{ closed *bool }

func (c nopCloser) Close() error {
	*c.closed = true
	return nil
}

func TestProbeSucceedsOnFirstReachableBroker(t *testing.T) {
	var dialed []string
	closed := false
	err := probe(context.Background(), []string{"a:9092", "b:9092", "c:9092"}, time.Second,
		func(_ context.Context, addr string) (closer, error) {
			dialed = append(dialed, addr)
			if addr == "a:9092" {
				return nil, errors.New("refused")
			}
			return nopCloser{closed: &closed}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, dialed)
	assert.True(t, closed)
}

func TestProbeFailsWhenNoBrokerAnswers(t *testing.T) {
	err := probe(context.Background(), []string{"a:9092", "b:9092"}, time.Second,
		func(_ context.Context, addr string) (closer, error) {
			return nil, errors.New("refused")
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnectionFailure)
	assert.Contains(t, err.Error(), "a:9092")
	assert.Contains(t, err.Error(), "b:9092")
}

func TestLoggingSinkLogsArchivedRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggingSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Archive(context.Background(), domain.NewRecord("SVT-1", "did:x", "AFFIRM", 1, 5000), domain.Placement{Partition: 2, Offset: 8})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"svt archived"`)
	assert.Contains(t, buf.String(), `"svt_id":"SVT-1"`)
}
