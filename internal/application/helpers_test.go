package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/memstream"
	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/stretchr/testify/require"
)

const (
	testTopic = domain.DefaultTopic
	testGroup = domain.DefaultConsumerGroup
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func admitted(id string, weight uint64) domain.Record {
	return domain.NewRecord(id, "did:aegis:"+id, "CONSENSUS_AFFIRM", 1717000000, weight)
}

func appendRecords(t *testing.T, stream *memstream.Stream, recs ...domain.Record) {
	t.Helper()
	producer := stream.Producer(testTopic)
	for _, rec := range recs {
		env, err := domain.EncodeEnvelope(rec)
		require.NoError(t, err)
		_, err = producer.Produce(context.Background(), env)
		require.NoError(t, err)
	}
}

type memorySink struct {
	mu      sync.Mutex
	recs    []domain.Record
	failFor map[string]bool
}

func (s *memorySink) Archive(_ context.Context, rec domain.Record, _ domain.Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[rec.ID] {
		return errors.New("archive unavailable")
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memorySink) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec.ID)
	}
	return out
}

func (s *memorySink) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Record(nil), s.recs...)
}
