package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/telemetry/telemetrytest"
	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDedupStore struct {
	mu        sync.Mutex
	seen      map[string]time.Duration
	err       error
	forgotten []string
}

func newMemoryDedupStore() *memoryDedupStore {
	return &memoryDedupStore{seen: map[string]time.Duration{}}
}

func (s *memoryDedupStore) MarkIfNew(_ context.Context, recordID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.seen[recordID]; ok {
		return false, nil
	}
	s.seen[recordID] = ttl
	return true, nil
}

func (s *memoryDedupStore) Forget(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, recordID)
	s.forgotten = append(s.forgotten, recordID)
	return nil
}

func TestDedupSinkSkipsRedelivery(t *testing.T) {
	store := newMemoryDedupStore()
	next := &memorySink{}
	recorder := telemetrytest.NewRecorder()
	sink := NewDedupSink(discardLogger(), store, next, recorder, time.Hour)
	rec := admitted("SVT-1", 5000)

	require.NoError(t, sink.Archive(context.Background(), rec, domain.Placement{Offset: 4}))
	require.NoError(t, sink.Archive(context.Background(), rec, domain.Placement{Offset: 4}))

	assert.Equal(t, []string{"SVT-1"}, next.IDs())
	assert.Equal(t, time.Hour, store.seen["SVT-1"])
	duplicates := recorder.Of(telemetrytest.SignalDuplicate)
	require.Len(t, duplicates, 1)
	assert.EqualValues(t, 4, duplicates[0].Placement.Offset)
}

func TestDedupSinkFallsThroughOnStoreError(t *testing.T) {
	store := newMemoryDedupStore()
	store.err = errors.New("redis down")
	next := &memorySink{}
	sink := NewDedupSink(discardLogger(), store, next, telemetrytest.NewRecorder(), 0)

	require.NoError(t, sink.Archive(context.Background(), admitted("SVT-1", 5000), domain.Placement{}))
	require.NoError(t, sink.Archive(context.Background(), admitted("SVT-1", 5000), domain.Placement{}))

	assert.Equal(t, []string{"SVT-1", "SVT-1"}, next.IDs())
}

func TestDedupSinkForgetsOnSinkFailure(t *testing.T) {
	store := newMemoryDedupStore()
	next := &memorySink{failFor: map[string]bool{"SVT-1": true}}
	sink := NewDedupSink(discardLogger(), store, next, telemetrytest.NewRecorder(), time.Hour)

	err := sink.Archive(context.Background(), admitted("SVT-1", 5000), domain.Placement{})
	require.Error(t, err)
	assert.Equal(t, []string{"SVT-1"}, store.forgotten)

	next.mu.Lock()
	next.failFor = nil
	next.mu.Unlock()
	require.NoError(t, sink.Archive(context.Background(), admitted("SVT-1", 5000), domain.Placement{}))
	assert.Equal(t, []string{"SVT-1"}, next.IDs())
}
