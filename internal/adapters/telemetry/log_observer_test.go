package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aegisnexus/sovereignty-gateway/internal/adapters/telemetry/telemetrytest"
	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogObserverWritesOneEntryPerSignal(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()
	rec := domain.NewRecord("SVT-7", "did:x", "AFFIRM", 1, 4200)

	obs.Received(ctx, rec, domain.Placement{Topic: domain.DefaultTopic, Offset: 3})
	obs.PublishFailed(ctx, domain.Envelope{RecordID: "SVT-8", Weight: 5000}, errors.New("broker gone"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "svt received", entries[0]["msg"])
	assert.Equal(t, "SVT-7", entries[0]["svt_id"])
	assert.EqualValues(t, 4200, entries[0]["weight"])
	assert.Equal(t, "AFFIRM", entries[0]["intent"])

	assert.Equal(t, "svt delivery failed", entries[1]["msg"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "SVT-8", entries[1]["svt_id"])
	assert.Equal(t, "broker gone", entries[1]["error"])
}

func TestLogObserverDecodeFailedCarriesRecordID(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()
	placement := domain.Placement{Topic: domain.DefaultTopic, Partition: 1, Offset: 12}

	obs.DecodeFailed(ctx, "SVT-9", placement, domain.ErrDecodeFailure)
	obs.DecodeFailed(ctx, "", placement, domain.ErrDecodeFailure)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "envelope decode failed, skipping", entries[0]["msg"])
	assert.Equal(t, "SVT-9", entries[0]["svt_id"])
	assert.EqualValues(t, 12, entries[0]["offset"])
	assert.NotContains(t, entries[1], "svt_id")
}

func TestObserversFanOut(t *testing.T) {
	first, second := telemetrytest.NewRecorder(), telemetrytest.NewRecorder()
	obs := Observers{first, second}
	rec := domain.NewRecord("SVT-1", "did:x", "AFFIRM", 1, 10)

	obs.Rejected(context.Background(), rec, domain.ReasonBelowThreshold)
	obs.Duplicate(context.Background(), rec, domain.Placement{Offset: 1})
	obs.DecodeFailed(context.Background(), "SVT-2", domain.Placement{Offset: 2}, domain.ErrDecodeFailure)

	for _, r := range []*telemetrytest.Recorder{first, second} {
		signals := r.Signals()
		require.Len(t, signals, 3)
		assert.Equal(t, telemetrytest.SignalRejected, signals[0].Kind)
		assert.Equal(t, domain.ReasonBelowThreshold, signals[0].Reason)
		assert.Equal(t, telemetrytest.SignalDuplicate, signals[1].Kind)
		assert.Equal(t, telemetrytest.SignalDecodeFailed, signals[2].Kind)
		assert.Equal(t, "SVT-2", signals[2].RecordID)
	}
}
