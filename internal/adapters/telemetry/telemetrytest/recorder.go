// Package telemetrytest provides an in-memory observer for tests that assert
// on the signals the gateway emits.
package telemetrytest

import (
	"context"
	"sync"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

type SignalKind string

const (
	SignalRejected      SignalKind = "rejected"
	SignalEncodeFailed  SignalKind = "encode_failed"
	SignalPublished     SignalKind = "published"
	SignalPublishFailed SignalKind = "publish_failed"
	SignalReceived      SignalKind = "received"
	SignalDecodeFailed  SignalKind = "decode_failed"
	SignalSinkFailed    SignalKind = "sink_failed"
	SignalDuplicate     SignalKind = "duplicate"
)

type Signal struct {
	Kind      SignalKind
	RecordID  string
	Weight    uint64
	Intent    string
	Placement domain.Placement
	Reason    string
	Err       error
}

// Recorder keeps every signal in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(s Signal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Of returns the recorded signals of one kind, in emission order.
func (r *Recorder) Of(kind SignalKind) []Signal {
	var out []Signal
	for _, s := range r.Signals() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) Rejected(_ context.Context, rec domain.Record, reason string) {
	r.add(Signal{Kind: SignalRejected, RecordID: rec.ID, Weight: rec.Weight, Intent: rec.Intent, Reason: reason})
}

func (r *Recorder) EncodeFailed(_ context.Context, rec domain.Record, err error) {
	r.add(Signal{Kind: SignalEncodeFailed, RecordID: rec.ID, Weight: rec.Weight, Err: err, Reason: err.Error()})
}

func (r *Recorder) Published(_ context.Context, env domain.Envelope, placement domain.Placement) {
	r.add(Signal{Kind: SignalPublished, RecordID: env.RecordID, Weight: env.Weight, Intent: env.Intent, Placement: placement})
}

func (r *Recorder) PublishFailed(_ context.Context, env domain.Envelope, err error) {
	r.add(Signal{Kind: SignalPublishFailed, RecordID: env.RecordID, Weight: env.Weight, Err: err, Reason: err.Error()})
}

func (r *Recorder) Received(_ context.Context, rec domain.Record, placement domain.Placement) {
	r.add(Signal{Kind: SignalReceived, RecordID: rec.ID, Weight: rec.Weight, Intent: rec.Intent, Placement: placement})
}

func (r *Recorder) DecodeFailed(_ context.Context, recordID string, placement domain.Placement, err error) {
	r.add(Signal{Kind: SignalDecodeFailed, RecordID: recordID, Placement: placement, Err: err, Reason: err.Error()})
}

func (r *Recorder) SinkFailed(_ context.Context, rec domain.Record, err error) {
	r.add(Signal{Kind: SignalSinkFailed, RecordID: rec.ID, Err: err, Reason: err.Error()})
}

func (r *Recorder) Duplicate(_ context.Context, rec domain.Record, placement domain.Placement) {
	r.add(Signal{Kind: SignalDuplicate, RecordID: rec.ID, Placement: placement})
}

var _ ports.Observer = (*Recorder)(nil)
