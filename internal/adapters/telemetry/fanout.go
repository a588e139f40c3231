package telemetry

import (
	"context"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

// Observers forwards every signal to each observer in order.
type Observers []ports.Observer

func (obs Observers) Rejected(ctx context.Context, rec domain.Record, reason string) {
	for _, o := range obs {
		o.Rejected(ctx, rec, reason)
	}
}

func (obs Observers) EncodeFailed(ctx context.Context, rec domain.Record, err error) {
	for _, o := range obs {
		o.EncodeFailed(ctx, rec, err)
	}
}

func (obs Observers) Published(ctx context.Context, env domain.Envelope, placement domain.Placement) {
	for _, o := range obs {
		o.Published(ctx, env, placement)
	}
}

func (obs Observers) PublishFailed(ctx context.Context, env domain.Envelope, err error) {
	for _, o := range obs {
		o.PublishFailed(ctx, env, err)
	}
}

func (obs Observers) Received(ctx context.Context, rec domain.Record, placement domain.Placement) {
	for _, o := range obs {
		o.Received(ctx, rec, placement)
	}
}

func (obs Observers) DecodeFailed(ctx context.Context, recordID string, placement domain.Placement, err error) {
	for _, o := range obs {
		o.DecodeFailed(ctx, recordID, placement, err)
	}
}

func (obs Observers) SinkFailed(ctx context.Context, rec domain.Record, err error) {
	for _, o := range obs {
		o.SinkFailed(ctx, rec, err)
	}
}

func (obs Observers) Duplicate(ctx context.Context, rec domain.Record, placement domain.Placement) {
	for _, o := range obs {
		o.Duplicate(ctx, rec, placement)
	}
}

var _ ports.Observer = Observers(nil)
