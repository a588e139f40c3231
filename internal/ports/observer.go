package ports

import (
	"context"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
)

// Observer receives every signal the gateway emits.
type Observer interface {
	Rejected(ctx context.Context, rec domain.Record, reason string)
	EncodeFailed(ctx context.Context, rec domain.Record, err error)
	Published(ctx context.Context, env domain.Envelope, placement domain.Placement)
	PublishFailed(ctx context.Context, env domain.Envelope, err error)
	Received(ctx context.Context, rec domain.Record, placement domain.Placement)
	// DecodeFailed reports an envelope that could not be decoded. recordID is
	// the message key, empty when the producer did not set one.
	DecodeFailed(ctx context.Context, recordID string, placement domain.Placement, err error)
	SinkFailed(ctx context.Context, rec domain.Record, err error)
	Duplicate(ctx context.Context, rec domain.Record, placement domain.Placement)
}
