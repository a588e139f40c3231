package telemetry

import (
	"context"
	"log/slog"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

// LogObserver writes one structured log entry per gateway signal.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Rejected(ctx context.Context, rec domain.Record, reason string) {
	o.logger.WarnContext(ctx, "svt rejected",
		"module", "telemetry.gate",
		"layer", "adapter",
		"operation", "encode",
		"outcome", "rejected",
		"svt_id", rec.ID,
		"weight", rec.Weight,
		"reason", reason,
	)
}

func (o *LogObserver) EncodeFailed(ctx context.Context, rec domain.Record, err error) {
	o.logger.ErrorContext(ctx, "svt encode failed",
		"module", "telemetry.gate",
		"layer", "adapter",
		"operation", "encode",
		"outcome", "failure",
		"svt_id", rec.ID,
		"error", err,
	)
}

func (o *LogObserver) Published(ctx context.Context, env domain.Envelope, placement domain.Placement) {
	o.logger.InfoContext(ctx, "svt published",
		"module", "telemetry.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"svt_id", env.RecordID,
		"weight", env.Weight,
		"topic", placement.Topic,
		"partition", placement.Partition,
		"offset", placement.Offset,
	)
}

func (o *LogObserver) PublishFailed(ctx context.Context, env domain.Envelope, err error) {
	o.logger.ErrorContext(ctx, "svt delivery failed",
		"module", "telemetry.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "failure",
		"severity", "critical",
		"svt_id", env.RecordID,
		"error", err,
	)
}

func (o *LogObserver) Received(ctx context.Context, rec domain.Record, placement domain.Placement) {
	o.logger.InfoContext(ctx, "svt received",
		"module", "telemetry.subscriber",
		"layer", "adapter",
		"operation", "consume",
		"outcome", "success",
		"svt_id", rec.ID,
		"weight", rec.Weight,
		"intent", rec.Intent,
		"partition", placement.Partition,
		"offset", placement.Offset,
	)
}

func (o *LogObserver) DecodeFailed(ctx context.Context, recordID string, placement domain.Placement, err error) {
	attrs := []any{
		"module", "telemetry.subscriber",
		"layer", "adapter",
		"operation", "decode",
		"outcome", "failure",
		"topic", placement.Topic,
		"partition", placement.Partition,
		"offset", placement.Offset,
		"error", err,
	}
	if recordID != "" {
		attrs = append(attrs, "svt_id", recordID)
	}
	o.logger.ErrorContext(ctx, "envelope decode failed, skipping", attrs...)
}

func (o *LogObserver) SinkFailed(ctx context.Context, rec domain.Record, err error) {
	o.logger.ErrorContext(ctx, "svt archival failed",
		"module", "telemetry.subscriber",
		"layer", "adapter",
		"operation", "archive",
		"outcome", "failure",
		"svt_id", rec.ID,
		"error", err,
	)
}

func (o *LogObserver) Duplicate(ctx context.Context, rec domain.Record, placement domain.Placement) {
	o.logger.InfoContext(ctx, "svt redelivery skipped",
		"module", "telemetry.subscriber",
		"layer", "adapter",
		"operation", "archive",
		"outcome", "duplicate",
		"svt_id", rec.ID,
		"partition", placement.Partition,
		"offset", placement.Offset,
	)
}

var _ ports.Observer = (*LogObserver)(nil)
