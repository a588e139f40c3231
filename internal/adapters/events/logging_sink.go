package events

import (
	"context"
	"log/slog"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

// LoggingSink archives records to the log only. It stands in for the
// archival store when none is configured.
type LoggingSink struct {
	logger *slog.Logger
}

func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

func (s *LoggingSink) Archive(ctx context.Context, rec domain.Record, placement domain.Placement) error {
	s.logger.InfoContext(ctx, "svt archived",
		"module", "events.logging_sink",
		"layer", "adapter",
		"operation", "archive",
		"outcome", "success",
		"svt_id", rec.ID,
		"did", rec.Identity,
		"intent", rec.Intent,
		"weight", rec.Weight,
		"partition", placement.Partition,
		"offset", placement.Offset,
	)
	return nil
}

var _ ports.Sink = (*LoggingSink)(nil)
