package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

// DedupSink skips records that were already archived within ttl. Dedup
// store errors fall through to the wrapped sink, which must be idempotent.
type DedupSink struct {
	logger   *slog.Logger
	store    ports.DedupStore
	next     ports.Sink
	observer ports.Observer
	ttl      time.Duration
}

func NewDedupSink(logger *slog.Logger, store ports.DedupStore, next ports.Sink, observer ports.Observer, ttl time.Duration) *DedupSink {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &DedupSink{logger: logger, store: store, next: next, observer: observer, ttl: ttl}
}

func (s *DedupSink) Archive(ctx context.Context, rec domain.Record, placement domain.Placement) error {
	fresh, err := s.store.MarkIfNew(ctx, rec.ID, s.ttl)
	if err != nil {
		s.logger.WarnContext(ctx, "dedup lookup failed, forwarding record",
			"module", "application.dedup_sink",
			"layer", "application",
			"operation", "mark_if_new",
			"outcome", "failure",
			"svt_id", rec.ID,
			"error", err,
		)
		return s.next.Archive(ctx, rec, placement)
	}
	if !fresh {
		s.observer.Duplicate(ctx, rec, placement)
		return nil
	}
	if err := s.next.Archive(ctx, rec, placement); err != nil {
		_ = s.store.Forget(ctx, rec.ID)
		return err
	}
	return nil
}
