package ports

import (
	"context"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
)

// Sink receives decoded records for permanent archival.
type Sink interface {
	Archive(ctx context.Context, rec domain.Record, placement domain.Placement) error
}

// DedupStore remembers record ids that were already forwarded.
type DedupStore interface {
	MarkIfNew(ctx context.Context, recordID string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, recordID string) error
}
