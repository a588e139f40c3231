package ports

import (
	"context"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
)

// EnvelopeProducer appends envelopes to the log. Implementations must be
// safe for concurrent use.
type EnvelopeProducer interface {
	Produce(ctx context.Context, env domain.Envelope) (domain.Placement, error)
	Close() error
}

// EnvelopeFetcher reads envelopes for one consumer group. Fetch blocks until
// an envelope is available or ctx is done.
type EnvelopeFetcher interface {
	Fetch(ctx context.Context) (domain.Delivery, error)
	Commit(ctx context.Context, d domain.Delivery) error
	Close() error
}

// FetcherFactory opens a group session on the log.
type FetcherFactory interface {
	Open(ctx context.Context) (EnvelopeFetcher, error)
}

type FetcherFactoryFunc func(ctx context.Context) (EnvelopeFetcher, error)

func (f FetcherFactoryFunc) Open(ctx context.Context) (EnvelopeFetcher, error) { return f(ctx) }
