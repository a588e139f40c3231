package application

import (
	"context"
	"fmt"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"golang.org/x/sync/errgroup"
)

type PublisherConfig struct {
	Timeout time.Duration
	// FanOut bounds the number of in-flight publishes issued by PublishAll.
	FanOut int
}

// Publisher submits envelopes to the stream and reports one outcome per
// envelope. It never retries.
type Publisher struct {
	cfg      PublisherConfig
	producer ports.EnvelopeProducer
	observer ports.Observer
	nowFn    func() time.Time
}

func NewPublisher(producer ports.EnvelopeProducer, observer ports.Observer, cfg PublisherConfig) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = 32
	}
	return &Publisher{
		cfg:      cfg,
		producer: producer,
		observer: observer,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish blocks until the log acknowledges the envelope, the transport
// fails, or the publish timeout elapses.
func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) domain.Outcome {
	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	placement, err := p.producer.Produce(pubCtx, env)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrPublishFailure, err)
		p.observer.PublishFailed(ctx, env, err)
		return domain.Failed(env.RecordID, err, p.nowFn())
	}
	p.observer.Published(ctx, env, placement)
	return domain.Acknowledged(env.RecordID, placement, p.nowFn())
}

// PublishAll publishes every envelope concurrently. Outcomes are returned in
// input order; a failure for one envelope does not affect the others.
func (p *Publisher) PublishAll(ctx context.Context, envs []domain.Envelope) []domain.Outcome {
	out := make([]domain.Outcome, len(envs))
	var g errgroup.Group
	g.SetLimit(p.cfg.FanOut)
	for i := range envs {
		g.Go(func() error {
			out[i] = p.Publish(ctx, envs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
