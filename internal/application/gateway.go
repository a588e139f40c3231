package application

import (
	"context"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
)

// Gateway is the publishing side: gate, encode, publish.
type Gateway struct {
	gate      *Gate
	publisher *Publisher
	nowFn     func() time.Time
}

func NewGateway(gate *Gate, publisher *Publisher) *Gateway {
	return &Gateway{gate: gate, publisher: publisher, nowFn: func() time.Time { return time.Now().UTC() }}
}

func (g *Gateway) Submit(ctx context.Context, rec domain.Record) domain.Outcome {
	env, ok, err := g.gate.Encode(ctx, rec)
	if err != nil {
		return domain.Invalid(rec.ID, err, g.nowFn())
	}
	if !ok {
		return domain.Rejected(rec.ID, domain.ErrPolicyRejection, domain.ReasonBelowThreshold, g.nowFn())
	}
	return g.publisher.Publish(ctx, env)
}

// SubmitAll gates every record and publishes the admitted ones concurrently.
func (g *Gateway) SubmitAll(ctx context.Context, recs []domain.Record) []domain.Outcome {
	out := make([]domain.Outcome, len(recs))
	envs := make([]domain.Envelope, 0, len(recs))
	index := make([]int, 0, len(recs))
	for i, rec := range recs {
		env, ok, err := g.gate.Encode(ctx, rec)
		switch {
		case err != nil:
			out[i] = domain.Invalid(rec.ID, err, g.nowFn())
		case !ok:
			out[i] = domain.Rejected(rec.ID, domain.ErrPolicyRejection, domain.ReasonBelowThreshold, g.nowFn())
		default:
			envs = append(envs, env)
			index = append(index, i)
		}
	}
	for j, outcome := range g.publisher.PublishAll(ctx, envs) {
		out[index[j]] = outcome
	}
	return out
}
