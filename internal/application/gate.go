package application

import (
	"context"
	"errors"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

// Gate applies the admission policy and encodes admitted records.
type Gate struct {
	observer ports.Observer
}

func NewGate(observer ports.Observer) *Gate {
	return &Gate{observer: observer}
}

// Encode returns ok=false with a nil error when the record is rejected by
// policy, and a non-nil error wrapping domain.ErrEncodeFailure when an
// admitted record cannot be serialized.
func (g *Gate) Encode(ctx context.Context, rec domain.Record) (domain.Envelope, bool, error) {
	if !rec.Admissible() {
		g.observer.Rejected(ctx, rec, domain.ReasonBelowThreshold)
		return domain.Envelope{}, false, nil
	}
	env, err := domain.EncodeEnvelope(rec)
	if err != nil {
		if !errors.Is(err, domain.ErrEncodeFailure) {
			err = errors.Join(domain.ErrEncodeFailure, err)
		}
		g.observer.EncodeFailed(ctx, rec, err)
		return domain.Envelope{}, false, err
	}
	return env, true, nil
}
