package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

type SubscriberState int32

const (
	StateDisconnected SubscriberState = iota
	StateWaiting
	StateProcessing
	StateDraining
	StateClosed
)

func (s SubscriberState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateWaiting:
		return "connected_waiting"
	case StateProcessing:
		return "connected_processing"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s SubscriberState) Connected() bool {
	return s == StateWaiting || s == StateProcessing
}

type SubscriberConfig struct {
	Topic string
	Group string
	// ForwardTimeout bounds the sink call for one record. The call is not
	// cut short by Cancel, so the record in flight is archived before its
	// read position is committed.
	ForwardTimeout time.Duration
	// CommitTimeout bounds the read-position commit issued after each
	// envelope, including the one in flight when the subscriber is cancelled.
	CommitTimeout time.Duration
}

// Subscriber reads the stream sequentially under a fixed consumer group and
// forwards decoded records to the sink. A Subscriber runs at most once.
type Subscriber struct {
	cfg      SubscriberConfig
	logger   *slog.Logger
	factory  ports.FetcherFactory
	sink     ports.Sink
	observer ports.Observer

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscriber(logger *slog.Logger, factory ports.FetcherFactory, sink ports.Sink, observer ports.Observer, cfg SubscriberConfig) *Subscriber {
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = 30 * time.Second
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	return &Subscriber{
		cfg:      cfg,
		logger:   logger,
		factory:  factory,
		sink:     sink,
		observer: observer,
		done:     make(chan struct{}),
	}
}

func (s *Subscriber) State() SubscriberState {
	return SubscriberState(s.state.Load())
}

// Done is closed once the subscriber reaches the Closed state.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the subscriber. It returns immediately; wait on Done for the
// session to be released.
func (s *Subscriber) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		return
	}
	if s.State() == StateDisconnected {
		s.setState(StateClosed)
		close(s.done)
	}
}

// Run opens the group session and processes envelopes until ctx is done or
// Cancel is called. A clean cancellation returns nil. Failing to open the
// session returns an error wrapping domain.ErrConnectionFailure.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.State() != StateDisconnected || s.cancel != nil {
		s.mu.Unlock()
		return domain.ErrSubscriberClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	fetcher, err := s.factory.Open(runCtx)
	if err != nil {
		s.setState(StateClosed)
		close(s.done)
		return fmt.Errorf("%w: open group %q on %q: %w", domain.ErrConnectionFailure, s.cfg.Group, s.cfg.Topic, err)
	}
	s.setState(StateWaiting)
	s.logger.InfoContext(ctx, "subscriber connected",
		"module", "application.subscriber",
		"layer", "application",
		"operation", "subscribe",
		"outcome", "success",
		"topic", s.cfg.Topic,
		"group", s.cfg.Group,
	)

	runErr := s.loop(runCtx, fetcher)

	s.setState(StateDraining)
	closeErr := fetcher.Close()
	s.setState(StateClosed)
	close(s.done)
	s.logger.InfoContext(ctx, "subscriber closed",
		"module", "application.subscriber",
		"layer", "application",
		"operation", "cancel",
		"outcome", outcomeLabel(runErr),
		"topic", s.cfg.Topic,
		"group", s.cfg.Group,
	)
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("release group session: %w", closeErr)
	}
	return nil
}

func (s *Subscriber) loop(ctx context.Context, fetcher ports.EnvelopeFetcher) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		d, err := fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: fetch: %w", domain.ErrConnectionFailure, err)
		}
		s.setState(StateProcessing)
		s.process(ctx, fetcher, d)
		s.setState(StateWaiting)
	}
}

func (s *Subscriber) process(ctx context.Context, fetcher ports.EnvelopeFetcher, d domain.Delivery) {
	// Once fetched, a record is forwarded and committed even if the loop is
	// cancelled meanwhile. Otherwise a sink honouring its context would fail
	// and the commit would skip a record that never reached it.
	detached := context.WithoutCancel(ctx)

	rec, err := domain.DecodeEnvelope(d.Payload)
	if err != nil {
		s.observer.DecodeFailed(detached, string(d.Key), d.Placement, err)
	} else {
		s.observer.Received(detached, rec, d.Placement)
		s.forward(detached, rec, d.Placement)
	}

	commitCtx, cancel := context.WithTimeout(detached, s.cfg.CommitTimeout)
	defer cancel()
	if err := fetcher.Commit(commitCtx, d); err != nil {
		s.logger.WarnContext(ctx, "commit read position failed",
			"module", "application.subscriber",
			"layer", "application",
			"operation", "commit",
			"outcome", "failure",
			"topic", d.Placement.Topic,
			"partition", d.Placement.Partition,
			"offset", d.Placement.Offset,
			"error", err,
		)
	}
}

func (s *Subscriber) forward(ctx context.Context, rec domain.Record, placement domain.Placement) {
	forwardCtx, cancel := context.WithTimeout(ctx, s.cfg.ForwardTimeout)
	defer cancel()
	if err := s.sink.Archive(forwardCtx, rec, placement); err != nil {
		if !errors.Is(err, domain.ErrSinkFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrSinkFailure, err)
		}
		s.observer.SinkFailed(ctx, rec, err)
	}
}

func (s *Subscriber) setState(state SubscriberState) {
	s.state.Store(int32(state))
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
