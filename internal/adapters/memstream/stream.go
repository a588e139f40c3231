// Package memstream is an in-process append-only log with consumer-group
// read positions. It backs the memory transport and the end-to-end tests.
package memstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
)

var (
	ErrUnavailable   = errors.New("memstream: broker unavailable")
	ErrGroupBusy     = errors.New("memstream: group already has an active session")
	ErrSessionClosed = errors.New("memstream: session closed")
)

type entry struct {
	key     []byte
	value   []byte
	headers map[string]string
	at      time.Time
}

// topicLog is a single-partition log. entries[i] sits at offset start+i.
type topicLog struct {
	start   int64
	entries []entry
}

func (l *topicLog) end() int64 { return l.start + int64(len(l.entries)) }

type cursorKey struct {
	group string
	topic string
}

type Stream struct {
	mu       sync.Mutex
	topics   map[string]*topicLog
	cursors  map[cursorKey]int64
	active   map[cursorKey]bool
	notify   chan struct{}
	down     bool
	stalled  bool
	produced int
}

func New() *Stream {
	return &Stream{
		topics:  make(map[string]*topicLog),
		cursors: make(map[cursorKey]int64),
		active:  make(map[cursorKey]bool),
		notify:  make(chan struct{}),
	}
}

// SetUnavailable makes produce and open calls fail immediately.
func (s *Stream) SetUnavailable(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// SetStalled makes produce calls block until their context is done.
func (s *Stream) SetStalled(stalled bool) {
	s.mu.Lock()
	s.stalled = stalled
	s.mu.Unlock()
}

func (s *Stream) logFor(topic string) *topicLog {
	l, ok := s.topics[topic]
	if !ok {
		l = &topicLog{}
		s.topics[topic] = l
	}
	return l
}

// Append writes one message and wakes every blocked fetch.
func (s *Stream) Append(topic string, key, value []byte, headers map[string]string) (domain.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return domain.Placement{}, ErrUnavailable
	}
	l := s.logFor(topic)
	offset := l.end()
	l.entries = append(l.entries, entry{
		key:     append([]byte(nil), key...),
		value:   append([]byte(nil), value...),
		headers: headers,
		at:      time.Now().UTC(),
	})
	s.produced++
	close(s.notify)
	s.notify = make(chan struct{})
	return domain.Placement{Topic: topic, Partition: 0, Offset: offset}, nil
}

// TrimBefore drops every message below offset, as retention would.
func (s *Stream) TrimBefore(topic string, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.logFor(topic)
	if offset <= l.start {
		return
	}
	if offset > l.end() {
		offset = l.end()
	}
	l.entries = l.entries[offset-l.start:]
	l.start = offset
}

// Len is the number of retained messages in topic.
func (s *Stream) Len(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logFor(topic).entries)
}

// Produced counts every successful append since creation.
func (s *Stream) Produced() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produced
}

// Committed returns the next offset the group will read from topic.
func (s *Stream) Committed(group, topic string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.cursors[cursorKey{group: group, topic: topic}]
	return off, ok
}

// Producer returns an envelope producer bound to topic.
func (s *Stream) Producer(topic string) *Producer {
	return &Producer{stream: s, topic: topic}
}

// Group returns a factory opening sessions for group on topic.
func (s *Stream) Group(topic, group string) *Group {
	return &Group{stream: s, key: cursorKey{group: group, topic: topic}}
}

type Producer struct {
	stream *Stream
	topic  string
}

func (p *Producer) Produce(ctx context.Context, env domain.Envelope) (domain.Placement, error) {
	p.stream.mu.Lock()
	stalled := p.stream.stalled
	p.stream.mu.Unlock()
	if stalled {
		<-ctx.Done()
		return domain.Placement{}, fmt.Errorf("produce %s: %w", env.RecordID, ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		return domain.Placement{}, err
	}
	return p.stream.Append(p.topic, env.Key(), env.Payload, map[string]string{
		"content-type": domain.EnvelopeContentType,
		"svt-intent":   env.Intent,
	})
}

func (p *Producer) Close() error { return nil }

type Group struct {
	stream *Stream
	key    cursorKey
}

// Open starts a session. Without a committed position the session starts at
// the oldest retained message.
func (g *Group) Open(ctx context.Context) (ports.EnvelopeFetcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := g.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, ErrUnavailable
	}
	if s.active[g.key] {
		return nil, ErrGroupBusy
	}
	s.active[g.key] = true
	pos, ok := s.cursors[g.key]
	if !ok {
		pos = s.logFor(g.key.topic).start
	}
	return &Session{stream: s, key: g.key, pos: pos, closed: make(chan struct{})}, nil
}

type Session struct {
	stream *Stream
	key    cursorKey

	mu        sync.Mutex
	pos       int64
	pulls     int
	closeOnce sync.Once
	closed    chan struct{}
}

// Pulls counts Fetch calls made on this session.
func (sess *Session) Pulls() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.pulls
}

func (sess *Session) Fetch(ctx context.Context) (domain.Delivery, error) {
	sess.mu.Lock()
	sess.pulls++
	sess.mu.Unlock()
	s := sess.stream
	for {
		select {
		case <-sess.closed:
			return domain.Delivery{}, ErrSessionClosed
		default:
		}
		s.mu.Lock()
		l := s.logFor(sess.key.topic)
		sess.mu.Lock()
		if sess.pos < l.start {
			sess.pos = l.start
		}
		if sess.pos < l.end() {
			e := l.entries[sess.pos-l.start]
			d := domain.Delivery{
				Placement: domain.Placement{Topic: sess.key.topic, Partition: 0, Offset: sess.pos},
				Key:       e.key,
				Payload:   e.value,
				Headers:   e.headers,
				Time:      e.at,
			}
			sess.pos++
			sess.mu.Unlock()
			s.mu.Unlock()
			return d, nil
		}
		sess.mu.Unlock()
		wait := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Delivery{}, ctx.Err()
		case <-sess.closed:
			return domain.Delivery{}, ErrSessionClosed
		case <-wait:
		}
	}
}

// Commit advances the group position past d. Positions never move backwards.
func (sess *Session) Commit(ctx context.Context, d domain.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := sess.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	next := d.Placement.Offset + 1
	if cur, ok := s.cursors[sess.key]; !ok || next > cur {
		s.cursors[sess.key] = next
	}
	return nil
}

func (sess *Session) Close() error {
	sess.closeOnce.Do(func() {
		close(sess.closed)
		s := sess.stream
		s.mu.Lock()
		delete(s.active, sess.key)
		s.mu.Unlock()
	})
	return nil
}

var (
	_ ports.EnvelopeProducer = (*Producer)(nil)
	_ ports.FetcherFactory   = (*Group)(nil)
	_ ports.EnvelopeFetcher  = (*Session)(nil)
)
