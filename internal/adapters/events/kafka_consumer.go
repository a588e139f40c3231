package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader the fetcher needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaGroupConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	DialTimeout time.Duration
	MaxWait     time.Duration
}

// KafkaGroup opens consumer-group sessions on one topic. Partitions without
// a committed offset are read from the oldest retained message.
type KafkaGroup struct {
	cfg       KafkaGroupConfig
	logger    *slog.Logger
	probe     func(ctx context.Context) error
	newReader func(kafka.ReaderConfig) messageReader
}

func NewKafkaGroup(logger *slog.Logger, cfg KafkaGroupConfig) (*KafkaGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka consumer requires a topic")
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	g := &KafkaGroup{
		cfg:       cfg,
		logger:    logger,
		newReader: func(rc kafka.ReaderConfig) messageReader { return kafka.NewReader(rc) },
	}
	g.probe = func(ctx context.Context) error {
		return Probe(ctx, cfg.Brokers, cfg.DialTimeout)
	}
	return g, nil
}

func (g *KafkaGroup) readerConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        g.cfg.Brokers,
		GroupID:        g.cfg.GroupID,
		GroupTopics:    []string{g.cfg.Topic},
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        g.cfg.MaxWait,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			g.logger.Error(fmt.Sprintf(msg, args...),
				"module", "events.kafka_consumer",
				"layer", "adapter",
				"group", g.cfg.GroupID,
			)
		}),
	}
}

func (g *KafkaGroup) Open(ctx context.Context) (ports.EnvelopeFetcher, error) {
	if err := g.probe(ctx); err != nil {
		return nil, err
	}
	return &KafkaFetcher{reader: g.newReader(g.readerConfig())}, nil
}

// KafkaFetcher is one group session. Commits are synchronous.
type KafkaFetcher struct {
	reader messageReader
}

func (f *KafkaFetcher) Fetch(ctx context.Context) (domain.Delivery, error) {
	msg, err := f.reader.FetchMessage(ctx)
	if err != nil {
		return domain.Delivery{}, err
	}
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.Delivery{
		Placement: domain.Placement{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset},
		Key:       msg.Key,
		Payload:   msg.Value,
		Headers:   headers,
		Time:      msg.Time,
	}, nil
}

func (f *KafkaFetcher) Commit(ctx context.Context, d domain.Delivery) error {
	return f.reader.CommitMessages(ctx, kafka.Message{
		Topic:     d.Placement.Topic,
		Partition: d.Placement.Partition,
		Offset:    d.Placement.Offset,
	})
}

// Close leaves the group so another member can take over its partitions.
func (f *KafkaFetcher) Close() error {
	return f.reader.Close()
}

var (
	_ ports.FetcherFactory  = (*KafkaGroup)(nil)
	_ ports.EnvelopeFetcher = (*KafkaFetcher)(nil)
)
