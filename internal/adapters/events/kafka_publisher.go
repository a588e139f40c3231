package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"github.com/segmentio/kafka-go"
)

// produceClient is the subset of *kafka.Client the producer needs.
type produceClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
	Produce(ctx context.Context, req *kafka.ProduceRequest) (*kafka.ProduceResponse, error)
}

type KafkaProducerConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	RequiredAcks kafka.RequiredAcks
	Timeout      time.Duration
	MetadataTTL  time.Duration
}

// KafkaProducer produces one envelope per request and reports the partition
// and base offset the broker assigned. It is safe for concurrent use; the
// underlying transport pools broker connections.
type KafkaProducer struct {
	client      produceClient
	transport   *kafka.Transport
	topic       string
	acks        kafka.RequiredAcks
	balancer    kafka.Balancer
	metadataTTL time.Duration
	nowFn       func() time.Time

	mu          sync.Mutex
	partitions  []int
	refreshedAt time.Time
}

func NewKafkaProducer(cfg KafkaProducerConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka producer requires a topic")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := &kafka.Transport{
		DialTimeout: cfg.Timeout,
		IdleTimeout: 30 * time.Second,
		ClientID:    cfg.ClientID,
	}
	client := &kafka.Client{
		Addr:      kafka.TCP(cfg.Brokers...),
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	p := newKafkaProducer(client, cfg)
	p.transport = transport
	return p, nil
}

func newKafkaProducer(client produceClient, cfg KafkaProducerConfig) *KafkaProducer {
	if cfg.RequiredAcks == kafka.RequireNone {
		cfg.RequiredAcks = kafka.RequireAll
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = time.Minute
	}
	return &KafkaProducer{
		client:      client,
		topic:       cfg.Topic,
		acks:        cfg.RequiredAcks,
		balancer:    &kafka.Hash{},
		metadataTTL: cfg.MetadataTTL,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *KafkaProducer) Produce(ctx context.Context, env domain.Envelope) (domain.Placement, error) {
	partitions, err := p.partitionsFor(ctx)
	if err != nil {
		return domain.Placement{}, err
	}
	partition := p.balancer.Balance(kafka.Message{Key: env.Key(), Value: env.Payload}, partitions...)

	resp, err := p.client.Produce(ctx, &kafka.ProduceRequest{
		Topic:        p.topic,
		Partition:    partition,
		RequiredAcks: p.acks,
		Records: kafka.NewRecordReader(kafka.Record{
			Time:  p.nowFn(),
			Key:   kafka.NewBytes(env.Key()),
			Value: kafka.NewBytes(env.Payload),
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte(domain.EnvelopeContentType)},
				{Key: "svt-intent", Value: []byte(env.Intent)},
			},
		}),
	})
	if err != nil {
		p.invalidate()
		return domain.Placement{}, fmt.Errorf("produce to %s/%d: %w", p.topic, partition, err)
	}
	if resp.Error != nil {
		p.invalidate()
		return domain.Placement{}, fmt.Errorf("produce to %s/%d: %w", p.topic, partition, resp.Error)
	}
	if len(resp.RecordErrors) > 0 {
		errs := make([]error, 0, len(resp.RecordErrors))
		for _, recErr := range resp.RecordErrors {
			errs = append(errs, recErr)
		}
		return domain.Placement{}, fmt.Errorf("produce to %s/%d: %w", p.topic, partition, errors.Join(errs...))
	}
	return domain.Placement{Topic: p.topic, Partition: partition, Offset: resp.BaseOffset}, nil
}

// partitionsFor returns the cached partition ids of the topic, refreshing them
// from cluster metadata when the cache is empty or stale.
func (p *KafkaProducer) partitionsFor(ctx context.Context) ([]int, error) {
	p.mu.Lock()
	if len(p.partitions) > 0 && p.nowFn().Sub(p.refreshedAt) < p.metadataTTL {
		out := p.partitions
		p.mu.Unlock()
		return out, nil
	}
	p.mu.Unlock()

	meta, err := p.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{p.topic}})
	if err != nil {
		return nil, fmt.Errorf("load metadata for %s: %w", p.topic, err)
	}
	var ids []int
	for _, t := range meta.Topics {
		if t.Name != p.topic {
			continue
		}
		if t.Error != nil {
			return nil, fmt.Errorf("load metadata for %s: %w", p.topic, t.Error)
		}
		for _, part := range t.Partitions {
			ids = append(ids, part.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("load metadata for %s: %w", p.topic, errNoPartitions)
	}

	p.mu.Lock()
	p.partitions = ids
	p.refreshedAt = p.nowFn()
	p.mu.Unlock()
	return ids, nil
}

func (p *KafkaProducer) invalidate() {
	p.mu.Lock()
	p.partitions = nil
	p.mu.Unlock()
}

func (p *KafkaProducer) Close() error {
	if p.transport != nil {
		p.transport.CloseIdleConnections()
	}
	return nil
}

var errNoPartitions = errors.New("topic has no partitions")

var _ ports.EnvelopeProducer = (*KafkaProducer)(nil)
