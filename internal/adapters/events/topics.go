package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/domain"
	"github.com/segmentio/kafka-go"
)

type topicCreator interface {
	CreateTopics(ctx context.Context, req *kafka.CreateTopicsRequest) (*kafka.CreateTopicsResponse, error)
}

type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// EnsureTopic creates the topic when it does not exist yet.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec) error {
	if len(brokers) == 0 {
		return fmt.Errorf("ensure topic requires at least one broker")
	}
	return ensureTopic(ctx, &kafka.Client{Addr: kafka.TCP(brokers...)}, spec)
}

func ensureTopic(ctx context.Context, client topicCreator, spec TopicSpec) error {
	if spec.Partitions <= 0 {
		spec.Partitions = 6
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 3
	}
	resp, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{
			Topic:             spec.Name,
			NumPartitions:     spec.Partitions,
			ReplicationFactor: spec.ReplicationFactor,
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: create topic %s: %w", domain.ErrConnectionFailure, spec.Name, err)
	}
	if topicErr := resp.Errors[spec.Name]; topicErr != nil && !errors.Is(topicErr, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", spec.Name, topicErr)
	}
	return nil
}

// Probe dials the brokers in order and succeeds on the first reachable one.
func Probe(ctx context.Context, brokers []string, timeout time.Duration) error {
	return probe(ctx, brokers, timeout, func(ctx context.Context, addr string) (closer, error) {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

type closer interface{ Close() error }

func probe(ctx context.Context, brokers []string, timeout time.Duration, dial func(context.Context, string) (closer, error)) error {
	var errs []error
	for _, addr := range brokers {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := dial(dialCtx, addr)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("%w: no reachable broker: %w", domain.ErrConnectionFailure, errors.Join(errs...))
}
