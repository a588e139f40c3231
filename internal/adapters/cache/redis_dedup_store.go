package cache

import (
	"context"
	"time"

	"github.com/aegisnexus/sovereignty-gateway/internal/ports"
	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "svt:archived:"

// RedisDedupStore marks forwarded record ids with SETNX and a TTL.
type RedisDedupStore struct {
	client redis.UniversalClient
}

func NewRedisDedupStore(client redis.UniversalClient) *RedisDedupStore {
	return &RedisDedupStore{client: client}
}

func (s *RedisDedupStore) MarkIfNew(ctx context.Context, recordID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, dedupKeyPrefix+recordID, time.Now().UTC().Unix(), ttl).Result()
}

func (s *RedisDedupStore) Forget(ctx context.Context, recordID string) error {
	return s.client.Del(ctx, dedupKeyPrefix+recordID).Err()
}

var _ ports.DedupStore = (*RedisDedupStore)(nil)
