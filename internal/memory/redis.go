package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "podcast:memory:"

// RedisStore keeps each profile under podcast:memory:<profile>.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, profileID string) (Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+normalizeProfile(profileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return DefaultRecord(), fmt.Errorf("get memory record: %w", err)
	}
	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return DefaultRecord(), fmt.Errorf("decode memory record: %w", err)
	}
	return rec.normalize(), nil
}

func (s *RedisStore) Save(ctx context.Context, profileID string, rec Record) error {
	raw, err := sonic.Marshal(rec.normalize())
	if err != nil {
		return fmt.Errorf("encode memory record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+normalizeProfile(profileID), raw, 0).Err(); err != nil {
		return fmt.Errorf("set memory record: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
