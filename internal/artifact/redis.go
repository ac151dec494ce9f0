package artifact

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aws-samples/htc-grid-agent/internal/config"
)

// redisStore is the Redis-backed artifact store, re-homed from the
// teacher's queue backend to the stdout artifact backend - same client
// library, different job.
type redisStore struct {
	client *redis.Client
}

func newRedisStore(cfg *config.Config) (Store, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("artifact: parse redis_url: %w", err)
	}
	return &redisStore{client: redis.NewClient(opts)}, nil
}

func (s *redisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, artifactKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("artifact: redis put %q: %w", key, err)
	}
	return nil
}

func (s *redisStore) PutFile(ctx context.Context, key, path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, data)
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, artifactKey(key)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("artifact: redis get %q: %w", key, err)
	}
	return data, nil
}

func artifactKey(taskID string) string {
	return fmt.Sprintf("artifact:stdout:%s", taskID)
}
