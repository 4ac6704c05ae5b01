package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pulseline:history:"

// RedisStore persists archives in Redis so history survives console
// restarts and is shared between console instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Save(ctx context.Context, archive *Archive) error {
	payload, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	return s.client.Set(ctx, redisKeyPrefix+archive.ExecutionID, payload, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, executionID string) (*Archive, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+executionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	var archive Archive
	if err := json.Unmarshal(payload, &archive); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}

	return &archive, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Archive, error) {
	var archives []*Archive

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()

	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return nil, err
		}

		var archive Archive
		if err := json.Unmarshal(payload, &archive); err != nil {
			return nil, fmt.Errorf("failed to decode archive: %w", err)
		}

		archives = append(archives, &archive)
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return archives, nil
}

func (s *RedisStore) Delete(ctx context.Context, executionID string) error {
	deleted, err := s.client.Del(ctx, redisKeyPrefix+executionID).Result()
	if err != nil {
		return err
	}

	if deleted == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
