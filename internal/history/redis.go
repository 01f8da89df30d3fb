package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	key    string
}

func openRedis(ctx context.Context, addr, key string) (Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &redisStore{client: client, key: key}, nil
}

func (s *redisStore) Load(ctx context.Context) (map[string]struct{}, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]struct{}{}, nil
		}
		if strings.HasPrefix(err.Error(), "WRONGTYPE") {
			return map[string]struct{}{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.key, err)
		}
		return nil, fmt.Errorf("failed to load %s: %w", s.key, err)
	}

	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		seen[m] = struct{}{}
	}
	return seen, nil
}

// Save replaces the set atomically with MULTI/EXEC.
func (s *redisStore) Save(ctx context.Context, ids []string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(ids) > 0 {
			members := make([]any, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			pipe.SAdd(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", s.key, err)
	}
	return nil
}

func (s *redisStore) Close() error { return s.client.Close() }
