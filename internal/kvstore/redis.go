package kvstore

import (
	"context"

	r "github.com/redis/go-redis/v9"

	"github.com/you/reserveq/internal/domain"
)

// Redis backs the Store with a Redis server, the same place the counters
// lived historically.
type Redis struct{ rdb *r.Client }

func NewRedis(rdb *r.Client) *Redis { return &Redis{rdb} }

func (s *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == r.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StoreError{Op: "get", Key: key, Err: err}
	}
	return v, true, nil
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return &domain.StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}
