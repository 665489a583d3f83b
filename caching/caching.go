package caching

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type CachingService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisCachingService struct {
	client *redis.Client
}

func NewRedisCachingService(client *redis.Client) *RedisCachingService {
	return &RedisCachingService{client: client}
}

func (s *RedisCachingService) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisCachingService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisCachingService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// NullCachingService misses on every read and accepts every write. Used when
// Redis is not configured and in tests.
type NullCachingService struct{}

func NewNullCachingService() *NullCachingService { return &NullCachingService{} }

func (*NullCachingService) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (*NullCachingService) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (*NullCachingService) Delete(context.Context, string) error {
	return nil
}
