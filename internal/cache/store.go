// Package cache memoizes expensive dataset and boundary loads behind an explicit
// key, in process memory or in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Key identifies a memoized value: what was loaded and with which parameters
type Key struct {
	Namespace string
	Params    []string
}

// NewKey builds a key such as records:enrolment
func NewKey(namespace string, params ...string) Key {
	return Key{Namespace: namespace, Params: params}
}

func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Namespace
	}
	return k.Namespace + ":" + strings.Join(k.Params, ":")
}

// Store holds encoded payloads
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LocalStore keeps payloads in process memory
type LocalStore struct {
	c *gocache.Cache
}

// NewLocalStore creates an in-memory store; expired entries are purged every cleanup
func NewLocalStore(defaultTTL, cleanup time.Duration) *LocalStore {
	return &LocalStore{c: gocache.New(defaultTTL, cleanup)}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

// Flush drops every entry
func (s *LocalStore) Flush() {
	s.c.Flush()
}

// RedisStore keeps payloads in Redis under a key prefix
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return nil
}
