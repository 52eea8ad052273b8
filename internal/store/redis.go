package store

import (
	"context"
	"fmt"

	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/go-redis/redis/v8"
)

const tokensKey = "tokens"

// RedisStore keeps keys under a prefix. Namespace derives per-user stores.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Namespace(ns string) *RedisStore {
	return &RedisStore{client: s.client, prefix: s.prefix + ns + ":"}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewDatabaseError(fmt.Errorf("get %s: %w", key, err))
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return errors.NewDatabaseError(fmt.Errorf("set %s: %w", key, err))
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.NewDatabaseError(fmt.Errorf("remove %s: %w", key, err))
	}
	return nil
}

// Clear removes every key under the store's prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.NewDatabaseError(fmt.Errorf("scan %s: %w", s.prefix, err))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.NewDatabaseError(fmt.Errorf("clear %s: %w", s.prefix, err))
	}
	return nil
}

// Register adds token to the set of users refreshed in the background.
func (s *RedisStore) Register(ctx context.Context, token string) error {
	if err := s.client.SAdd(ctx, s.prefix+tokensKey, token).Err(); err != nil {
		return errors.NewDatabaseError(fmt.Errorf("register token: %w", err))
	}
	return nil
}

func (s *RedisStore) Unregister(ctx context.Context, token string) error {
	if err := s.client.SRem(ctx, s.prefix+tokensKey, token).Err(); err != nil {
		return errors.NewDatabaseError(fmt.Errorf("unregister token: %w", err))
	}
	return nil
}

func (s *RedisStore) Registered(ctx context.Context, token string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.prefix+tokensKey, token).Result()
	if err != nil {
		return false, errors.NewDatabaseError(fmt.Errorf("lookup token: %w", err))
	}
	return ok, nil
}

func (s *RedisStore) Tokens(ctx context.Context) ([]string, error) {
	tokens, err := s.client.SMembers(ctx, s.prefix+tokensKey).Result()
	if err != nil {
		return nil, errors.NewDatabaseError(fmt.Errorf("list tokens: %w", err))
	}
	return tokens, nil
}
