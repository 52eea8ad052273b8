package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"

	"github.com/go-redis/redis/v8"
)

const (
	pingAttempts = 5
	pingTimeout  = 5 * time.Second
)

// RedisClient is the connection shared by the key-value store and the fetch
// queue.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to Redis, retrying the initial ping so binaries
// started next to Redis do not exit while it is still booting.
func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if err := ping(rdb, pingAttempts, time.Second); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisClient{client: rdb}, nil
}

func ping(rdb *redis.Client, attempts int, backoff time.Duration) error {
	log := logger.Component("redis")

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Redis not reachable yet")
		if attempt < attempts {
			time.Sleep(backoff * time.Duration(attempt))
		}
	}
	return fmt.Errorf("failed to ping Redis after %d attempts: %w", attempts, err)
}

func (r *RedisClient) Client() *redis.Client {
	return r.client
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
