package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Consumer struct {
	client  *redis.Client
	cfg     *config.Config
	timeout time.Duration
	log     zerolog.Logger
}

func NewConsumer(client *redis.Client, cfg *config.Config) *Consumer {
	return &Consumer{
		client:  client,
		cfg:     cfg,
		timeout: 5 * time.Second,
		log:     logger.Component("queue"),
	}
}

// ConsumeFetchQueue blocks until ctx is done, handing every job to handler.
// Jobs that fail to decode or that handler returns an error for are moved to
// the DLQ. Handlers that finish asynchronously report failures through
// DeadLetterFetchJob.
func (c *Consumer) ConsumeFetchQueue(ctx context.Context, handler func(context.Context, model.FetchJob) error) error {
	return c.consume(ctx, c.cfg.Redis.FetchQueue, func(ctx context.Context, data []byte) error {
		var job model.FetchJob
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to decode fetch job: %w", err)
		}
		return handler(ctx, job)
	})
}

// DeadLetterFetchJob moves a job that failed after handoff to the fetch DLQ.
func (c *Consumer) DeadLetterFetchJob(ctx context.Context, job model.FetchJob, cause error) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal fetch job: %w", err)
	}

	dlqName := c.cfg.Redis.FetchQueue + c.cfg.Redis.DLQSuffix
	if err := c.client.LPush(context.WithoutCancel(ctx), dlqName, data).Err(); err != nil {
		return fmt.Errorf("failed to move fetch job to DLQ: %w", err)
	}

	c.log.Warn().Err(cause).Str("dlq", dlqName).Int("class_index", job.ClassIndex).Msg("Fetch job moved to DLQ")
	return nil
}

func (c *Consumer) consume(ctx context.Context, queueName string, handler func(context.Context, []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			result, err := c.client.BRPop(ctx, c.timeout, queueName).Result()
			if err != nil {
				if err == redis.Nil {
					continue // Timeout, continue polling
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Error().Err(err).Str("queue", queueName).Msg("Failed to consume message")
				time.Sleep(time.Second)
				continue
			}

			if len(result) < 2 {
				continue
			}

			message := result[1]
			if err := handler(ctx, []byte(message)); err != nil {
				c.log.Error().Err(err).Str("queue", queueName).Msg("Failed to process message")
				dlqName := queueName + c.cfg.Redis.DLQSuffix
				if dlqErr := c.client.LPush(context.Background(), dlqName, message).Err(); dlqErr != nil {
					c.log.Error().Err(dlqErr).Str("dlq", dlqName).Msg("Failed to move message to DLQ")
				}
			}
		}
	}
}
