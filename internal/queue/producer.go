package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/go-redis/redis/v8"
)

type Producer struct {
	client *redis.Client
	cfg    *config.Config
}

func NewProducer(client *redis.Client, cfg *config.Config) *Producer {
	return &Producer{
		client: client,
		cfg:    cfg,
	}
}

func (p *Producer) EnqueueFetchJob(ctx context.Context, job model.FetchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := p.client.LPush(ctx, p.cfg.Redis.FetchQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue fetch job: %w", err)
	}
	return nil
}

// Pending returns the number of queued fetch jobs and of jobs in the DLQ.
func (p *Producer) Pending(ctx context.Context) (queued, failed int64, err error) {
	if queued, err = p.client.LLen(ctx, p.cfg.Redis.FetchQueue).Result(); err != nil {
		return 0, 0, err
	}
	if failed, err = p.client.LLen(ctx, p.cfg.Redis.FetchQueue+p.cfg.Redis.DLQSuffix).Result(); err != nil {
		return 0, 0, err
	}
	return queued, failed, nil
}
