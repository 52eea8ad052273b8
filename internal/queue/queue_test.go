package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Producer, *Consumer, *miniredis.Miniredis) {
	t.Helper()
	cfg, err := config.Parse([]byte("redis:\n  fetch_queue: test:fetch\n"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	consumer := NewConsumer(client, cfg)
	consumer.timeout = 100 * time.Millisecond
	return NewProducer(client, cfg), consumer, mr
}

func TestFetchJobRoundTrip(t *testing.T) {
	producer, consumer, _ := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, producer.EnqueueFetchJob(ctx, model.FetchJob{Token: "tok", ClassIndex: 1}))

	queued, _, err := producer.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), queued)

	got := make(chan model.FetchJob, 1)
	err = consumer.ConsumeFetchQueue(ctx, func(_ context.Context, job model.FetchJob) error {
		got <- job
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	job := <-got
	assert.Equal(t, "tok", job.Token)
	assert.Equal(t, 1, job.ClassIndex)
}

func TestFailedJobsMoveToDLQ(t *testing.T) {
	producer, consumer, mr := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := mr.Lpush("test:fetch", "not json")
	require.NoError(t, err)
	require.NoError(t, producer.EnqueueFetchJob(ctx, model.FetchJob{Token: "tok"}))

	calls := 0
	err = consumer.ConsumeFetchQueue(ctx, func(context.Context, model.FetchJob) error {
		calls++
		cancel()
		return errors.New("portal down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	dlq, err := mr.List("test:fetch:dlq")
	require.NoError(t, err)
	assert.Len(t, dlq, 2)
}

func TestDeadLetterFetchJob(t *testing.T) {
	_, consumer, mr := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, consumer.DeadLetterFetchJob(ctx, model.FetchJob{Token: "tok", ClassIndex: 2}, errors.New("portal down")))

	dlq, err := mr.List("test:fetch:dlq")
	require.NoError(t, err)
	require.Len(t, dlq, 1)

	var job model.FetchJob
	require.NoError(t, json.Unmarshal([]byte(dlq[0]), &job))
	assert.Equal(t, model.FetchJob{Token: "tok", ClassIndex: 2}, job)
}

func TestPingRetriesUntilReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, ping(client, 3, time.Millisecond))

	mr.Close()
	err := ping(client, 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
