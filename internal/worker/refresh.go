package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenLister lists the users refreshed in the background.
type TokenLister interface {
	Tokens(ctx context.Context) ([]string, error)
}

type FetchQueue interface {
	EnqueueFetchJob(ctx context.Context, job model.FetchJob) error
}

// RefreshWorker periodically queues a fetch of the current class of every
// registered user.
type RefreshWorker struct {
	cfg       *config.Config
	tokens    TokenLister
	queue     FetchQueue
	scheduler gocron.Scheduler
	log       zerolog.Logger
}

func NewRefreshWorker(cfg *config.Config, tokens TokenLister, queue FetchQueue) *RefreshWorker {
	return &RefreshWorker{
		cfg:    cfg,
		tokens: tokens,
		queue:  queue,
		log:    logger.Component("refresh_worker"),
	}
}

// Start schedules the refresh job and blocks until ctx is done.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.log.Info().Str("schedule", w.cfg.Workers.Refresh.Schedule).Msg("Starting refresh worker")

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(w.cfg.Location()))
	if err != nil {
		return fmt.Errorf("failed to init cron scheduler: %w", err)
	}

	opts := []gocron.JobOption{
		gocron.WithName("refresh users"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
			w.log.Error().Err(err).Str("job", jobName).Msg("Scheduled refresh failed")
		})),
	}
	if w.cfg.Workers.Refresh.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := scheduler.NewJob(
		gocron.CronJob(w.cfg.Workers.Refresh.Schedule, false),
		gocron.NewTask(func() error { return w.enqueueAll(ctx) }),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}
	w.scheduler = scheduler

	scheduler.Start()
	if next, err := job.NextRun(); err == nil {
		w.log.Info().Time("next_run", next).Msg("Scheduled next refresh")
	}

	<-ctx.Done()
	w.log.Info().Msg("Refresh worker context cancelled")
	return ctx.Err()
}

func (w *RefreshWorker) Stop() {
	w.log.Info().Msg("Stopping refresh worker")
	if w.scheduler == nil {
		return
	}
	if err := w.scheduler.Shutdown(); err != nil {
		w.log.Error().Err(err).Msg("Failed to shut down cron scheduler")
	}
}

func (w *RefreshWorker) enqueueAll(ctx context.Context) error {
	start := time.Now()

	tokens, err := w.tokens.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var failed int
	for _, token := range tokens {
		job := model.FetchJob{Token: token, ClassIndex: 0, RequestedAt: start}
		if err := w.queue.EnqueueFetchJob(ctx, job); err != nil {
			w.log.Error().Err(err).Str("token", token).Msg("Failed to enqueue fetch job")
			failed++
		}
	}

	w.log.Info().
		Dur("duration", time.Since(start)).
		Int("users", len(tokens)).
		Int("failed", failed).
		Msg("Queued background refresh")

	if failed > 0 {
		return fmt.Errorf("failed to enqueue %d of %d fetch jobs", failed, len(tokens))
	}
	return nil
}
