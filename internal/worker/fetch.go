package worker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/rs/zerolog"
)

// Refresher re-runs the aggregation of one user's class.
type Refresher interface {
	Refresh(ctx context.Context, token string, classIndex int) (*model.ClassAggregate, error)
}

// FetchConsumer delivers queued fetch jobs and takes back the ones that fail.
type FetchConsumer interface {
	ConsumeFetchQueue(ctx context.Context, handler func(context.Context, model.FetchJob) error) error
	DeadLetterFetchJob(ctx context.Context, job model.FetchJob, cause error) error
}

type FetchWorker struct {
	cfg        *config.Config
	refresher  Refresher
	consumer   FetchConsumer
	workerPool *WorkerPool
	log        zerolog.Logger
}

func NewFetchWorker(cfg *config.Config, refresher Refresher, consumer FetchConsumer) *FetchWorker {
	return &FetchWorker{
		cfg:        cfg,
		refresher:  refresher,
		consumer:   consumer,
		workerPool: NewWorkerPool(cfg.Workers.Fetch.Count),
		log:        logger.Component("fetch_worker"),
	}
}

func (w *FetchWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting fetch worker")

	w.workerPool.Start(ctx)

	return w.consumer.ConsumeFetchQueue(ctx, w.handleJob)
}

func (w *FetchWorker) Stop() {
	w.log.Info().Msg("Stopping fetch worker")
	w.workerPool.Stop()
}

func (w *FetchWorker) handleJob(ctx context.Context, job model.FetchJob) error {
	w.log.Debug().Str("token", job.Token).Int("class_index", job.ClassIndex).Msg("Processing fetch job")

	return w.workerPool.Submit(ctx, func(ctx context.Context) error {
		err := w.process(ctx, job)
		if err != nil {
			if dlqErr := w.consumer.DeadLetterFetchJob(ctx, job, err); dlqErr != nil {
				w.log.Error().Err(dlqErr).Str("token", job.Token).Msg("Fetch job lost")
			}
		}
		return err
	})
}

func (w *FetchWorker) process(ctx context.Context, job model.FetchJob) error {
	log := w.log.With().Str("token", job.Token).Int("class_index", job.ClassIndex).Logger()
	start := time.Now()

	agg, err := w.refresher.Refresh(ctx, job.Token, job.ClassIndex)
	switch {
	case err == nil:
	case errors.IsAuth(err), stderrors.Is(err, errors.ErrTokenNotFound):
		log.Warn().Err(err).Msg("Dropping fetch job for logged out user")
		return nil
	default:
		return err
	}

	log.Info().
		Dur("duration", time.Since(start)).
		Int("subjects", len(agg.Subjects)).
		Bool("partial", agg.Partial).
		Msg("Fetch job completed")
	return nil
}
