// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/persistence"
	"golang.org/x/sync/errgroup"
)

type jobConcurrentProcessor struct {
	rootCtx           context.Context
	cfg               config.SchedulerConfig
	jobsToProcessChan chan *Job
	scheduler         *schedulerImpl
	queue             *jobQueue
	processor         JobProcessor
	group             *errgroup.Group
	logger            log.Logger
}

func newJobConcurrentProcessor(
	rootCtx context.Context, cfg config.SchedulerConfig, scheduler *schedulerImpl, logger log.Logger,
) *jobConcurrentProcessor {
	return &jobConcurrentProcessor{
		rootCtx:           rootCtx,
		cfg:               cfg,
		jobsToProcessChan: make(chan *Job, cfg.ProcessorBufferSize),
		scheduler:         scheduler,
		logger:            logger,
	}
}

func (w *jobConcurrentProcessor) Start(queue *jobQueue, processor JobProcessor) error {
	w.queue = queue
	w.processor = processor

	group, ctx := errgroup.WithContext(w.rootCtx)
	w.group = group
	for i := 0; i < w.cfg.ProcessorConcurrency; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job, ok := <-w.jobsToProcessChan:
					if !ok {
						return nil
					}
					w.processJob(ctx, job)
				}
			}
		})
	}
	return nil
}

// Stop waits for the workers, which exit once the root context is cancelled
func (w *jobConcurrentProcessor) Stop(ctx context.Context) error {
	if w.group == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- w.group.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *jobConcurrentProcessor) processJob(ctx context.Context, job *Job) {
	logger := w.logger.WithTags(tag.JobId(job.JobId), tag.JobType(job.Type.String()), tag.InstanceId(job.InstanceId))
	logger.Debug("start executing job")

	if job.firstAttempt.IsZero() {
		job.firstAttempt = time.Now()
	}

	skipped := false
	err := w.scheduler.ExecTransaction(ctx, 0, func(ctx context.Context, tx *Tx) error {
		if job.Persisted {
			deleted, err := tx.DeleteJob(ctx, job.JobId)
			if err != nil {
				return err
			}
			if !deleted {
				// consumed by another node, or cancelled
				skipped = true
				return nil
			}
		}
		return w.processor.ProcessJob(ctx, tx, *job)
	})

	if err == nil {
		if skipped {
			logger.Debug("skip the job that is already consumed")
		}
		w.queue.complete(job.JobId)
		return
	}

	if ctx.Err() != nil {
		// shutting down, a persisted job will be polled again after restart
		return
	}

	if errors.Is(err, persistence.ErrInstanceLocked) {
		logger.Debug("instance is locked, will retry the job")
		w.queue.retry(job, time.Now().Add(w.cfg.InstanceLockRetryInterval))
		return
	}

	job.attempts++
	backoff, shouldRetry := GetNextBackoff(job.attempts, job.firstAttempt, w.cfg.JobRetryPolicy)
	if !shouldRetry {
		// a persisted job stays in the store and is loaded again by a later poll
		logger.Error("giving up the job after retries", tag.Error(err), tag.Attempt(job.attempts))
		w.queue.complete(job.JobId)
		return
	}
	logger.Warn("failed to process job, will retry with backoff",
		tag.Error(err), tag.Attempt(job.attempts), tag.Value(backoff))
	w.queue.retry(job, time.Now().Add(backoff))
}
