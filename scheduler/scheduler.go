// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/common/uuid"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/persistence"
	"go.uber.org/multierr"
)

type schedulerImpl struct {
	cfg    config.SchedulerConfig
	store  persistence.Store
	logger log.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	queue     *jobQueue
	processor *jobConcurrentProcessor
}

func NewScheduler(cfg config.SchedulerConfig, store persistence.Store, logger log.Logger) Scheduler {
	cfg.SetDefaults()
	rootCtx, rootCancel := context.WithCancel(context.Background())
	s := &schedulerImpl{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
	s.processor = newJobConcurrentProcessor(rootCtx, cfg, s, logger)
	s.queue = newJobQueue(rootCtx, cfg, store, s.processor.jobsToProcessChan, logger)
	return s
}

func (s *schedulerImpl) Start(processor JobProcessor) error {
	if err := s.processor.Start(s.queue, processor); err != nil {
		return err
	}
	return s.queue.Start()
}

func (s *schedulerImpl) Stop(ctx context.Context) error {
	s.rootCancel()
	return multierr.Combine(
		s.queue.Stop(ctx),
		s.processor.Stop(ctx),
	)
}

func (s *schedulerImpl) NotifyNewJobs() {
	s.queue.TriggerPolling()
}

func (s *schedulerImpl) ExecTransaction(
	ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx *Tx) error,
) (retErr error) {
	if timeout <= 0 {
		timeout = s.cfg.DefaultTransactionTimeout
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ptx, err := s.store.StartTransaction(ctx)
	if err != nil {
		return err
	}
	tx := newTx(ptx)

	committed := false
	defer func() {
		if committed {
			return
		}
		r := recover()
		if err := ptx.Rollback(ctx); err != nil {
			s.logger.Error("error on rollback transaction", tag.Error(err))
			retErr = multierr.Append(retErr, err)
		}
		if r != nil {
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ptx.Commit(ctx); err != nil {
		// the store ends the transaction on a failed commit
		committed = true
		s.logger.Error("error on committing transaction", tag.Error(err))
		return err
	}
	committed = true

	for _, job := range tx.pendingVolatile {
		s.queue.offer(job)
	}
	for _, fn := range tx.onCommit {
		fn()
	}
	for _, fn := range tx.afterCommit {
		fn(parent)
	}
	return nil
}

func (s *schedulerImpl) newJob(details JobDetails, when *time.Time, persisted bool) *Job {
	scheduledAt := time.Now()
	if when != nil {
		scheduledAt = *when
	}
	return &Job{
		JobId:       uuid.NewString(),
		JobDetails:  details,
		ScheduledAt: scheduledAt.UTC(),
		Persisted:   persisted,
	}
}

func (s *schedulerImpl) SchedulePersistedJob(
	ctx context.Context, tx *Tx, details JobDetails, when *time.Time,
) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("a persisted job must be scheduled in a transaction")
	}
	job := s.newJob(details, when, true)
	if err := tx.InsertJob(ctx, job.toRecord()); err != nil {
		return "", err
	}
	tx.OnCommit(func() {
		s.queue.offer(job)
	})
	return job.JobId, nil
}

func (s *schedulerImpl) ScheduleVolatileJob(
	ctx context.Context, tx *Tx, transacted bool, details JobDetails, when *time.Time,
) (string, error) {
	job := s.newJob(details, when, false)
	if !transacted {
		s.queue.offer(job)
		return job.JobId, nil
	}
	if tx == nil {
		return "", fmt.Errorf("a transacted job must be scheduled in a transaction")
	}
	tx.pendingVolatile[job.JobId] = job
	return job.JobId, nil
}

func (s *schedulerImpl) CancelJob(ctx context.Context, tx *Tx, jobId string) error {
	if tx != nil && tx.cancelPendingVolatile(jobId) {
		return nil
	}
	dispatched, found := s.queue.cancel(jobId)
	if dispatched {
		return ErrJobDispatched
	}
	if found {
		return nil
	}
	if tx == nil {
		return fmt.Errorf("job %v is not a pending volatile job, cancelling it needs a transaction", jobId)
	}
	deleted, err := tx.DeleteJob(ctx, jobId)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrJobDispatched
	}
	return nil
}
