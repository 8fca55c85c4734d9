// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/xcherryio/xflow/common/clock"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/persistence"
)

// jobQueue loads due jobs from the store and hands them to the processor when they fire.
// Persisted jobs written by this process are offered directly on commit, polling
// picks up everything else: jobs of other nodes and jobs left behind by a crash.
type jobQueue struct {
	sync.Mutex

	store   persistence.Store
	cfg     config.SchedulerConfig
	logger  log.Logger
	rootCtx context.Context

	timeSource clock.TimeSource

	jobsToProcessChan chan<- *Job

	// the timer for next poll (by interval duration)
	nextPollTimer TimerGate
	// the timer for next firing of the loaded jobs
	nextFiringTimer TimerGate

	// jobs waiting for their scheduled time
	pending JobPriorityQueue
	// loaded has every job that is pending or dispatched, so that a poll
	// does not load a job twice
	loaded map[string]*Job
	// dispatched jobs cannot be cancelled
	dispatched map[string]bool
	// cancelled volatile jobs are dropped when they fire
	cancelled map[string]bool
	// the end of the window of the last poll. Persisted jobs beyond it are left to a later poll
	windowEnd time.Time
	// the last poll returned a full page
	hasMore bool

	triggeredPollingChan chan struct{}
}

func newJobQueue(
	rootCtx context.Context, cfg config.SchedulerConfig, store persistence.Store,
	jobsToProcessChan chan<- *Job, logger log.Logger,
) *jobQueue {
	timeSource := clock.NewRealTimeSource()
	return &jobQueue{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		rootCtx: rootCtx,

		timeSource: timeSource,

		jobsToProcessChan: jobsToProcessChan,

		nextPollTimer:   NewLocalTimerGate(logger, timeSource),
		nextFiringTimer: NewLocalTimerGate(logger, timeSource),

		loaded:     map[string]*Job{},
		dispatched: map[string]bool{},
		cancelled:  map[string]bool{},

		triggeredPollingChan: make(chan struct{}, 1),
	}
}

func (q *jobQueue) Start() error {
	q.Lock()
	q.nextPollTimer.Update(q.timeSource.Now()) // fire immediately to make the first poll
	q.Unlock()

	go func() {
		for {
			select {
			case <-q.nextPollTimer.FireChan():
				q.poll()
			case <-q.triggeredPollingChan:
				q.poll()
			case <-q.nextFiringTimer.FireChan():
				q.sendFiredJobsToProcessor()
			case <-q.rootCtx.Done():
				q.logger.Info("job queue is being closed")
				return
			}
		}
	}()
	return nil
}

func (q *jobQueue) Stop(ctx context.Context) error {
	// close timer to prevent goroutine leakage
	q.nextPollTimer.Close()
	q.nextFiringTimer.Close()
	return nil
}

// TriggerPolling is best effort, a pending trigger absorbs new ones
func (q *jobQueue) TriggerPolling() {
	select {
	case q.triggeredPollingChan <- struct{}{}:
	default:
	}
}

func (q *jobQueue) getNextPollTime(interval, jitter time.Duration) time.Time {
	var jitterD time.Duration
	if jitter > 0 {
		jitterD = time.Duration(rand.Int63n(int64(jitter)))
	}
	return q.timeSource.Now().Add(interval).Add(jitterD)
}

func (q *jobQueue) poll() {
	now := q.timeSource.Now()
	nextPoll := q.getNextPollTime(q.cfg.MaxPollInterval, q.cfg.IntervalJitter)
	windowEnd := now.Add(q.cfg.PreloadLookAhead)
	if nextPoll.After(windowEnd) {
		windowEnd = nextPoll
	}

	q.Lock()
	q.nextPollTimer.Update(nextPoll)
	q.Unlock()

	resp, err := q.store.GetJobs(q.rootCtx, persistence.GetJobsRequest{
		ScheduledBefore: windowEnd,
		PageSize:        q.cfg.PollPageSize,
	})
	if err != nil {
		q.logger.Error("failed at loading jobs, will retry", tag.Error(err))
		// schedule an earlier next poll
		q.Lock()
		q.nextPollTimer.Update(q.getNextPollTime(0, q.cfg.IntervalJitter))
		q.Unlock()
		return
	}

	q.Lock()
	defer q.Unlock()
	if windowEnd.After(q.windowEnd) {
		q.windowEnd = windowEnd
	}
	q.hasMore = resp.HasMore
	added := 0
	for _, rec := range resp.Jobs {
		if _, ok := q.loaded[rec.JobId]; ok {
			continue
		}
		q.push(jobFromRecord(rec))
		added++
	}
	if added > 0 {
		q.logger.Debug("loaded jobs", tag.Count(added))
	}
}

// push must be called with the lock held
func (q *jobQueue) push(job *Job) {
	q.loaded[job.JobId] = job
	heap.Push(&q.pending, job)
	q.nextFiringTimer.Update(job.firesAt())
}

// offer adds a job scheduled by this process
func (q *jobQueue) offer(job *Job) {
	q.Lock()
	defer q.Unlock()
	if _, ok := q.loaded[job.JobId]; ok {
		return
	}
	if job.Persisted && job.ScheduledAt.After(q.windowEnd) {
		return
	}
	q.push(job)
}

// retry puts a failed job back, to fire at the given time
func (q *jobQueue) retry(job *Job, at time.Time) {
	q.Lock()
	defer q.Unlock()
	delete(q.dispatched, job.JobId)
	job.fireAt = at
	q.push(job)
}

// complete forgets a job once its transaction committed, or the processor gave up on it
func (q *jobQueue) complete(jobId string) {
	q.Lock()
	defer q.Unlock()
	delete(q.loaded, jobId)
	delete(q.dispatched, jobId)
	delete(q.cancelled, jobId)
	if q.hasMore && len(q.pending) == 0 {
		q.hasMore = false
		q.TriggerPolling()
	}
}

// cancel drops a pending volatile job. Persisted jobs are cancelled in the store,
// their in-memory copy is skipped by the processor when it is found deleted.
func (q *jobQueue) cancel(jobId string) (dispatched bool, found bool) {
	q.Lock()
	defer q.Unlock()
	if q.dispatched[jobId] {
		return true, true
	}
	job, ok := q.loaded[jobId]
	if !ok || job.Persisted {
		return false, false
	}
	q.cancelled[jobId] = true
	return false, true
}

func (q *jobQueue) sendFiredJobsToProcessor() {
	for {
		q.Lock()
		if len(q.pending) == 0 {
			q.Unlock()
			return
		}
		job := q.pending[0]
		if job.firesAt().After(q.timeSource.Now()) {
			q.nextFiringTimer.Update(job.firesAt())
			q.Unlock()
			return
		}
		heap.Pop(&q.pending)
		if q.cancelled[job.JobId] {
			delete(q.cancelled, job.JobId)
			delete(q.loaded, job.JobId)
			q.Unlock()
			continue
		}
		q.dispatched[job.JobId] = true
		q.Unlock()

		select {
		case q.jobsToProcessChan <- job:
		case <-q.rootCtx.Done():
			return
		}
	}
}
