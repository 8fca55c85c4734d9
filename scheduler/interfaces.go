// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrJobDispatched is returned by CancelJob when the job already started or is gone
var ErrJobDispatched = errors.New("job is already dispatched")

// Scheduler runs jobs, each inside the transaction that consumes it.
//
// A persisted job is a row of the store, written in the caller's transaction. It is
// delivered at least once: a job whose consuming transaction never committed is
// offered again by the next poll, after a restart too.
// A volatile job only lives in this process and is lost on a crash.
type Scheduler interface {
	// Start starts polling and dispatching jobs to the processor
	Start(processor JobProcessor) error
	Stop(ctx context.Context) error

	// ExecTransaction runs fn in a new transaction. It commits when fn returns nil,
	// otherwise it rolls back and returns the error of fn.
	// A zero timeout means the configured default.
	ExecTransaction(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx *Tx) error) error

	// SchedulePersistedJob records a job in tx. A nil when means as soon as possible
	SchedulePersistedJob(ctx context.Context, tx *Tx, details JobDetails, when *time.Time) (string, error)
	// ScheduleVolatileJob keeps a job in memory. A transacted job is released when tx commits
	// and dropped when it rolls back, tx can be nil otherwise
	ScheduleVolatileJob(ctx context.Context, tx *Tx, transacted bool, details JobDetails, when *time.Time) (string, error)
	// CancelJob removes a job that is not dispatched yet. Persisted jobs are removed in tx
	CancelJob(ctx context.Context, tx *Tx, jobId string) error

	// NotifyNewJobs makes the queue poll the store now, for jobs written by another node
	NotifyNewJobs()
}

// JobProcessor executes a due job. Returning an error rolls back tx and the job is retried
// with backoff, so processing must be idempotent with respect to what tx has committed.
type JobProcessor interface {
	ProcessJob(ctx context.Context, tx *Tx, job Job) error
}

type JobProcessorFunc func(ctx context.Context, tx *Tx, job Job) error

func (f JobProcessorFunc) ProcessJob(ctx context.Context, tx *Tx, job Job) error {
	return f(ctx, tx, job)
}
