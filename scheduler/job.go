// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"time"

	"github.com/xcherryio/xflow/persistence"
)

type (
	JobDetails struct {
		Type       persistence.JobType
		InstanceId string
		// RetryCount is for the job processor, the scheduler does not read it
		RetryCount int32
		// Payload must be JSON
		Payload []byte
	}

	Job struct {
		JobId string
		JobDetails
		ScheduledAt time.Time
		Persisted   bool

		// local retry state, lost on restart
		attempts     int32
		firstAttempt time.Time
		// fireAt overrides ScheduledAt in the queue once the job is retried.
		// ScheduledAt itself never changes, processors may rely on it.
		fireAt time.Time
	}
)

func (j *Job) firesAt() time.Time {
	if j.fireAt.IsZero() {
		return j.ScheduledAt
	}
	return j.fireAt
}

func jobFromRecord(rec persistence.JobRecord) *Job {
	return &Job{
		JobId: rec.JobId,
		JobDetails: JobDetails{
			Type:       rec.JobType,
			InstanceId: rec.InstanceId,
			RetryCount: rec.RetryCount,
			Payload:    rec.Payload,
		},
		ScheduledAt: rec.ScheduledAt,
		Persisted:   true,
	}
}

func (j *Job) toRecord() persistence.JobRecord {
	return persistence.JobRecord{
		JobId:       j.JobId,
		JobType:     j.Type,
		InstanceId:  j.InstanceId,
		ScheduledAt: j.ScheduledAt,
		Transacted:  true,
		RetryCount:  j.RetryCount,
		Payload:     j.Payload,
	}
}
