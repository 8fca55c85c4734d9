// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"container/heap"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobPriorityQueue(t *testing.T) {
	base := time.Now()
	at := func(i int) time.Time {
		return base.Add(time.Duration(i) * time.Second)
	}
	pq := NewJobPriorityQueue([]*Job{
		{JobId: "6", ScheduledAt: at(6)},
		{JobId: "7", ScheduledAt: at(7)},
		{JobId: "5", ScheduledAt: at(5)},
		{JobId: "8", ScheduledAt: at(8)},
	})

	heap.Push(&pq, &Job{JobId: "3", ScheduledAt: at(3)})
	heap.Push(&pq, &Job{JobId: "1", ScheduledAt: at(1)})
	heap.Push(&pq, &Job{JobId: "2", ScheduledAt: at(2)})
	heap.Push(&pq, &Job{JobId: "4", ScheduledAt: at(4)})

	for i := 0; i < 8; i++ {
		job0 := pq[0]
		job := heap.Pop(&pq)
		assert.Equal(t, job0, job)
		job1, ok := job.(*Job)
		assert.Equal(t, true, ok)

		assert.Equal(t, at(i+1), job1.ScheduledAt)
	}
}

func TestJobPriorityQueueTieBreakByJobId(t *testing.T) {
	now := time.Now()
	pq := NewJobPriorityQueue([]*Job{
		{JobId: "b", ScheduledAt: now},
		{JobId: "c", ScheduledAt: now},
		{JobId: "a", ScheduledAt: now},
	})

	var ids []string
	for pq.Len() > 0 {
		ids = append(ids, heap.Pop(&pq).(*Job).JobId)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestJobPriorityQueueOrdersRetriedJobsByFiringTime(t *testing.T) {
	now := time.Now()
	retried := &Job{JobId: "a", ScheduledAt: now, fireAt: now.Add(time.Minute)}
	pq := NewJobPriorityQueue([]*Job{
		retried,
		{JobId: "b", ScheduledAt: now.Add(time.Second)},
	})

	assert.Equal(t, "b", heap.Pop(&pq).(*Job).JobId)
	job := heap.Pop(&pq).(*Job)
	assert.Equal(t, "a", job.JobId)
	assert.Equal(t, now, job.ScheduledAt)
}
