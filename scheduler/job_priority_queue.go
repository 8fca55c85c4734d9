// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"container/heap"
)

// This is the standard way of using heap in Golang
// See https://pkg.go.dev/container/heap for more details

func NewJobPriorityQueue(jobs []*Job) JobPriorityQueue {
	hq := make(JobPriorityQueue, 0, len(jobs))
	hq = append(hq, jobs...)
	heap.Init(&hq)
	return hq
}

// A JobPriorityQueue implements heap.Interface, the job firing earliest first
type JobPriorityQueue []*Job

func (pq *JobPriorityQueue) Len() int { return len(*pq) }

func (pq *JobPriorityQueue) Less(i, j int) bool {
	a, b := (*pq)[i].firesAt(), (*pq)[j].firesAt()
	if !a.Equal(b) {
		return a.Before(b)
	}
	return (*pq)[i].JobId < (*pq)[j].JobId
}

func (pq *JobPriorityQueue) Swap(i, j int) {
	(*pq)[i], (*pq)[j] = (*pq)[j], (*pq)[i]
}

func (pq *JobPriorityQueue) Push(x any) {
	item, ok := x.(*Job)
	if !ok {
		panic("Pushed item is not a Job")
	}
	*pq = append(*pq, item)
}

func (pq *JobPriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	*pq = old[0 : n-1]
	return item
}
