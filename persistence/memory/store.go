// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package memory is a Store kept in process memory. Transactions buffer their writes
// and apply them on commit, so an abandoned transaction leaves no trace, the same way
// a crashed database session does.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/xcherryio/xflow/persistence"
)

var errClosed = errors.New("memory store is closed")

type store struct {
	sync.Mutex
	instances map[string]persistence.InstanceRecord
	jobs      map[string]persistence.JobRecord
	routes    []persistence.RouteRecord
	messages  []persistence.MessageRecord
	// locks maps an instance id to the transaction holding it
	locks  map[string]*transaction
	seq    int64
	closed bool
}

func NewStore() persistence.Store {
	return &store{
		instances: map[string]persistence.InstanceRecord{},
		jobs:      map[string]persistence.JobRecord{},
		locks:     map[string]*transaction{},
	}
}

func (s *store) StartTransaction(ctx context.Context) (persistence.Transaction, error) {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return newTransaction(s), nil
}

func (s *store) GetInstance(ctx context.Context, instanceId string) (*persistence.InstanceRecord, error) {
	s.Lock()
	defer s.Unlock()
	rec, ok := s.instances[instanceId]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	rec = cloneInstance(rec)
	return &rec, nil
}

func (s *store) GetJobs(ctx context.Context, request persistence.GetJobsRequest) (*persistence.GetJobsResponse, error) {
	s.Lock()
	defer s.Unlock()
	var jobs []persistence.JobRecord
	for _, j := range s.jobs {
		if j.ScheduledAt.Before(request.ScheduledBefore) {
			jobs = append(jobs, cloneJob(j))
		}
	}
	sortJobs(jobs)

	resp := &persistence.GetJobsResponse{}
	if request.PageSize > 0 && len(jobs) > int(request.PageSize) {
		jobs = jobs[:request.PageSize]
		resp.HasMore = true
	}
	resp.Jobs = jobs
	return resp, nil
}

func (s *store) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}

// hasRoute must be called with the lock held
func (s *store) hasRoute(routeId string) bool {
	for _, r := range s.routes {
		if r.RouteId == routeId {
			return true
		}
	}
	return false
}

func (s *store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func sortJobs(jobs []persistence.JobRecord) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].ScheduledAt.Equal(jobs[j].ScheduledAt) {
			return jobs[i].ScheduledAt.Before(jobs[j].ScheduledAt)
		}
		return jobs[i].JobId < jobs[j].JobId
	})
}

func cloneInstance(rec persistence.InstanceRecord) persistence.InstanceRecord {
	rec.State = append([]byte(nil), rec.State...)
	return rec
}

func cloneJob(rec persistence.JobRecord) persistence.JobRecord {
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec
}
