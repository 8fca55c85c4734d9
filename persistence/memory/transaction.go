// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xcherryio/xflow/persistence"
)

var errFinished = errors.New("transaction is already committed or rolled back")

type transaction struct {
	store    *store
	finished bool
	locked   []string

	instances    map[string]persistence.InstanceRecord
	newInstances map[string]bool

	jobs        map[string]persistence.JobRecord
	deletedJobs map[string]bool

	routes                []persistence.RouteRecord
	deletedRoutes         map[string]bool
	deletedInstanceRoutes map[string]bool
	// consumedRoutes are committed routes this transaction deleted by id
	consumedRoutes map[string]bool

	messages        []persistence.MessageRecord
	deletedMessages map[string]bool
}

func newTransaction(s *store) *transaction {
	return &transaction{
		store:                 s,
		instances:             map[string]persistence.InstanceRecord{},
		newInstances:          map[string]bool{},
		jobs:                  map[string]persistence.JobRecord{},
		deletedJobs:           map[string]bool{},
		deletedRoutes:         map[string]bool{},
		consumedRoutes:        map[string]bool{},
		deletedInstanceRoutes: map[string]bool{},
		deletedMessages:       map[string]bool{},
	}
}

func (t *transaction) InsertInstance(ctx context.Context, record persistence.InstanceRecord) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	if _, ok := s.instances[record.InstanceId]; ok {
		return fmt.Errorf("%w: instance %v already exists", persistence.ErrConflict, record.InstanceId)
	}
	if _, ok := t.instances[record.InstanceId]; ok {
		return fmt.Errorf("%w: instance %v already exists", persistence.ErrConflict, record.InstanceId)
	}
	t.instances[record.InstanceId] = cloneInstance(record)
	t.newInstances[record.InstanceId] = true
	t.lock(record.InstanceId)
	return nil
}

func (t *transaction) LockInstance(ctx context.Context, instanceId string) (*persistence.InstanceRecord, error) {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return nil, errFinished
	}
	if owner, ok := s.locks[instanceId]; ok && owner != t {
		return nil, persistence.ErrInstanceLocked
	}

	rec, ok := t.instances[instanceId]
	if !ok {
		rec, ok = s.instances[instanceId]
		if !ok {
			return nil, persistence.ErrNotFound
		}
	}
	t.lock(instanceId)
	rec = cloneInstance(rec)
	return &rec, nil
}

func (t *transaction) lock(instanceId string) {
	if _, ok := t.store.locks[instanceId]; ok {
		return
	}
	t.store.locks[instanceId] = t
	t.locked = append(t.locked, instanceId)
}

func (t *transaction) UpdateInstance(ctx context.Context, record persistence.InstanceRecord) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	if s.locks[record.InstanceId] != t {
		return fmt.Errorf("instance %v is updated without holding its lock", record.InstanceId)
	}
	current, ok := t.instances[record.InstanceId]
	if !ok {
		current, ok = s.instances[record.InstanceId]
		if !ok {
			return persistence.ErrNotFound
		}
	}
	if current.Version != record.Version-1 {
		return fmt.Errorf("%w: instance %v is at version %v, cannot write version %v",
			persistence.ErrConflict, record.InstanceId, current.Version, record.Version)
	}
	t.instances[record.InstanceId] = cloneInstance(record)
	return nil
}

func (t *transaction) InsertJob(ctx context.Context, record persistence.JobRecord) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	_, committed := s.jobs[record.JobId]
	_, buffered := t.jobs[record.JobId]
	if committed || buffered {
		return fmt.Errorf("%w: job %v already exists", persistence.ErrConflict, record.JobId)
	}
	t.jobs[record.JobId] = cloneJob(record)
	return nil
}

func (t *transaction) DeleteJob(ctx context.Context, jobId string) (bool, error) {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return false, errFinished
	}
	if _, ok := t.jobs[jobId]; ok {
		delete(t.jobs, jobId)
		return true, nil
	}
	if _, ok := s.jobs[jobId]; ok && !t.deletedJobs[jobId] {
		t.deletedJobs[jobId] = true
		return true, nil
	}
	return false, nil
}

func (t *transaction) InsertRoute(ctx context.Context, record persistence.RouteRecord) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	record.Seq = s.nextSeq()
	t.routes = append(t.routes, record)
	return nil
}

func (t *transaction) SelectRoutes(ctx context.Context, processType, operation string) ([]persistence.RouteRecord, error) {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return nil, errFinished
	}
	var routes []persistence.RouteRecord
	for _, r := range append(append([]persistence.RouteRecord(nil), s.routes...), t.routes...) {
		if r.ProcessType != processType || r.Operation != operation {
			continue
		}
		if t.deletedRoutes[r.RouteId] || t.deletedInstanceRoutes[r.InstanceId] {
			continue
		}
		routes = append(routes, r)
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Seq < routes[j].Seq
	})
	return routes, nil
}

func (t *transaction) DeleteRoute(ctx context.Context, routeId string) (bool, error) {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return false, errFinished
	}
	if t.deletedRoutes[routeId] {
		return false, nil
	}
	deleted := false
	kept := t.routes[:0]
	for _, r := range t.routes {
		if r.RouteId == routeId {
			deleted = true
			continue
		}
		kept = append(kept, r)
	}
	t.routes = kept
	for _, r := range s.routes {
		if r.RouteId == routeId && !t.deletedInstanceRoutes[r.InstanceId] {
			deleted = true
			t.consumedRoutes[routeId] = true
		}
	}
	if deleted {
		t.deletedRoutes[routeId] = true
	}
	return deleted, nil
}

func (t *transaction) DeleteInstanceRoutes(ctx context.Context, instanceId string) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	kept := t.routes[:0]
	for _, r := range t.routes {
		if r.InstanceId != instanceId {
			kept = append(kept, r)
		}
	}
	t.routes = kept
	t.deletedInstanceRoutes[instanceId] = true
	return nil
}

func (t *transaction) InsertMessage(ctx context.Context, record persistence.MessageRecord) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	record.Seq = s.nextSeq()
	record.Payload = append([]byte(nil), record.Payload...)
	t.messages = append(t.messages, record)
	return nil
}

func (t *transaction) SelectMessages(ctx context.Context, processType, operation string) ([]persistence.MessageRecord, error) {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return nil, errFinished
	}
	var messages []persistence.MessageRecord
	for _, m := range append(append([]persistence.MessageRecord(nil), s.messages...), t.messages...) {
		if m.ProcessType != processType || m.Operation != operation || t.deletedMessages[m.MessageId] {
			continue
		}
		messages = append(messages, m)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Seq < messages[j].Seq
	})
	return messages, nil
}

func (t *transaction) DeleteMessage(ctx context.Context, messageId string) (bool, error) {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return false, errFinished
	}
	for i, m := range t.messages {
		if m.MessageId == messageId {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return true, nil
		}
	}
	if t.deletedMessages[messageId] {
		return false, nil
	}
	for _, m := range s.messages {
		if m.MessageId == messageId {
			t.deletedMessages[messageId] = true
			return true, nil
		}
	}
	return false, nil
}

func (t *transaction) Commit(ctx context.Context) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	defer t.finish()

	if err := t.checkConflicts(); err != nil {
		return err
	}

	for id, rec := range t.instances {
		s.instances[id] = rec
	}
	for id := range t.deletedJobs {
		delete(s.jobs, id)
	}
	for id, rec := range t.jobs {
		s.jobs[id] = rec
	}

	routes := s.routes[:0]
	for _, r := range s.routes {
		if !t.deletedRoutes[r.RouteId] && !t.deletedInstanceRoutes[r.InstanceId] {
			routes = append(routes, r)
		}
	}
	s.routes = append(routes, t.routes...)

	messages := s.messages[:0]
	for _, m := range s.messages {
		if !t.deletedMessages[m.MessageId] {
			messages = append(messages, m)
		}
	}
	s.messages = append(messages, t.messages...)
	return nil
}

// checkConflicts fails the commit when a concurrent transaction already consumed
// a job or a message this one consumed too
func (t *transaction) checkConflicts() error {
	s := t.store
	for id := range t.deletedJobs {
		if _, ok := s.jobs[id]; !ok {
			return fmt.Errorf("%w: job %v was consumed by another transaction", persistence.ErrConflict, id)
		}
	}
	for id := range t.deletedMessages {
		found := false
		for _, m := range s.messages {
			if m.MessageId == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: message %v was consumed by another transaction", persistence.ErrConflict, id)
		}
	}
	for id := range t.consumedRoutes {
		if !s.hasRoute(id) {
			return fmt.Errorf("%w: route %v was consumed by another transaction", persistence.ErrConflict, id)
		}
	}
	for id := range t.newInstances {
		if _, ok := s.instances[id]; ok {
			return fmt.Errorf("%w: instance %v already exists", persistence.ErrConflict, id)
		}
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	s := t.store
	s.Lock()
	defer s.Unlock()
	if t.finished {
		return errFinished
	}
	t.finish()
	return nil
}

// finish must be called with the store lock held
func (t *transaction) finish() {
	t.finished = true
	for _, id := range t.locked {
		if t.store.locks[id] == t {
			delete(t.store.locks, id)
		}
	}
	t.locked = nil
}
