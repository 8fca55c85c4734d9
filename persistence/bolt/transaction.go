// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xcherryio/xflow/persistence"
	"go.etcd.io/bbolt"
)

var errFinished = errors.New("transaction is already committed or rolled back")

type transaction struct {
	db     *database
	actual *bbolt.Tx
}

func (t *transaction) InsertInstance(ctx context.Context, record persistence.InstanceRecord) error {
	if t.actual == nil {
		return errFinished
	}
	b := t.actual.Bucket(instancesBucket)
	if b.Get([]byte(record.InstanceId)) != nil {
		return fmt.Errorf("%w: instance %v already exists", persistence.ErrConflict, record.InstanceId)
	}
	return putJson(b, []byte(record.InstanceId), record)
}

func (t *transaction) LockInstance(ctx context.Context, instanceId string) (*persistence.InstanceRecord, error) {
	if t.actual == nil {
		return nil, errFinished
	}
	return getInstance(t.actual, instanceId)
}

func (t *transaction) UpdateInstance(ctx context.Context, record persistence.InstanceRecord) error {
	if t.actual == nil {
		return errFinished
	}
	current, err := getInstance(t.actual, record.InstanceId)
	if err != nil {
		return err
	}
	if current.Version != record.Version-1 {
		return fmt.Errorf("%w: instance %v is at version %v, cannot write version %v",
			persistence.ErrConflict, record.InstanceId, current.Version, record.Version)
	}
	return putJson(t.actual.Bucket(instancesBucket), []byte(record.InstanceId), record)
}

func (t *transaction) InsertJob(ctx context.Context, record persistence.JobRecord) error {
	if t.actual == nil {
		return errFinished
	}
	jobs := t.actual.Bucket(jobsBucket)
	if jobs.Get([]byte(record.JobId)) != nil {
		return fmt.Errorf("%w: job %v already exists", persistence.ErrConflict, record.JobId)
	}
	if err := putJson(jobs, []byte(record.JobId), record); err != nil {
		return err
	}
	return t.actual.Bucket(jobScheduleBucket).Put(scheduleKey(record), nil)
}

func (t *transaction) DeleteJob(ctx context.Context, jobId string) (bool, error) {
	if t.actual == nil {
		return false, errFinished
	}
	jobs := t.actual.Bucket(jobsBucket)
	data := jobs.Get([]byte(jobId))
	if data == nil {
		return false, nil
	}
	var job persistence.JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		return false, err
	}
	if err := jobs.Delete([]byte(jobId)); err != nil {
		return false, err
	}
	return true, t.actual.Bucket(jobScheduleBucket).Delete(scheduleKey(job))
}

func (t *transaction) InsertRoute(ctx context.Context, record persistence.RouteRecord) error {
	if t.actual == nil {
		return errFinished
	}
	b := t.actual.Bucket(routesBucket)
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	record.Seq = int64(seq)
	return putJson(b, seqKey(seq), record)
}

func (t *transaction) SelectRoutes(ctx context.Context, processType, operation string) ([]persistence.RouteRecord, error) {
	if t.actual == nil {
		return nil, errFinished
	}
	var routes []persistence.RouteRecord
	err := t.actual.Bucket(routesBucket).ForEach(func(k, v []byte) error {
		var r persistence.RouteRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.ProcessType == processType && r.Operation == operation {
			routes = append(routes, r)
		}
		return nil
	})
	return routes, err
}

func (t *transaction) DeleteRoute(ctx context.Context, routeId string) (bool, error) {
	deleted, err := t.deleteRoutes(func(r persistence.RouteRecord) bool {
		return r.RouteId == routeId
	})
	return deleted > 0, err
}

func (t *transaction) DeleteInstanceRoutes(ctx context.Context, instanceId string) error {
	_, err := t.deleteRoutes(func(r persistence.RouteRecord) bool {
		return r.InstanceId == instanceId
	})
	return err
}

func (t *transaction) deleteRoutes(match func(persistence.RouteRecord) bool) (int, error) {
	if t.actual == nil {
		return 0, errFinished
	}
	b := t.actual.Bucket(routesBucket)
	var keys [][]byte
	err := b.ForEach(func(k, v []byte) error {
		var r persistence.RouteRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if match(r) {
			keys = append(keys, bytes.Clone(k))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func (t *transaction) InsertMessage(ctx context.Context, record persistence.MessageRecord) error {
	if t.actual == nil {
		return errFinished
	}
	b := t.actual.Bucket(messagesBucket)
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	record.Seq = int64(seq)
	return putJson(b, seqKey(seq), record)
}

func (t *transaction) SelectMessages(ctx context.Context, processType, operation string) ([]persistence.MessageRecord, error) {
	if t.actual == nil {
		return nil, errFinished
	}
	var messages []persistence.MessageRecord
	err := t.actual.Bucket(messagesBucket).ForEach(func(k, v []byte) error {
		var m persistence.MessageRecord
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		if m.ProcessType == processType && m.Operation == operation {
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

func (t *transaction) DeleteMessage(ctx context.Context, messageId string) (bool, error) {
	if t.actual == nil {
		return false, errFinished
	}
	b := t.actual.Bucket(messagesBucket)
	var key []byte
	err := b.ForEach(func(k, v []byte) error {
		var m persistence.MessageRecord
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		if key == nil && m.MessageId == messageId {
			key = bytes.Clone(k)
		}
		return nil
	})
	if err != nil || key == nil {
		return false, err
	}
	return true, b.Delete(key)
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.actual == nil {
		return errFinished
	}
	defer t.end()
	return t.actual.Commit()
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.actual == nil {
		return errFinished
	}
	defer t.end()
	return t.actual.Rollback()
}

func (t *transaction) end() {
	t.actual = nil
	t.db.end()
}

func putJson(b *bbolt.Bucket, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(k, data)
}
