// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package bolt is a Store on an embedded bbolt database, for single node deployments.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/persistence"
	"go.etcd.io/bbolt"
)

var (
	instancesBucket   = []byte("instances")
	jobsBucket        = []byte("jobs")
	jobScheduleBucket = []byte("job_schedule")
	routesBucket      = []byte("routes")
	messagesBucket    = []byte("messages")
)

// database wraps a bbolt database with a context-aware write lock.
//
// bbolt runs one write transaction at a time, so a transaction of this store holds
// every instance exclusively, and LockInstance never reports ErrInstanceLocked.
type database struct {
	writeLock chan struct{}
	actual    *bbolt.DB
}

func NewStore(cfg *config.Bolt) (persistence.Store, error) {
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{instancesBucket, jobsBucket, jobScheduleBucket, routesBucket, messagesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &database{
		writeLock: make(chan struct{}, 1),
		actual:    db,
	}, nil
}

func (db *database) StartTransaction(ctx context.Context) (persistence.Transaction, error) {
	select {
	case db.writeLock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tx, err := db.actual.Begin(true)
	if err != nil {
		<-db.writeLock
		return nil, err
	}
	return &transaction{db: db, actual: tx}, nil
}

func (db *database) end() {
	<-db.writeLock
}

func (db *database) GetInstance(ctx context.Context, instanceId string) (*persistence.InstanceRecord, error) {
	var rec *persistence.InstanceRecord
	err := db.actual.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getInstance(tx, instanceId)
		return err
	})
	return rec, err
}

func (db *database) GetJobs(ctx context.Context, request persistence.GetJobsRequest) (*persistence.GetJobsResponse, error) {
	resp := &persistence.GetJobsResponse{}
	err := db.actual.View(func(tx *bbolt.Tx) error {
		jobs := tx.Bucket(jobsBucket)
		c := tx.Bucket(jobScheduleBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if !scheduleTime(k).Before(request.ScheduledBefore) {
				break
			}
			if request.PageSize > 0 && len(resp.Jobs) == int(request.PageSize) {
				resp.HasMore = true
				break
			}
			var job persistence.JobRecord
			if err := json.Unmarshal(jobs.Get(k[8:]), &job); err != nil {
				return err
			}
			resp.Jobs = append(resp.Jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (db *database) Close() error {
	return db.actual.Close()
}

func getInstance(tx *bbolt.Tx, instanceId string) (*persistence.InstanceRecord, error) {
	data := tx.Bucket(instancesBucket).Get([]byte(instanceId))
	if data == nil {
		return nil, persistence.ErrNotFound
	}
	rec := &persistence.InstanceRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// scheduleKey orders jobs by scheduled time then job id
func scheduleKey(job persistence.JobRecord) []byte {
	k := make([]byte, 8, 8+len(job.JobId))
	binary.BigEndian.PutUint64(k, uint64(job.ScheduledAt.UnixNano()))
	return append(k, job.JobId...)
}

func scheduleTime(k []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(k[:8])))
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
