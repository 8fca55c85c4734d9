// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistencetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/persistence"
)

func StoreInstanceTest(t *testing.T, ass *assert.Assertions, store persistence.Store) {
	ctx := context.Background()
	rec := newInstance()

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		ass.Nil(tx.InsertInstance(ctx, rec))
	})

	loaded, err := store.GetInstance(ctx, rec.InstanceId)
	ass.Nil(err)
	ass.Equal(rec.InstanceId, loaded.InstanceId)
	ass.Equal(rec.State, loaded.State)
	ass.Equal(persistence.InstanceStatusNew, loaded.Status)

	// duplicate insert
	tx, err := store.StartTransaction(ctx)
	ass.Nil(err)
	err = tx.InsertInstance(ctx, rec)
	ass.True(errors.Is(err, persistence.ErrConflict))
	ass.Nil(tx.Rollback(ctx))

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		locked, err := tx.LockInstance(ctx, rec.InstanceId)
		ass.Nil(err)
		locked.Status = persistence.InstanceStatusCompletedWithFault
		locked.FaultName = "{foo}bar"
		locked.Version++
		ass.Nil(tx.UpdateInstance(ctx, *locked))
	})

	loaded, err = store.GetInstance(ctx, rec.InstanceId)
	ass.Nil(err)
	ass.Equal(persistence.InstanceStatusCompletedWithFault, loaded.Status)
	ass.Equal("{foo}bar", loaded.FaultName)
	ass.Equal(int64(2), loaded.Version)

	// stale version
	tx, err = store.StartTransaction(ctx)
	ass.Nil(err)
	locked, err := tx.LockInstance(ctx, rec.InstanceId)
	ass.Nil(err)
	locked.Version = 1
	ass.True(errors.Is(tx.UpdateInstance(ctx, *locked), persistence.ErrConflict))
	ass.Nil(tx.Rollback(ctx))

	_, err = store.GetInstance(ctx, "not-exist")
	ass.True(errors.Is(err, persistence.ErrNotFound))
}

func StoreJobTest(t *testing.T, ass *assert.Assertions, store persistence.Store) {
	ctx := context.Background()
	now := time.Now()
	rec := newInstance()
	late := newJob(rec.InstanceId, now.Add(time.Hour))
	first := newJob(rec.InstanceId, now.Add(-2*time.Second))
	second := newJob(rec.InstanceId, now.Add(-time.Second))

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		ass.Nil(tx.InsertInstance(ctx, rec))
		ass.Nil(tx.InsertJob(ctx, late))
		ass.Nil(tx.InsertJob(ctx, second))
		ass.Nil(tx.InsertJob(ctx, first))
	})

	resp, err := store.GetJobs(ctx, persistence.GetJobsRequest{ScheduledBefore: now, PageSize: 10})
	ass.Nil(err)
	ass.Equal([]string{first.JobId, second.JobId}, jobIds(resp.Jobs))
	ass.False(resp.HasMore)
	ass.Equal(first.Payload, resp.Jobs[0].Payload)
	ass.Equal(persistence.JobTypeResume, resp.Jobs[0].JobType)
	ass.True(resp.Jobs[0].ScheduledAt.Equal(first.ScheduledAt))

	resp, err = store.GetJobs(ctx, persistence.GetJobsRequest{ScheduledBefore: now.Add(2 * time.Hour), PageSize: 2})
	ass.Nil(err)
	ass.Equal([]string{first.JobId, second.JobId}, jobIds(resp.Jobs))
	ass.True(resp.HasMore)

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		deleted, err := tx.DeleteJob(ctx, first.JobId)
		ass.Nil(err)
		ass.True(deleted)
		deleted, err = tx.DeleteJob(ctx, first.JobId)
		ass.Nil(err)
		ass.False(deleted)
	})

	resp, err = store.GetJobs(ctx, persistence.GetJobsRequest{ScheduledBefore: now, PageSize: 10})
	ass.Nil(err)
	ass.Equal([]string{second.JobId}, jobIds(resp.Jobs))
}

// StoreRollbackTest checks that nothing written by a rolled back transaction is visible,
// which is what a crash before commit looks like
func StoreRollbackTest(t *testing.T, ass *assert.Assertions, store persistence.Store) {
	ctx := context.Background()
	rec := newInstance()
	job := newJob(rec.InstanceId, time.Now().Add(-time.Second))

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		ass.Nil(tx.InsertInstance(ctx, rec))
		ass.Nil(tx.InsertJob(ctx, job))
	})

	tx, err := store.StartTransaction(ctx)
	ass.Nil(err)
	deleted, err := tx.DeleteJob(ctx, job.JobId)
	ass.Nil(err)
	ass.True(deleted)
	locked, err := tx.LockInstance(ctx, rec.InstanceId)
	ass.Nil(err)
	locked.Status = persistence.InstanceStatusCompletedOk
	locked.Version++
	ass.Nil(tx.UpdateInstance(ctx, *locked))
	ass.Nil(tx.InsertRoute(ctx, persistence.RouteRecord{
		RouteId: "r-rollback", ProcessType: testProcessType, Operation: testOperation, InstanceId: rec.InstanceId,
	}))
	ass.Nil(tx.Rollback(ctx))

	loaded, err := store.GetInstance(ctx, rec.InstanceId)
	ass.Nil(err)
	ass.Equal(persistence.InstanceStatusNew, loaded.Status)
	ass.Equal(int64(1), loaded.Version)

	resp, err := store.GetJobs(ctx, persistence.GetJobsRequest{ScheduledBefore: time.Now().Add(time.Minute), PageSize: 100})
	ass.Nil(err)
	ass.Contains(jobIds(resp.Jobs), job.JobId)

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		routes, err := tx.SelectRoutes(ctx, testProcessType, testOperation)
		ass.Nil(err)
		for _, r := range routes {
			ass.NotEqual("r-rollback", r.RouteId)
		}
		// the lock is released by the rollback
		_, err = tx.LockInstance(ctx, rec.InstanceId)
		ass.Nil(err)
	})
}
