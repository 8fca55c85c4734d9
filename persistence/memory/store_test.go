// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/persistence/persistencetest"
)

func TestInstance(t *testing.T) {
	persistencetest.StoreInstanceTest(t, assert.New(t), NewStore())
}

func TestJob(t *testing.T) {
	persistencetest.StoreJobTest(t, assert.New(t), NewStore())
}

func TestRollback(t *testing.T) {
	persistencetest.StoreRollbackTest(t, assert.New(t), NewStore())
}

func TestRoute(t *testing.T) {
	persistencetest.StoreRouteTest(t, assert.New(t), NewStore())
}

func TestMessage(t *testing.T) {
	persistencetest.StoreMessageTest(t, assert.New(t), NewStore())
}

func TestInstanceLocked(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	store := NewStore()

	tx, err := store.StartTransaction(ctx)
	ass.Nil(err)
	ass.Nil(tx.InsertInstance(ctx, persistence.InstanceRecord{InstanceId: "i1", Version: 1}))
	ass.Nil(tx.Commit(ctx))

	holder, err := store.StartTransaction(ctx)
	ass.Nil(err)
	_, err = holder.LockInstance(ctx, "i1")
	ass.Nil(err)

	other, err := store.StartTransaction(ctx)
	ass.Nil(err)
	_, err = other.LockInstance(ctx, "i1")
	ass.True(errors.Is(err, persistence.ErrInstanceLocked))

	ass.Nil(holder.Commit(ctx))
	_, err = other.LockInstance(ctx, "i1")
	ass.Nil(err)
	ass.Nil(other.Rollback(ctx))
	ass.True(errors.Is(other.Commit(ctx), errFinished))
}

func TestConcurrentJobConsumption(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	store := NewStore()

	tx, err := store.StartTransaction(ctx)
	ass.Nil(err)
	ass.Nil(tx.InsertJob(ctx, persistence.JobRecord{JobId: "j1", ScheduledAt: time.Now()}))
	ass.Nil(tx.Commit(ctx))

	first, err := store.StartTransaction(ctx)
	ass.Nil(err)
	second, err := store.StartTransaction(ctx)
	ass.Nil(err)

	deleted, err := first.DeleteJob(ctx, "j1")
	ass.Nil(err)
	ass.True(deleted)
	deleted, err = second.DeleteJob(ctx, "j1")
	ass.Nil(err)
	ass.True(deleted)

	ass.Nil(first.Commit(ctx))
	ass.True(errors.Is(second.Commit(ctx), persistence.ErrConflict))
}

func TestConcurrentRouteConsumption(t *testing.T) {
	ass := assert.New(t)
	ctx := context.Background()
	store := NewStore()

	tx, err := store.StartTransaction(ctx)
	ass.Nil(err)
	ass.Nil(tx.InsertRoute(ctx, persistence.RouteRecord{
		RouteId: "r1", ProcessType: "order", Operation: "ship", InstanceId: "i1", Endpoint: "u1/external",
	}))
	ass.Nil(tx.Commit(ctx))

	first, err := store.StartTransaction(ctx)
	ass.Nil(err)
	second, err := store.StartTransaction(ctx)
	ass.Nil(err)

	deleted, err := first.DeleteRoute(ctx, "r1")
	ass.Nil(err)
	ass.True(deleted)
	deleted, err = second.DeleteRoute(ctx, "r1")
	ass.Nil(err)
	ass.True(deleted)

	ass.Nil(first.Commit(ctx))
	ass.True(errors.Is(second.Commit(ctx), persistence.ErrConflict))

	// once committed the route is gone for everyone
	third, err := store.StartTransaction(ctx)
	ass.Nil(err)
	deleted, err = third.DeleteRoute(ctx, "r1")
	ass.Nil(err)
	ass.False(deleted)
	ass.Nil(third.Rollback(ctx))
}
