// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/persistence/persistencetest"
)

func newTestStore(t *testing.T) persistence.Store {
	store, err := NewStore(&config.Bolt{
		Path:        filepath.Join(t.TempDir(), "xflow.db"),
		OpenTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestInstance(t *testing.T) {
	persistencetest.StoreInstanceTest(t, assert.New(t), newTestStore(t))
}

func TestJob(t *testing.T) {
	persistencetest.StoreJobTest(t, assert.New(t), newTestStore(t))
}

func TestRollback(t *testing.T) {
	persistencetest.StoreRollbackTest(t, assert.New(t), newTestStore(t))
}

func TestRoute(t *testing.T) {
	persistencetest.StoreRouteTest(t, assert.New(t), newTestStore(t))
}

func TestMessage(t *testing.T) {
	persistencetest.StoreMessageTest(t, assert.New(t), newTestStore(t))
}

func TestStartTransactionWaitsForWriter(t *testing.T) {
	ass := assert.New(t)
	store := newTestStore(t)

	tx, err := store.StartTransaction(context.Background())
	ass.Nil(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = store.StartTransaction(ctx)
	ass.ErrorIs(err, context.DeadlineExceeded)

	ass.Nil(tx.Rollback(context.Background()))
	next, err := store.StartTransaction(context.Background())
	ass.Nil(err)
	ass.Nil(next.Rollback(context.Background()))
}
