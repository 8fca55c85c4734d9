// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"

	"github.com/xcherryio/xflow/persistence"
)

// Tx is the store transaction a job or an ExecTransaction callback runs in
type Tx struct {
	persistence.Transaction

	onCommit    []func()
	afterCommit []func(ctx context.Context)
	// transacted volatile jobs, released on commit unless cancelled before
	pendingVolatile map[string]*Job
}

func newTx(tx persistence.Transaction) *Tx {
	return &Tx{
		Transaction:     tx,
		pendingVolatile: map[string]*Job{},
	}
}

// OnCommit registers fn to run after the transaction commits
func (tx *Tx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

// AfterCommit registers fn to run once the transaction committed and released the store.
// fn gets the context ExecTransaction was called with, not the transaction timeout.
func (tx *Tx) AfterCommit(fn func(ctx context.Context)) {
	tx.afterCommit = append(tx.afterCommit, fn)
}

func (tx *Tx) cancelPendingVolatile(jobId string) bool {
	if _, ok := tx.pendingVolatile[jobId]; ok {
		delete(tx.pendingVolatile, jobId)
		return true
	}
	return false
}
