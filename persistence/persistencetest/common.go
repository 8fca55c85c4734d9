// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package persistencetest holds the tests every Store implementation must pass.
package persistencetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/common/uuid"
	"github.com/xcherryio/xflow/persistence"
)

const testProcessType = "test-type"
const testOperation = "test-operation"

func newInstance() persistence.InstanceRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return persistence.InstanceRecord{
		InstanceId:  uuid.NewString(),
		ProcessType: testProcessType,
		Status:      persistence.InstanceStatusNew,
		State:       []byte(`{"units":{}}`),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newJob(instanceId string, at time.Time) persistence.JobRecord {
	return persistence.JobRecord{
		JobId:       uuid.NewString(),
		JobType:     persistence.JobTypeResume,
		InstanceId:  instanceId,
		ScheduledAt: at.UTC().Truncate(time.Millisecond),
		Transacted:  true,
		Payload:     []byte(`{"signal":"x"}`),
	}
}

// inTx runs fn in a transaction and commits it
func inTx(ctx context.Context, ass *assert.Assertions, store persistence.Store, fn func(tx persistence.Transaction)) {
	tx, err := store.StartTransaction(ctx)
	ass.Nil(err)
	fn(tx)
	ass.Nil(tx.Commit(ctx))
}

func jobIds(jobs []persistence.JobRecord) []string {
	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.JobId)
	}
	return ids
}
