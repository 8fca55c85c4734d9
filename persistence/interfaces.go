// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistence

import "context"

// Store is the persistence contract of the engine and the scheduler.
// Everything that changes instance state goes through a Transaction.
type Store interface {
	StartTransaction(ctx context.Context) (Transaction, error)

	GetInstance(ctx context.Context, instanceId string) (*InstanceRecord, error)
	// GetJobs returns jobs ordered by scheduled time then job id
	GetJobs(ctx context.Context, request GetJobsRequest) (*GetJobsResponse, error)

	Close() error
}

type Transaction interface {
	InsertInstance(ctx context.Context, record InstanceRecord) error
	// LockInstance loads the instance and holds it exclusively until the transaction ends.
	// It fails with ErrInstanceLocked instead of waiting for another transaction.
	LockInstance(ctx context.Context, instanceId string) (*InstanceRecord, error)
	// UpdateInstance writes the record when the stored version is record.Version - 1
	UpdateInstance(ctx context.Context, record InstanceRecord) error

	InsertJob(ctx context.Context, record JobRecord) error
	// DeleteJob returns false when the job is already gone
	DeleteJob(ctx context.Context, jobId string) (bool, error)

	InsertRoute(ctx context.Context, record RouteRecord) error
	// SelectRoutes returns the routes of an operation in registration order
	SelectRoutes(ctx context.Context, processType, operation string) ([]RouteRecord, error)
	// DeleteRoute returns false when the route is already gone
	DeleteRoute(ctx context.Context, routeId string) (bool, error)
	DeleteInstanceRoutes(ctx context.Context, instanceId string) error

	InsertMessage(ctx context.Context, record MessageRecord) error
	// SelectMessages returns the queued messages of an operation in arrival order
	SelectMessages(ctx context.Context, processType, operation string) ([]MessageRecord, error)
	// DeleteMessage returns false when the message is already gone
	DeleteMessage(ctx context.Context, messageId string) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
