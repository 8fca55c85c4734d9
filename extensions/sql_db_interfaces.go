// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

import (
	"context"
	"database/sql"

	"github.com/xcherryio/xflow/config"
)

type SQLDBExtension interface {
	// StartDBSession starts the session for regular business logic
	StartDBSession(cfg *config.SQL) (SQLDBSession, error)
	// StartAdminDBSession starts the session for admin operation like DDL
	StartAdminDBSession(cfg *config.SQL) (SQLAdminDBSession, error)
}

type SQLDBSession interface {
	nonTransactionalCRUD
	ErrorChecker

	StartTransaction(ctx context.Context, opts *sql.TxOptions) (SQLTransaction, error)
	Close() error
}

type SQLTransaction interface {
	transactionalCRUD
	Commit() error
	Rollback() error
}

type SQLAdminDBSession interface {
	CreateDatabase(ctx context.Context, database string) error
	DropDatabase(ctx context.Context, database string) error
	ExecuteSchemaDDL(ctx context.Context, ddlQuery string) error
	Close() error
}

type transactionalCRUD interface {
	InsertInstance(ctx context.Context, row InstanceRow) error
	// SelectInstanceForUpdate locks the row without waiting, failing with a lock-not-available
	// error when another transaction holds it
	SelectInstanceForUpdate(ctx context.Context, instanceId string) (*InstanceRow, error)
	// UpdateInstance writes the row when the stored version is row.Version - 1,
	// and returns the number of rows updated
	UpdateInstance(ctx context.Context, row InstanceRow) (int64, error)

	InsertJob(ctx context.Context, row JobRow) error
	// DeleteJob returns the number of rows deleted
	DeleteJob(ctx context.Context, jobId string) (int64, error)

	InsertRoute(ctx context.Context, row RouteRow) error
	SelectRoutes(ctx context.Context, processType, operation string) ([]RouteRow, error)
	// DeleteRoute returns the number of rows deleted
	DeleteRoute(ctx context.Context, routeId string) (int64, error)
	DeleteInstanceRoutes(ctx context.Context, instanceId string) error

	InsertMessage(ctx context.Context, row MessageRow) error
	SelectMessages(ctx context.Context, processType, operation string) ([]MessageRow, error)
	// DeleteMessage returns the number of rows deleted
	DeleteMessage(ctx context.Context, messageId string) (int64, error)
}

type nonTransactionalCRUD interface {
	SelectInstance(ctx context.Context, instanceId string) (*InstanceRow, error)
	BatchSelectJobs(ctx context.Context, filter JobRangeSelectFilter) ([]JobRow, error)
}

type ErrorChecker interface {
	IsDupEntryError(err error) bool
	IsNotFoundError(err error) bool
	IsTimeoutError(err error) bool
	IsThrottlingError(err error) bool
	IsLockNotAvailableError(err error) bool
}
