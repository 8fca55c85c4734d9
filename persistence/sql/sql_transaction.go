// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"
	"fmt"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/extensions"
	"github.com/xcherryio/xflow/persistence"
)

type sqlTransaction struct {
	session extensions.SQLDBSession
	tx      extensions.SQLTransaction
	logger  log.Logger
}

func (t *sqlTransaction) InsertInstance(ctx context.Context, record persistence.InstanceRecord) error {
	err := t.tx.InsertInstance(ctx, fromInstanceRecord(record))
	if err != nil && t.session.IsDupEntryError(err) {
		return fmt.Errorf("%w: instance %v already exists", persistence.ErrConflict, record.InstanceId)
	}
	return err
}

func (t *sqlTransaction) LockInstance(ctx context.Context, instanceId string) (*persistence.InstanceRecord, error) {
	row, err := t.tx.SelectInstanceForUpdate(ctx, instanceId)
	if err != nil {
		if t.session.IsLockNotAvailableError(err) {
			return nil, persistence.ErrInstanceLocked
		}
		if t.session.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: instance %v", persistence.ErrNotFound, instanceId)
		}
		return nil, err
	}
	rec := toInstanceRecord(*row)
	return &rec, nil
}

func (t *sqlTransaction) UpdateInstance(ctx context.Context, record persistence.InstanceRecord) error {
	updated, err := t.tx.UpdateInstance(ctx, fromInstanceRecord(record))
	if err != nil {
		return err
	}
	if updated != 1 {
		return fmt.Errorf("%w: instance %v cannot be written at version %v",
			persistence.ErrConflict, record.InstanceId, record.Version)
	}
	return nil
}

func (t *sqlTransaction) InsertJob(ctx context.Context, record persistence.JobRecord) error {
	err := t.tx.InsertJob(ctx, fromJobRecord(record))
	if err != nil && t.session.IsDupEntryError(err) {
		return fmt.Errorf("%w: job %v already exists", persistence.ErrConflict, record.JobId)
	}
	return err
}

func (t *sqlTransaction) DeleteJob(ctx context.Context, jobId string) (bool, error) {
	deleted, err := t.tx.DeleteJob(ctx, jobId)
	return deleted == 1, err
}

func (t *sqlTransaction) InsertRoute(ctx context.Context, record persistence.RouteRecord) error {
	return t.tx.InsertRoute(ctx, extensions.RouteRow{
		RouteId:     record.RouteId,
		ProcessType: record.ProcessType,
		Operation:   record.Operation,
		KeySet:      record.KeySet,
		InstanceId:  record.InstanceId,
		Endpoint:    record.Endpoint,
	})
}

func (t *sqlTransaction) SelectRoutes(ctx context.Context, processType, operation string) ([]persistence.RouteRecord, error) {
	rows, err := t.tx.SelectRoutes(ctx, processType, operation)
	if err != nil {
		return nil, err
	}
	var routes []persistence.RouteRecord
	for _, row := range rows {
		routes = append(routes, persistence.RouteRecord{
			RouteId:     row.RouteId,
			ProcessType: row.ProcessType,
			Operation:   row.Operation,
			KeySet:      row.KeySet,
			InstanceId:  row.InstanceId,
			Endpoint:    row.Endpoint,
			Seq:         row.Seq,
		})
	}
	return routes, nil
}

func (t *sqlTransaction) DeleteRoute(ctx context.Context, routeId string) (bool, error) {
	deleted, err := t.tx.DeleteRoute(ctx, routeId)
	return deleted == 1, err
}

func (t *sqlTransaction) DeleteInstanceRoutes(ctx context.Context, instanceId string) error {
	return t.tx.DeleteInstanceRoutes(ctx, instanceId)
}

func (t *sqlTransaction) InsertMessage(ctx context.Context, record persistence.MessageRecord) error {
	err := t.tx.InsertMessage(ctx, extensions.MessageRow{
		MessageId:   record.MessageId,
		ProcessType: record.ProcessType,
		Operation:   record.Operation,
		KeySet:      record.KeySet,
		Payload:     record.Payload,
		CreatedAt:   record.CreatedAt,
	})
	if err != nil && t.session.IsDupEntryError(err) {
		return fmt.Errorf("%w: message %v already exists", persistence.ErrConflict, record.MessageId)
	}
	return err
}

func (t *sqlTransaction) SelectMessages(ctx context.Context, processType, operation string) ([]persistence.MessageRecord, error) {
	rows, err := t.tx.SelectMessages(ctx, processType, operation)
	if err != nil {
		return nil, err
	}
	var messages []persistence.MessageRecord
	for _, row := range rows {
		messages = append(messages, persistence.MessageRecord{
			MessageId:   row.MessageId,
			ProcessType: row.ProcessType,
			Operation:   row.Operation,
			KeySet:      row.KeySet,
			Payload:     row.Payload,
			Seq:         row.Seq,
			CreatedAt:   row.CreatedAt,
		})
	}
	return messages, nil
}

func (t *sqlTransaction) DeleteMessage(ctx context.Context, messageId string) (bool, error) {
	deleted, err := t.tx.DeleteMessage(ctx, messageId)
	return deleted == 1, err
}

func (t *sqlTransaction) Commit(ctx context.Context) error {
	err := t.tx.Commit()
	if err != nil {
		t.logger.Error("error on committing transaction", tag.Error(err))
	}
	return err
}

func (t *sqlTransaction) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err != nil {
		t.logger.Error("error on rollback transaction", tag.Error(err))
	}
	return err
}
