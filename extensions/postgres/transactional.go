// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/xcherryio/xflow/extensions"
)

const insertInstanceQuery = `INSERT INTO xflow_instance
	(instance_id, process_type, status, fault_name, fault_detail, state, version, created_at, updated_at) VALUES
	(:instance_id, :process_type, :status, :fault_name, :fault_detail, :state, :version, :created_at, :updated_at)`

func (d dbTx) InsertInstance(ctx context.Context, row extensions.InstanceRow) error {
	_, err := d.tx.NamedExecContext(ctx, insertInstanceQuery, row)
	return err
}

const selectInstanceForUpdateQuery = `SELECT
	instance_id, process_type, status, fault_name, fault_detail, state, version, created_at, updated_at
	FROM xflow_instance WHERE instance_id=$1 FOR UPDATE NOWAIT`

func (d dbTx) SelectInstanceForUpdate(ctx context.Context, instanceId string) (*extensions.InstanceRow, error) {
	var row extensions.InstanceRow
	err := d.tx.GetContext(ctx, &row, selectInstanceForUpdateQuery, instanceId)
	if err != nil {
		return nil, err
	}
	normalizeInstanceRow(&row)
	return &row, nil
}

const updateInstanceQuery = `UPDATE xflow_instance SET
status = :status,
fault_name = :fault_name,
fault_detail = :fault_detail,
state = :state,
version = :version,
updated_at = :updated_at
WHERE instance_id=:instance_id AND version = :version - 1`

func (d dbTx) UpdateInstance(ctx context.Context, row extensions.InstanceRow) (int64, error) {
	result, err := d.tx.NamedExecContext(ctx, updateInstanceQuery, row)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertJobQuery = `INSERT INTO xflow_job
	(job_id, job_type, instance_id, scheduled_at, transacted, retry_count, payload) VALUES
	(:job_id, :job_type, :instance_id, :scheduled_at, :transacted, :retry_count, :payload)`

func (d dbTx) InsertJob(ctx context.Context, row extensions.JobRow) error {
	_, err := d.tx.NamedExecContext(ctx, insertJobQuery, row)
	return err
}

const deleteJobQuery = `DELETE FROM xflow_job WHERE job_id=$1`

func (d dbTx) DeleteJob(ctx context.Context, jobId string) (int64, error) {
	result, err := d.tx.ExecContext(ctx, deleteJobQuery, jobId)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertRouteQuery = `INSERT INTO xflow_route
	(route_id, process_type, operation, key_set, instance_id, endpoint) VALUES
	(:route_id, :process_type, :operation, :key_set, :instance_id, :endpoint)`

func (d dbTx) InsertRoute(ctx context.Context, row extensions.RouteRow) error {
	_, err := d.tx.NamedExecContext(ctx, insertRouteQuery, row)
	return err
}

const selectRoutesQuery = `SELECT
	seq, route_id, process_type, operation, key_set, instance_id, endpoint
	FROM xflow_route WHERE process_type=$1 AND operation=$2 ORDER BY seq ASC`

func (d dbTx) SelectRoutes(ctx context.Context, processType, operation string) ([]extensions.RouteRow, error) {
	var rows []extensions.RouteRow
	err := d.tx.SelectContext(ctx, &rows, selectRoutesQuery, processType, operation)
	return rows, err
}

const deleteRouteQuery = `DELETE FROM xflow_route WHERE route_id=$1`

func (d dbTx) DeleteRoute(ctx context.Context, routeId string) (int64, error) {
	result, err := d.tx.ExecContext(ctx, deleteRouteQuery, routeId)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteInstanceRoutesQuery = `DELETE FROM xflow_route WHERE instance_id=$1`

func (d dbTx) DeleteInstanceRoutes(ctx context.Context, instanceId string) error {
	_, err := d.tx.ExecContext(ctx, deleteInstanceRoutesQuery, instanceId)
	return err
}

const insertMessageQuery = `INSERT INTO xflow_message
	(message_id, process_type, operation, key_set, payload, created_at) VALUES
	(:message_id, :process_type, :operation, :key_set, :payload, :created_at)`

func (d dbTx) InsertMessage(ctx context.Context, row extensions.MessageRow) error {
	_, err := d.tx.NamedExecContext(ctx, insertMessageQuery, row)
	return err
}

const selectMessagesQuery = `SELECT
	seq, message_id, process_type, operation, key_set, payload, created_at
	FROM xflow_message WHERE process_type=$1 AND operation=$2 ORDER BY seq ASC`

func (d dbTx) SelectMessages(ctx context.Context, processType, operation string) ([]extensions.MessageRow, error) {
	var rows []extensions.MessageRow
	err := d.tx.SelectContext(ctx, &rows, selectMessagesQuery, processType, operation)
	for i := range rows {
		rows[i].CreatedAt = fromPostgresDateTime(rows[i].CreatedAt)
	}
	return rows, err
}

const deleteMessageQuery = `DELETE FROM xflow_message WHERE message_id=$1`

func (d dbTx) DeleteMessage(ctx context.Context, messageId string) (int64, error) {
	result, err := d.tx.ExecContext(ctx, deleteMessageQuery, messageId)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
