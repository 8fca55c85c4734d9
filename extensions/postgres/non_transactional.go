// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/xcherryio/xflow/extensions"
)

const selectInstanceQuery = `SELECT
	instance_id, process_type, status, fault_name, fault_detail, state, version, created_at, updated_at
	FROM xflow_instance WHERE instance_id=$1`

func (d dbSession) SelectInstance(ctx context.Context, instanceId string) (*extensions.InstanceRow, error) {
	var row extensions.InstanceRow
	err := d.db.GetContext(ctx, &row, selectInstanceQuery, instanceId)
	if err != nil {
		return nil, err
	}
	normalizeInstanceRow(&row)
	return &row, nil
}

const batchSelectJobsQuery = `SELECT
	job_id, job_type, instance_id, scheduled_at, transacted, retry_count, payload
	FROM xflow_job WHERE scheduled_at < $1 ORDER BY scheduled_at ASC, job_id ASC LIMIT $2`

func (d dbSession) BatchSelectJobs(
	ctx context.Context, filter extensions.JobRangeSelectFilter,
) ([]extensions.JobRow, error) {
	var rows []extensions.JobRow
	err := d.db.SelectContext(ctx, &rows, batchSelectJobsQuery, filter.ScheduledBefore, filter.PageSize)
	for i := range rows {
		rows[i].ScheduledAt = fromPostgresDateTime(rows[i].ScheduledAt)
	}
	return rows, err
}

func normalizeInstanceRow(row *extensions.InstanceRow) {
	row.CreatedAt = fromPostgresDateTime(row.CreatedAt)
	row.UpdatedAt = fromPostgresDateTime(row.UpdatedAt)
}
