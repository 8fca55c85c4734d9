// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"github.com/xcherryio/xflow/extensions"
	"github.com/xcherryio/xflow/persistence"
)

func fromInstanceRecord(rec persistence.InstanceRecord) extensions.InstanceRow {
	return extensions.InstanceRow{
		InstanceId:  rec.InstanceId,
		ProcessType: rec.ProcessType,
		Status:      int32(rec.Status),
		FaultName:   rec.FaultName,
		FaultDetail: rec.FaultDetail,
		State:       rec.State,
		Version:     rec.Version,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toInstanceRecord(row extensions.InstanceRow) persistence.InstanceRecord {
	return persistence.InstanceRecord{
		InstanceId:  row.InstanceId,
		ProcessType: row.ProcessType,
		Status:      persistence.InstanceStatus(row.Status),
		FaultName:   row.FaultName,
		FaultDetail: row.FaultDetail,
		State:       row.State,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func fromJobRecord(rec persistence.JobRecord) extensions.JobRow {
	return extensions.JobRow{
		JobId:       rec.JobId,
		JobType:     int32(rec.JobType),
		InstanceId:  rec.InstanceId,
		ScheduledAt: rec.ScheduledAt,
		Transacted:  rec.Transacted,
		RetryCount:  rec.RetryCount,
		Payload:     rec.Payload,
	}
}

func toJobRecord(row extensions.JobRow) persistence.JobRecord {
	return persistence.JobRecord{
		JobId:       row.JobId,
		JobType:     persistence.JobType(row.JobType),
		InstanceId:  row.InstanceId,
		ScheduledAt: row.ScheduledAt,
		Transacted:  row.Transacted,
		RetryCount:  row.RetryCount,
		Payload:     row.Payload,
	}
}
