// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package extensions

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Rows map to columns by converting the field names to snake case, see the strcase
// mapper set up by the extension, so no db tags are needed.
type (
	InstanceRow struct {
		InstanceId  string
		ProcessType string
		Status      int32
		FaultName   string
		FaultDetail string
		State       types.JSONText
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	JobRow struct {
		JobId       string
		JobType     int32
		InstanceId  string
		ScheduledAt time.Time
		Transacted  bool
		RetryCount  int32
		Payload     types.JSONText
	}

	JobRangeSelectFilter struct {
		ScheduledBefore time.Time
		PageSize        int32
	}

	// RouteRow.Seq is assigned by the database on insert
	RouteRow struct {
		Seq         int64
		RouteId     string
		ProcessType string
		Operation   string
		KeySet      string
		InstanceId  string
		Endpoint    string
	}

	// MessageRow.Seq is assigned by the database on insert
	MessageRow struct {
		Seq         int64
		MessageId   string
		ProcessType string
		Operation   string
		KeySet      string
		Payload     types.JSONText
		CreatedAt   time.Time
	}
)
