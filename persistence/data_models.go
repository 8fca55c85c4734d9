// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInstanceLocked is returned when another open transaction holds the instance
	ErrInstanceLocked = errors.New("instance is locked by another transaction")
	// ErrConflict is returned on a duplicate insert, a stale version, or a job
	// consumed by another transaction
	ErrConflict = errors.New("conflict with a concurrent transaction")
)

type (
	InstanceRecord struct {
		InstanceId  string
		ProcessType string
		Status      InstanceStatus
		FaultName   string
		FaultDetail string
		// State is the serialized continuation state
		State []byte
		// Version increases by one on every update
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// JobRecord is a persisted job. It is deleted by the transaction that consumes it,
	// so a record found after its scheduled time belongs to a job that has not run yet
	// or whose transaction never committed
	JobRecord struct {
		JobId       string
		JobType     JobType
		InstanceId  string
		ScheduledAt time.Time
		Transacted  bool
		RetryCount  int32
		Payload     []byte
	}

	// RouteRecord is a receive waiting for a message under a correlation key set
	RouteRecord struct {
		RouteId     string
		ProcessType string
		Operation   string
		// KeySet is the canonical form of the correlation key set
		KeySet     string
		InstanceId string
		Endpoint   string
		// Seq is assigned by the store and orders routes by registration
		Seq int64
	}

	// MessageRecord is an inbound message no receive was waiting for
	MessageRecord struct {
		MessageId   string
		ProcessType string
		Operation   string
		KeySet      string
		Payload     []byte
		// Seq is assigned by the store and orders messages by arrival
		Seq       int64
		CreatedAt time.Time
	}

	GetJobsRequest struct {
		// ScheduledBefore is exclusive
		ScheduledBefore time.Time
		PageSize        int32
	}

	GetJobsResponse struct {
		Jobs []JobRecord
		// HasMore is true when the page was full
		HasMore bool
	}
)
