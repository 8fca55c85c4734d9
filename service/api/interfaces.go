// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/xcherryio/xflow/engine"
)

type Server interface {
	// Start will start running on the background
	Start() error
	Stop(ctx context.Context) error
}

// Service is the interface of API service, which decoupled from REST server framework like Gin
// So that users can choose to use other REST frameworks to serve requests
type Service interface {
	StartInstance(ctx context.Context, request StartInstanceRequest) (*StartInstanceResponse, *ErrorWithStatus)
	DeliverMessage(ctx context.Context, request DeliverMessageRequest) (*DeliverMessageResponse, *ErrorWithStatus)
	DescribeInstance(ctx context.Context, request InstanceRequest) (*engine.InstanceDescription, *ErrorWithStatus)
	ListFailures(ctx context.Context, request InstanceRequest) (*ListFailuresResponse, *ErrorWithStatus)
	RecoverActivity(ctx context.Context, request RecoverActivityRequest) *ErrorWithStatus
	SuspendInstance(ctx context.Context, request InstanceRequest) *ErrorWithStatus
	ResumeInstance(ctx context.Context, request InstanceRequest) *ErrorWithStatus
	TerminateInstance(ctx context.Context, request InstanceRequest) *ErrorWithStatus
}

// JobNotifier tells the async service that new jobs are in the store
type JobNotifier interface {
	NotifyNewJobs()
}

type (
	StartInstanceRequest struct {
		ProcessType string          `json:"processType" binding:"required"`
		Message     *engine.Message `json:"message,omitempty"`
	}

	StartInstanceResponse struct {
		InstanceId string `json:"instanceId"`
	}

	DeliverMessageRequest struct {
		ProcessType string         `json:"processType" binding:"required"`
		Message     engine.Message `json:"message"`
	}

	DeliverMessageResponse struct {
		JobId string `json:"jobId"`
	}

	InstanceRequest struct {
		InstanceId string `json:"instanceId" binding:"required"`
	}

	RecoverActivityRequest struct {
		InstanceId string                `json:"instanceId" binding:"required"`
		ActivityId string                `json:"activityId" binding:"required"`
		Action     engine.RecoveryAction `json:"action" binding:"required"`
	}

	ListFailuresResponse struct {
		Failures []engine.ActivityFailure `json:"failures"`
	}

	ApiErrorResponse struct {
		Detail string `json:"detail"`
	}
)
