// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net/http"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/engine"
)

type serviceImpl struct {
	engine   engine.Engine
	notifier JobNotifier
	logger   log.Logger
}

// NewServiceImpl returns the service. notifier is told after every request that wrote jobs
func NewServiceImpl(eng engine.Engine, notifier JobNotifier, logger log.Logger) Service {
	return &serviceImpl{
		engine:   eng,
		notifier: notifier,
		logger:   logger,
	}
}

func (s serviceImpl) StartInstance(
	ctx context.Context, request StartInstanceRequest,
) (*StartInstanceResponse, *ErrorWithStatus) {
	instanceId, err := s.engine.Start(ctx, request.ProcessType, request.Message)
	if err != nil {
		return nil, s.handleError(err)
	}
	s.notifier.NotifyNewJobs()
	return &StartInstanceResponse{InstanceId: instanceId}, nil
}

func (s serviceImpl) DeliverMessage(
	ctx context.Context, request DeliverMessageRequest,
) (*DeliverMessageResponse, *ErrorWithStatus) {
	if request.Message.Operation == "" {
		return nil, NewErrorWithStatus(http.StatusBadRequest, "message.operation is required")
	}
	jobId, err := s.engine.Deliver(ctx, request.ProcessType, request.Message)
	if err != nil {
		return nil, s.handleError(err)
	}
	s.notifier.NotifyNewJobs()
	return &DeliverMessageResponse{JobId: jobId}, nil
}

func (s serviceImpl) DescribeInstance(
	ctx context.Context, request InstanceRequest,
) (*engine.InstanceDescription, *ErrorWithStatus) {
	desc, err := s.engine.Describe(ctx, request.InstanceId)
	if err != nil {
		return nil, s.handleError(err)
	}
	return desc, nil
}

func (s serviceImpl) ListFailures(
	ctx context.Context, request InstanceRequest,
) (*ListFailuresResponse, *ErrorWithStatus) {
	failures, err := s.engine.ListFailures(ctx, request.InstanceId)
	if err != nil {
		return nil, s.handleError(err)
	}
	if failures == nil {
		failures = []engine.ActivityFailure{}
	}
	return &ListFailuresResponse{Failures: failures}, nil
}

func (s serviceImpl) RecoverActivity(ctx context.Context, request RecoverActivityRequest) *ErrorWithStatus {
	err := s.engine.Recover(ctx, request.InstanceId, request.ActivityId, request.Action)
	return s.afterCommand(err)
}

func (s serviceImpl) SuspendInstance(ctx context.Context, request InstanceRequest) *ErrorWithStatus {
	return s.afterCommand(s.engine.Suspend(ctx, request.InstanceId))
}

func (s serviceImpl) ResumeInstance(ctx context.Context, request InstanceRequest) *ErrorWithStatus {
	return s.afterCommand(s.engine.Resume(ctx, request.InstanceId))
}

func (s serviceImpl) TerminateInstance(ctx context.Context, request InstanceRequest) *ErrorWithStatus {
	return s.afterCommand(s.engine.Terminate(ctx, request.InstanceId))
}

func (s serviceImpl) afterCommand(err error) *ErrorWithStatus {
	if err != nil {
		return s.handleError(err)
	}
	s.notifier.NotifyNewJobs()
	return nil
}

func (s serviceImpl) handleError(err error) *ErrorWithStatus {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("unknown error on operation", tag.Error(err))
	} else {
		s.logger.Debug("request rejected", tag.Error(err), tag.StatusCode(status))
	}
	return NewErrorWithStatus(status, err.Error())
}
