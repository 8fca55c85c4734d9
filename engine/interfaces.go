// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"

	"github.com/xcherryio/xflow/scheduler"
)

var (
	ErrActivityNotInRecovery = errors.New("activity is not in recovery")
	ErrInvalidRecoveryAction = errors.New("recovery action must be retry, cancel or fault")
	// ErrInvalidStatus is returned when an operation does not apply to the instance status
	ErrInvalidStatus = errors.New("operation is not allowed in the current instance status")
	// ErrNoReceive is returned when a message is delivered for an operation no receive accepts
	ErrNoReceive = errors.New("no receive accepts the operation")
)

// Engine runs process instances. Every change to an instance happens in a job of the
// scheduler, the engine is the job processor.
type Engine interface {
	scheduler.JobProcessor

	// CreateInstance allocates a NEW instance. Nothing runs until it is started
	CreateInstance(ctx context.Context, processType string) (string, error)
	// StartInstance makes a NEW instance READY and schedules its first step.
	// The message, if any, is consumed by the receive that creates instances
	StartInstance(ctx context.Context, instanceId string, message *Message) error
	// Start creates and starts an instance in one transaction
	Start(ctx context.Context, processType string, message *Message) (string, error)

	// Deliver schedules routing of an inbound message, it returns the job id
	Deliver(ctx context.Context, processType string, message Message) (string, error)

	// Recover applies an action to an activity in recovery, the activity is the unit id
	Recover(ctx context.Context, instanceId, activityId string, action RecoveryAction) error
	Suspend(ctx context.Context, instanceId string) error
	Resume(ctx context.Context, instanceId string) error
	Terminate(ctx context.Context, instanceId string) error

	Describe(ctx context.Context, instanceId string) (*InstanceDescription, error)
	ListFailures(ctx context.Context, instanceId string) ([]ActivityFailure, error)
}
