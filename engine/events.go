// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"time"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
)

type EventType string

const (
	EventActivityStarted    EventType = "ActivityStarted"
	EventActivityCompleted  EventType = "ActivityCompleted"
	EventActivityFaulted    EventType = "ActivityFaulted"
	EventActivityTerminated EventType = "ActivityTerminated"
	EventRecoveryEntered    EventType = "RecoveryEntered"
)

// Event is an activity lifecycle event. Events are delivered after the transaction
// that produced them commits, so a listener never sees a rolled back step.
type Event struct {
	Type       EventType
	InstanceId string
	UnitId     string
	// Activity is the path of the activity, empty for the process itself
	Activity string
	Name     string
	Fault    *Fault
	Failure  *Failure
	At       time.Time
}

type EventListener interface {
	OnEvent(event Event)
}

type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}

func logEvent(logger log.Logger, e Event) {
	tags := []tag.Tag{
		tag.InstanceId(e.InstanceId),
		tag.UnitId(e.UnitId),
		tag.ActivityId(e.Name),
	}
	if e.Fault != nil {
		tags = append(tags, tag.FaultName(e.Fault.Name))
	}
	if e.Type == EventRecoveryEntered {
		if e.Failure != nil {
			tags = append(tags, tag.FailureType(string(e.Failure.Type)), tag.Attempt(e.Failure.Attempts))
		}
		logger.Warn("activity entered recovery", tags...)
		return
	}
	logger.Debug(string(e.Type), tags...)
}
