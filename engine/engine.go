// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/common/uuid"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/partner"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/scheduler"
)

type engineImpl struct {
	store     persistence.Store
	sched     scheduler.Scheduler
	templates definition.Store
	invoker   partner.Invoker
	listener  EventListener
	logger    log.Logger
}

// NewEngine returns the engine, which must be started as the job processor of sched.
// listener can be nil.
func NewEngine(
	store persistence.Store, sched scheduler.Scheduler, templates definition.Store,
	invoker partner.Invoker, listener EventListener, logger log.Logger,
) Engine {
	return &engineImpl{
		store:     store,
		sched:     sched,
		templates: templates,
		invoker:   invoker,
		listener:  listener,
		logger:    logger,
	}
}

func (e *engineImpl) CreateInstance(ctx context.Context, processType string) (instanceId string, err error) {
	tmpl, err := e.templates.GetTemplate(processType)
	if err != nil {
		return "", err
	}
	err = e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		instanceId, err = e.insertInstance(ctx, tx, tmpl, time.Now())
		return err
	})
	return instanceId, err
}

func (e *engineImpl) StartInstance(ctx context.Context, instanceId string, message *Message) error {
	return e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		rec, err := tx.LockInstance(ctx, instanceId)
		if err != nil {
			return err
		}
		if rec.Status != persistence.InstanceStatusNew {
			return fmt.Errorf("%w: instance %v is %v", ErrInvalidStatus, instanceId, rec.Status)
		}
		st, err := decodeState(rec.State)
		if err != nil {
			return err
		}
		return e.startInstance(ctx, tx, rec, st, message, time.Now())
	})
}

func (e *engineImpl) Start(ctx context.Context, processType string, message *Message) (instanceId string, err error) {
	tmpl, err := e.templates.GetTemplate(processType)
	if err != nil {
		return "", err
	}
	err = e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		now := time.Now()
		instanceId, err = e.insertInstance(ctx, tx, tmpl, now)
		if err != nil {
			return err
		}
		rec, err := tx.LockInstance(ctx, instanceId)
		if err != nil {
			return err
		}
		st, err := decodeState(rec.State)
		if err != nil {
			return err
		}
		return e.startInstance(ctx, tx, rec, st, message, now)
	})
	return instanceId, err
}

func (e *engineImpl) insertInstance(
	ctx context.Context, tx *scheduler.Tx, tmpl *definition.ProcessTemplate, now time.Time,
) (string, error) {
	instanceId := uuid.NewString()
	state, err := newInstanceState(tmpl, instanceId, now).encode()
	if err != nil {
		return "", err
	}
	now = now.UTC()
	err = tx.InsertInstance(ctx, persistence.InstanceRecord{
		InstanceId:  instanceId,
		ProcessType: tmpl.Type,
		Status:      persistence.InstanceStatusNew,
		State:       state,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return instanceId, err
}

func (e *engineImpl) startInstance(
	ctx context.Context, tx *scheduler.Tx, rec *persistence.InstanceRecord, st *ContinuationState,
	message *Message, now time.Time,
) error {
	st.StartMessage = message
	if err := e.scheduleResume(ctx, tx, rec.InstanceId, resumePayload{Command: CommandStep}); err != nil {
		return err
	}
	state, err := st.encode()
	if err != nil {
		return err
	}
	rec.State = state
	rec.Status = persistence.InstanceStatusReady
	rec.Version++
	rec.UpdatedAt = now.UTC()
	return tx.UpdateInstance(ctx, *rec)
}

func (e *engineImpl) scheduleResume(ctx context.Context, tx *scheduler.Tx, instanceId string, payload resumePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = e.sched.SchedulePersistedJob(ctx, tx, scheduler.JobDetails{
		Type:       persistence.JobTypeResume,
		InstanceId: instanceId,
		Payload:    data,
	}, nil)
	return err
}

func (e *engineImpl) Deliver(ctx context.Context, processType string, message Message) (jobId string, err error) {
	tmpl, err := e.templates.GetTemplate(processType)
	if err != nil {
		return "", err
	}
	if len(tmpl.Receives(message.Operation)) == 0 {
		return "", fmt.Errorf("%w: %q of process type %v", ErrNoReceive, message.Operation, processType)
	}
	data, err := json.Marshal(myRoleInvokePayload{ProcessType: processType, Message: message})
	if err != nil {
		return "", err
	}
	err = e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		jobId, err = e.sched.SchedulePersistedJob(ctx, tx, scheduler.JobDetails{
			Type:    persistence.JobTypeMyRoleInvoke,
			Payload: data,
		}, nil)
		return err
	})
	return jobId, err
}

// Recover checks the activity is in recovery, then applies the action in a job of the instance
func (e *engineImpl) Recover(ctx context.Context, instanceId, activityId string, action RecoveryAction) error {
	switch action {
	case RecoveryActionRetry, RecoveryActionCancel, RecoveryActionFault:
	default:
		return ErrInvalidRecoveryAction
	}
	rec, st, err := e.load(ctx, instanceId)
	if err != nil {
		return err
	}
	if u, ok := st.Units[activityId]; !ok || u.Phase != PhaseRecovery || rec.Status.IsTerminal() {
		return ErrActivityNotInRecovery
	}
	return e.command(ctx, instanceId, resumePayload{Command: CommandRecover, UnitId: activityId, Action: action})
}

func (e *engineImpl) Suspend(ctx context.Context, instanceId string) error {
	return e.checkedCommand(ctx, instanceId, CommandSuspend,
		persistence.InstanceStatusReady, persistence.InstanceStatusActive)
}

func (e *engineImpl) Resume(ctx context.Context, instanceId string) error {
	return e.checkedCommand(ctx, instanceId, CommandResume, persistence.InstanceStatusSuspended)
}

func (e *engineImpl) Terminate(ctx context.Context, instanceId string) error {
	return e.checkedCommand(ctx, instanceId, CommandTerminate,
		persistence.InstanceStatusNew, persistence.InstanceStatusReady,
		persistence.InstanceStatusActive, persistence.InstanceStatusSuspended)
}

func (e *engineImpl) checkedCommand(
	ctx context.Context, instanceId string, cmd Command, allowed ...persistence.InstanceStatus,
) error {
	rec, err := e.store.GetInstance(ctx, instanceId)
	if err != nil {
		return err
	}
	for _, s := range allowed {
		if rec.Status == s {
			return e.command(ctx, instanceId, resumePayload{Command: cmd})
		}
	}
	return fmt.Errorf("%w: cannot %v instance %v in status %v", ErrInvalidStatus, cmd, instanceId, rec.Status)
}

func (e *engineImpl) command(ctx context.Context, instanceId string, payload resumePayload) error {
	return e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		return e.scheduleResume(ctx, tx, instanceId, payload)
	})
}

func (e *engineImpl) Describe(ctx context.Context, instanceId string) (*InstanceDescription, error) {
	rec, st, err := e.load(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	tmpl, err := e.templates.GetTemplate(rec.ProcessType)
	if err != nil {
		return nil, err
	}
	return describe(tmpl, rec, st), nil
}

func (e *engineImpl) ListFailures(ctx context.Context, instanceId string) ([]ActivityFailure, error) {
	desc, err := e.Describe(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	return desc.Failures, nil
}

func (e *engineImpl) load(ctx context.Context, instanceId string) (*persistence.InstanceRecord, *ContinuationState, error) {
	rec, err := e.store.GetInstance(ctx, instanceId)
	if err != nil {
		return nil, nil, err
	}
	st, err := decodeState(rec.State)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupted state of instance %v: %w", instanceId, err)
	}
	return rec, st, nil
}

// advance locks the instance, lets fn hand it a signal or a command, steps it unless it is
// not ACTIVE, and writes it back with the effects of the step, all in tx
func (e *engineImpl) advance(
	ctx context.Context, tx *scheduler.Tx, instanceId string, now time.Time, fn func(m *machine) error,
) error {
	rec, err := tx.LockInstance(ctx, instanceId)
	if err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		e.logger.Debug("instance already ended", tag.InstanceId(instanceId), tag.InstanceStatus(rec.Status.String()))
		return nil
	}
	tmpl, err := e.templates.GetTemplate(rec.ProcessType)
	if err != nil {
		return err
	}
	st, err := decodeState(rec.State)
	if err != nil {
		return fmt.Errorf("corrupted state of instance %v: %w", instanceId, err)
	}
	m := newMachine(tmpl, rec.InstanceId, st, rec.Status, now)
	if err := fn(m); err != nil {
		return err
	}
	if m.status == persistence.InstanceStatusActive {
		m.run()
	}
	return e.save(ctx, tx, rec, m)
}

// save applies the effects of a step and writes the instance
func (e *engineImpl) save(ctx context.Context, tx *scheduler.Tx, rec *persistence.InstanceRecord, m *machine) error {
	for _, r := range m.routes {
		if err := tx.InsertRoute(ctx, r); err != nil {
			return err
		}
	}
	for _, id := range m.deletedRoutes {
		if _, err := tx.DeleteRoute(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range m.cancelledJobs {
		if err := e.sched.CancelJob(ctx, tx, id); err != nil && !errors.Is(err, scheduler.ErrJobDispatched) {
			return err
		}
	}
	for _, j := range m.jobs {
		data, err := json.Marshal(j.Payload)
		if err != nil {
			return err
		}
		jobId, err := e.sched.SchedulePersistedJob(ctx, tx, scheduler.JobDetails{
			Type:       j.Type,
			InstanceId: rec.InstanceId,
			Payload:    data,
		}, j.When)
		if err != nil {
			return err
		}
		if u, ok := m.st.Units[j.UnitId]; ok {
			u.JobId = jobId
		}
	}
	if m.status.IsTerminal() {
		if err := tx.DeleteInstanceRoutes(ctx, rec.InstanceId); err != nil {
			return err
		}
	}

	state, err := m.st.encode()
	if err != nil {
		return err
	}
	rec.State = state
	rec.Status = m.status
	if m.st.Fault != nil {
		rec.FaultName = m.st.Fault.Name
		rec.FaultDetail = m.st.Fault.Detail
	}
	rec.Version++
	rec.UpdatedAt = m.now
	if err := tx.UpdateInstance(ctx, *rec); err != nil {
		return err
	}

	events := m.events
	status := m.status
	tx.OnCommit(func() {
		for _, ev := range events {
			logEvent(e.logger, ev)
			if e.listener != nil {
				e.listener.OnEvent(ev)
			}
		}
		if status.IsTerminal() {
			e.logger.Info("instance ended", tag.InstanceId(rec.InstanceId), tag.InstanceStatus(status.String()))
		}
	})
	return nil
}
