// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/partner"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/scheduler"
)

// ProcessJob runs a job of the engine in the transaction that consumes it.
// The job's scheduled time is the clock of the step, so a redelivered job replays
// exactly like its first delivery.
func (e *engineImpl) ProcessJob(ctx context.Context, tx *scheduler.Tx, job scheduler.Job) error {
	switch job.Type {
	case persistence.JobTypeResume:
		var p resumePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return e.dropJob(job, err)
		}
		return e.advance(ctx, tx, job.InstanceId, job.ScheduledAt, func(m *machine) error {
			e.applyCommand(m, p)
			return nil
		})

	case persistence.JobTypeTimer, persistence.JobTypePartnerResponse:
		var p signalPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return e.dropJob(job, err)
		}
		return e.advance(ctx, tx, job.InstanceId, job.ScheduledAt, func(m *machine) error {
			if !m.deliver(p.Endpoint, p.Signal) {
				e.logger.Debug("signal dropped, endpoint is gone",
					tag.InstanceId(job.InstanceId), tag.Endpoint(p.Endpoint), tag.JobType(job.Type.String()))
			}
			return nil
		})

	case persistence.JobTypePartnerInvoke:
		var p invokePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return e.dropJob(job, err)
		}
		return e.invokePartner(ctx, tx, job, p)

	case persistence.JobTypeMatcher:
		var p matcherPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return e.dropJob(job, err)
		}
		return e.match(ctx, tx, job, p)

	case persistence.JobTypeMyRoleInvoke:
		var p myRoleInvokePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return e.dropJob(job, err)
		}
		return e.route(ctx, tx, job, p)
	}
	return e.dropJob(job, fmt.Errorf("unknown job type %v", job.Type))
}

// dropJob consumes a job that can never succeed, retrying it would not help
func (e *engineImpl) dropJob(job scheduler.Job, err error) error {
	e.logger.Error("dropping invalid job",
		tag.JobId(job.JobId), tag.JobType(job.Type.String()), tag.InstanceId(job.InstanceId), tag.Error(err))
	return nil
}

func (e *engineImpl) applyCommand(m *machine, p resumePayload) {
	logger := e.logger.WithTags(tag.InstanceId(m.instanceId), tag.InstanceStatus(m.status.String()))
	switch p.Command {
	case CommandStep:
		if m.status == persistence.InstanceStatusReady {
			m.status = persistence.InstanceStatusActive
		}
	case CommandSuspend:
		if m.status == persistence.InstanceStatusReady || m.status == persistence.InstanceStatusActive {
			m.status = persistence.InstanceStatusSuspended
		}
	case CommandResume:
		if m.status == persistence.InstanceStatusSuspended {
			m.status = persistence.InstanceStatusActive
		}
	case CommandTerminate:
		m.terminateAll()
		m.status = persistence.InstanceStatusTerminated
		m.endInstance()
	case CommandRecover:
		if err := m.recover(p.UnitId, p.Action); err != nil {
			logger.Warn("recovery action ignored", tag.UnitId(p.UnitId), tag.RecoveryAction(string(p.Action)), tag.Error(err))
			return
		}
		logger.Info("recovery action applied", tag.UnitId(p.UnitId), tag.RecoveryAction(string(p.Action)))
	default:
		logger.Warn("unknown command ignored", tag.Value(p.Command))
	}
}

// invokePartner consumes the invoke job and calls the partner once the transaction
// committed, so no store transaction stays open during the call. A lease copy of the
// job is scheduled with it and fires again unless the outcome is recorded first, which
// keeps the invocation at least once when the node dies in the middle of the call.
func (e *engineImpl) invokePartner(ctx context.Context, tx *scheduler.Tx, job scheduler.Job, p invokePayload) error {
	leaseAt := time.Now().Add(invokeLease)
	leaseId, err := e.sched.SchedulePersistedJob(ctx, tx, scheduler.JobDetails{
		Type:       persistence.JobTypePartnerInvoke,
		InstanceId: job.InstanceId,
		Payload:    job.Payload,
	}, &leaseAt)
	if err != nil {
		return err
	}
	tx.AfterCommit(func(ctx context.Context) {
		sig := e.callPartner(ctx, job.InstanceId, p)
		if err := e.recordResponse(ctx, job.InstanceId, leaseId, p.Endpoint, sig); err != nil {
			e.logger.Warn("partner response not recorded, the lease invokes again",
				tag.InstanceId(job.InstanceId), tag.Partner(p.Partner), tag.Operation(p.Operation), tag.Error(err))
		}
	})
	return nil
}

func (e *engineImpl) callPartner(ctx context.Context, instanceId string, p invokePayload) Signal {
	reply, err := e.invoker.Invoke(ctx, partner.Exchange{
		InstanceId: instanceId,
		Partner:    p.Partner,
		Operation:  p.Operation,
		Request:    p.Request,
		Attempt:    p.Attempt,
	})
	sig := Signal{Kind: SignalResponse, Attempt: p.Attempt}
	if err != nil {
		f := partner.AsFailure(err)
		sig.Failure = &Failure{Type: f.Type, Reason: f.Reason}
		e.logger.Info("partner invoke failed",
			tag.InstanceId(instanceId), tag.Partner(p.Partner), tag.Operation(p.Operation),
			tag.FailureType(string(f.Type)), tag.Attempt(p.Attempt), tag.Error(err))
		return sig
	}
	sig.Reply = reply
	return sig
}

// recordResponse releases the lease and schedules the outcome as a PARTNER_RESPONSE job.
// Nothing is recorded when the lease already fired, its invocation answers instead.
func (e *engineImpl) recordResponse(ctx context.Context, instanceId, leaseId, endpoint string, sig Signal) error {
	data, err := json.Marshal(signalPayload{Endpoint: endpoint, Signal: sig})
	if err != nil {
		return err
	}
	return e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		if err := e.sched.CancelJob(ctx, tx, leaseId); err != nil {
			return err
		}
		_, err := e.sched.SchedulePersistedJob(ctx, tx, scheduler.JobDetails{
			Type:       persistence.JobTypePartnerResponse,
			InstanceId: instanceId,
			Payload:    data,
		}, nil)
		return err
	})
}
