// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"

	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/persistence"
)

// attemptInvoke asks for one partner call. The call runs in its own job outside the
// instance lock, and its outcome comes back to the external endpoint of the unit.
func (m *machine) attemptInvoke(u *Unit, a *definition.Activity) {
	u.Attempts++
	m.st.Invocations++
	u.Phase = PhaseInvoking
	m.jobs = append(m.jobs, jobRequest{
		Type: persistence.JobTypePartnerInvoke,
		Payload: invokePayload{
			Endpoint:  endpointId(u.Id, ChannelExternal),
			Partner:   a.Partner,
			Operation: a.Operation,
			Request:   m.st.Variables[a.InputVariable],
			Attempt:   u.Attempts,
		},
	})
	m.wait(u, ChannelExternal)
}

func (m *machine) onInvokeSignal(u *Unit, a *definition.Activity, sig Signal) {
	switch sig.Kind {
	case SignalResponse:
		if u.Phase != PhaseInvoking || sig.Attempt != u.Attempts {
			return
		}
		if sig.Failure != nil {
			m.invokeFailed(u, a, sig.Failure)
			return
		}
		if a.OutputVariable != "" {
			if m.st.Variables == nil {
				m.st.Variables = map[string]json.RawMessage{}
			}
			reply := sig.Reply
			if len(reply) == 0 {
				reply = json.RawMessage("null")
			}
			m.st.Variables[a.OutputVariable] = reply
		}
		u.Failure = nil
		m.finish(u, SignalCompleted, nil)

	case SignalTimer:
		if u.Phase == PhaseWaitingRetry {
			u.JobId = ""
			m.attemptInvoke(u, a)
		}

	case SignalRecover:
		if u.Phase != PhaseRecovery {
			return
		}
		switch sig.Action {
		case RecoveryActionRetry:
			u.ManualRetry = true
			m.attemptInvoke(u, a)
		case RecoveryActionCancel:
			// the activity is abandoned as if it never ran
			u.Failure = nil
			m.finish(u, SignalCompleted, nil)
		case RecoveryActionFault:
			m.finish(u, SignalFaulted, m.failureFault(u, a))
		}
	}
}

// invokeFailed retries automatically while the failure handling allows it, then either
// raises the failure fault or leaves the activity in recovery for an operator.
// A manual retry makes a single attempt.
func (m *machine) invokeFailed(u *Unit, a *definition.Activity, failure *Failure) {
	f := *failure
	f.Attempts = u.Attempts
	f.At = m.now
	u.Failure = &f

	policy := m.failureHandling(u)
	if !u.ManualRetry && u.AutoRetries < policy.RetryFor {
		u.AutoRetries++
		when := m.now.Add(policy.RetryDelay)
		m.jobs = append(m.jobs, jobRequest{
			UnitId:  u.Id,
			Type:    persistence.JobTypeTimer,
			Payload: signalPayload{Endpoint: endpointId(u.Id, ChannelExternal), Signal: Signal{Kind: SignalTimer}},
			When:    &when,
		})
		u.Phase = PhaseWaitingRetry
		return
	}
	if policy.FaultOnFailure {
		m.finish(u, SignalFaulted, m.failureFault(u, a))
		return
	}
	u.ManualRetry = false
	u.Phase = PhaseRecovery
	m.emit(EventRecoveryEntered, u, nil, u.Failure)
}

func (m *machine) failureFault(u *Unit, a *definition.Activity) *Fault {
	fault := &Fault{Name: definition.FailureFaultName, Activity: a.Path()}
	if u.Failure != nil {
		fault.Detail = string(u.Failure.Type) + ": " + u.Failure.Reason
	}
	return fault
}

// failureHandling is the policy of the nearest enclosing scope that declares one,
// then the default of the template
func (m *machine) failureHandling(u *Unit) definition.FailureHandling {
	for scope := m.st.Scopes[u.Scope]; scope != nil; scope = m.st.Scopes[scope.Parent] {
		if a, ok := m.tmpl.Activity(scope.Activity); ok && a.FailureHandling != nil {
			return *a.FailureHandling
		}
		if scope.Parent == "" {
			break
		}
	}
	if m.tmpl.FailureHandling != nil {
		return *m.tmpl.FailureHandling
	}
	return definition.FailureHandling{}
}

// recover applies a recovery action to a unit in recovery
func (m *machine) recover(unitId string, action RecoveryAction) error {
	u, ok := m.st.Units[unitId]
	if !ok || u.Phase != PhaseRecovery {
		return ErrActivityNotInRecovery
	}
	switch action {
	case RecoveryActionRetry, RecoveryActionCancel, RecoveryActionFault:
	default:
		return ErrInvalidRecoveryAction
	}
	m.send(unitId, ChannelExternal, Signal{Kind: SignalRecover, Action: action})
	return nil
}
