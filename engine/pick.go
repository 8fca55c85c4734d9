// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"strconv"

	"github.com/xcherryio/xflow/correlation"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/persistence"
)

// startPick waits on every onMessage and the alarm at once, all of them on the external
// endpoint of the unit. The first signal picks the branch and releases the others.
func (m *machine) startPick(u *Unit, a *definition.Activity) {
	keys := make([]correlation.KeySet, len(a.OnMessages))
	for i, o := range a.OnMessages {
		k, fault := m.routeKeys(o.Receive())
		if fault != nil {
			m.finish(u, SignalFaulted, fault)
			return
		}
		keys[i] = k
	}

	for i, o := range a.OnMessages {
		routeId := m.instanceId + "/" + u.Id + "/" + strconv.Itoa(i)
		u.RouteIds = append(u.RouteIds, routeId)
		m.routes = append(m.routes, persistence.RouteRecord{
			RouteId:     routeId,
			ProcessType: m.tmpl.Type,
			Operation:   o.Operation,
			KeySet:      keys[i].CanonicalForm(),
			InstanceId:  m.instanceId,
			Endpoint:    endpointId(u.Id, ChannelExternal),
		})
		m.jobs = append(m.jobs, jobRequest{
			Type:    persistence.JobTypeMatcher,
			Payload: matcherPayload{RouteId: routeId, Operation: o.Operation},
		})
	}
	if a.OnAlarm != nil {
		when := m.now.Add(a.OnAlarm.Duration)
		m.jobs = append(m.jobs, jobRequest{
			UnitId:  u.Id,
			Type:    persistence.JobTypeTimer,
			Payload: signalPayload{Endpoint: endpointId(u.Id, ChannelExternal), Signal: Signal{Kind: SignalTimer}},
			When:    &when,
		})
	}
	u.Phase = PhaseWaitingMessage
	m.wait(u, ChannelExternal)
}

func (m *machine) onPickSignal(u *Unit, a *definition.Activity, sig Signal) {
	if u.Phase != PhaseWaitingMessage {
		return
	}
	switch {
	case sig.Kind == SignalMessage && sig.Message != nil:
		_, o, ok := a.FindOnMessage(sig.Message.Operation)
		if !ok {
			return
		}
		m.releaseWait(u)
		if fault := m.acceptMessage(o.Receive(), *sig.Message); fault != nil {
			m.finish(u, SignalFaulted, fault)
			return
		}
		m.runPickBranch(u, o.Activity)
	case sig.Kind == SignalTimer && a.OnAlarm != nil:
		// the firing timer is consumed already
		u.JobId = ""
		m.releaseWait(u)
		m.runPickBranch(u, a.OnAlarm.Activity)
	}
}

func (m *machine) runPickBranch(u *Unit, branch *definition.Activity) {
	if branch == nil {
		m.finish(u, SignalCompleted, nil)
		return
	}
	u.Phase = PhaseRunning
	m.spawn(u, branch, u.Scope)
	m.wait(u, ChannelKids)
}

func (m *machine) onPickChild(u *Unit, sig Signal) {
	if u.Terminating {
		m.finish(u, SignalTerminated, nil)
		return
	}
	m.finish(u, sig.Kind, sig.Fault)
}
