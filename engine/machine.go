// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/persistence"
)

// kindProcess is the implicit scope wrapping the root activity
const kindProcess definition.Kind = "process"

const invalidActivityFaultName = "{urn:xflow:bpel}invalidActivity"

type (
	// effects are what a step asks of the outside world. They are applied in the
	// transaction that persists the state the step produced.
	effects struct {
		routes        []persistence.RouteRecord
		deletedRoutes []string
		jobs          []jobRequest
		cancelledJobs []string
		events        []Event
	}

	jobRequest struct {
		// UnitId is the unit that keeps the job id to cancel it, empty when nobody cancels it
		UnitId  string
		Type    persistence.JobType
		Payload interface{}
		When    *time.Time
	}

	// machine steps the units of one instance. It only reads and writes the continuation
	// state and collects effects, the same state and signal always give the same result.
	machine struct {
		tmpl       *definition.ProcessTemplate
		instanceId string
		st         *ContinuationState
		now        time.Time
		status     persistence.InstanceStatus

		effects
	}
)

func newMachine(
	tmpl *definition.ProcessTemplate, instanceId string, st *ContinuationState,
	status persistence.InstanceStatus, now time.Time,
) *machine {
	return &machine{
		tmpl:       tmpl,
		instanceId: instanceId,
		st:         st,
		now:        st.advanceClock(now),
		status:     status,
	}
}

// newInstanceState is the state of a NEW instance: the root scope and the process unit
// that runs the root activity, ready but not stepped
func newInstanceState(tmpl *definition.ProcessTemplate, instanceId string, now time.Time) *ContinuationState {
	st := newContinuationState(now.UTC())
	m := newMachine(tmpl, instanceId, st, persistence.InstanceStatusNew, now)
	rootScope, _ := st.newId("s")
	st.Scopes[rootScope] = &ScopeInstance{Id: rootScope, Start: m.now}
	u := m.newUnit(nil, "", rootScope)
	u.OwnScope = rootScope
	return st
}

// run steps ready units until none is ready or the instance ended
func (m *machine) run() {
	for len(m.st.Ready) > 0 && !m.status.IsTerminal() {
		id := m.st.Ready[0]
		m.st.Ready = m.st.Ready[1:]
		if u, ok := m.st.Units[id]; ok {
			m.step(u)
		}
	}
	if m.status.IsTerminal() {
		m.endInstance()
	}
}

func (m *machine) step(u *Unit) {
	if sig, ok := m.take(u, ChannelControl); ok && sig.Kind == SignalTerminate {
		m.onTerminate(u)
	} else if u.Phase == PhaseStart {
		m.start(u)
	} else {
		for _, ch := range []Channel{ChannelKids, ChannelExternal} {
			if !u.waitsOn(ch) {
				continue
			}
			if sig, ok := m.take(u, ch); ok {
				if ch == ChannelKids {
					m.onChild(u, sig)
				} else {
					m.onExternal(u, sig)
				}
				break
			}
		}
	}
	m.requeueIfPending(u)
}

func (m *machine) kindOf(u *Unit) (definition.Kind, *definition.Activity) {
	if u.Activity == "" {
		return kindProcess, nil
	}
	a, ok := m.tmpl.Activity(u.Activity)
	if !ok {
		return "", nil
	}
	return a.Kind, a
}

func (m *machine) start(u *Unit) {
	kind, a := m.kindOf(u)
	m.emit(EventActivityStarted, u, nil, nil)
	switch kind {
	case kindProcess:
		m.startProcess(u)
	case definition.KindEmpty:
		m.finish(u, SignalCompleted, nil)
	case definition.KindSequence:
		m.startSequence(u, a)
	case definition.KindFlow:
		m.startFlow(u, a)
	case definition.KindScope:
		m.startScope(u, a)
	case definition.KindReceive:
		m.startReceive(u, a)
	case definition.KindInvoke:
		m.attemptInvoke(u, a)
	case definition.KindThrow:
		m.finish(u, SignalFaulted, &Fault{Name: a.FaultName, Activity: a.Path()})
	case definition.KindWait:
		m.startWait(u, a)
	case definition.KindPick:
		m.startPick(u, a)
	case definition.KindCompensate:
		m.startCompensate(u, a)
	case definition.KindExit:
		m.emit(EventActivityCompleted, u, nil, nil)
		delete(m.st.Units, u.Id)
		m.terminateAll()
		m.status = persistence.InstanceStatusTerminated
	default:
		m.finish(u, SignalFaulted, &Fault{Name: invalidActivityFaultName, Detail: u.Activity, Activity: u.Activity})
	}
}

func (m *machine) onChild(u *Unit, sig Signal) {
	u.Children = removeString(u.Children, sig.From)
	kind, a := m.kindOf(u)
	switch kind {
	case kindProcess, definition.KindScope:
		m.onScopeChild(u, a, sig)
	case definition.KindCompensate:
		m.onCompensateChild(u, sig)
	case definition.KindSequence:
		m.onSequenceChild(u, a, sig)
	case definition.KindFlow:
		m.onFlowChild(u, sig)
	case definition.KindPick:
		m.onPickChild(u, sig)
	}
}

func (m *machine) onExternal(u *Unit, sig Signal) {
	kind, a := m.kindOf(u)
	switch kind {
	case definition.KindReceive:
		if sig.Kind == SignalMessage && u.Phase == PhaseWaitingMessage && sig.Message != nil {
			u.RouteId = ""
			m.consumeMessage(u, a, *sig.Message)
		}
	case definition.KindWait:
		if sig.Kind == SignalTimer && u.Phase == PhaseWaitingTimer {
			u.JobId = ""
			m.finish(u, SignalCompleted, nil)
		}
	case definition.KindInvoke:
		m.onInvokeSignal(u, a, sig)
	case definition.KindPick:
		m.onPickSignal(u, a, sig)
	}
}

func (m *machine) onTerminate(u *Unit) {
	kind, _ := m.kindOf(u)
	switch kind {
	case kindProcess, definition.KindScope:
		m.terminateScope(u)
	case definition.KindSequence, definition.KindFlow, definition.KindCompensate, definition.KindPick:
		m.releaseWait(u)
		if u.Terminating {
			return
		}
		u.Terminating = true
		if len(u.Children) == 0 {
			m.finish(u, SignalTerminated, nil)
			return
		}
		m.terminateChildren(u)
	default:
		m.releaseWait(u)
		m.finish(u, SignalTerminated, nil)
	}
}

func (m *machine) terminateChildren(u *Unit) {
	for _, c := range u.Children {
		m.send(c, ChannelControl, Signal{Kind: SignalTerminate})
	}
}

func (m *machine) startSequence(u *Unit, a *definition.Activity) {
	if len(a.Children) == 0 {
		m.finish(u, SignalCompleted, nil)
		return
	}
	u.Phase = PhaseRunning
	u.Next = 0
	m.spawn(u, a.Children[0], u.Scope)
	m.wait(u, ChannelKids)
}

func (m *machine) onSequenceChild(u *Unit, a *definition.Activity, sig Signal) {
	if u.Terminating {
		m.finish(u, SignalTerminated, nil)
		return
	}
	switch sig.Kind {
	case SignalCompleted:
		u.Next++
		if u.Next >= len(a.Children) {
			m.finish(u, SignalCompleted, nil)
			return
		}
		m.spawn(u, a.Children[u.Next], u.Scope)
	case SignalFaulted:
		m.finish(u, SignalFaulted, sig.Fault)
	default:
		m.finish(u, SignalTerminated, nil)
	}
}

func (m *machine) startFlow(u *Unit, a *definition.Activity) {
	if len(a.Children) == 0 {
		m.finish(u, SignalCompleted, nil)
		return
	}
	u.Phase = PhaseRunning
	for _, c := range a.Children {
		m.spawn(u, c, u.Scope)
	}
	m.wait(u, ChannelKids)
}

// onFlowChild joins the children. The first fault wins: the other children are terminated
// and the fault is reported once all of them are gone.
func (m *machine) onFlowChild(u *Unit, sig Signal) {
	if sig.Kind == SignalFaulted && u.Fault == nil && !u.Terminating {
		u.Fault = sig.Fault
		m.terminateChildren(u)
	}
	if len(u.Children) > 0 {
		return
	}
	switch {
	case u.Terminating:
		m.finish(u, SignalTerminated, nil)
	case u.Fault != nil:
		m.finish(u, SignalFaulted, u.Fault)
	default:
		m.finish(u, SignalCompleted, nil)
	}
}

func (m *machine) startWait(u *Unit, a *definition.Activity) {
	if a.Duration <= 0 {
		m.finish(u, SignalCompleted, nil)
		return
	}
	when := m.now.Add(a.Duration)
	m.jobs = append(m.jobs, jobRequest{
		UnitId:  u.Id,
		Type:    persistence.JobTypeTimer,
		Payload: signalPayload{Endpoint: endpointId(u.Id, ChannelExternal), Signal: Signal{Kind: SignalTimer}},
		When:    &when,
	})
	u.Phase = PhaseWaitingTimer
	m.wait(u, ChannelExternal)
}

// releaseWait drops the route or the timer a leaf unit is waiting on
func (m *machine) releaseWait(u *Unit) {
	if u.RouteId != "" {
		m.deletedRoutes = append(m.deletedRoutes, u.RouteId)
		u.RouteId = ""
	}
	m.deletedRoutes = append(m.deletedRoutes, u.RouteIds...)
	u.RouteIds = nil
	if u.JobId != "" {
		m.cancelledJobs = append(m.cancelledJobs, u.JobId)
		u.JobId = ""
	}
}

// terminateAll drops every unit, used by exit and by terminating the instance
func (m *machine) terminateAll() {
	for _, u := range m.unitsInOrder() {
		m.releaseWait(u)
		m.emit(EventActivityTerminated, u, nil, nil)
	}
	m.st.Units = map[string]*Unit{}
	m.st.Endpoints = map[string]*Endpoint{}
	m.st.Ready = nil
}

// endInstance drops what a finished instance no longer needs. Compensation handlers
// still in the ledger end with the process without being run.
func (m *machine) endInstance() {
	if len(m.st.Units) > 0 {
		m.terminateAll()
	}
	m.st.Ledger.Handlers = nil
	m.st.StartMessage = nil
}

func (m *machine) newUnit(parent *Unit, activityPath string, scope string) *Unit {
	id, seq := m.st.newId("u")
	u := &Unit{
		Id:        id,
		Seq:       seq,
		Activity:  activityPath,
		Scope:     scope,
		Phase:     PhaseStart,
		WaitingOn: []Channel{ChannelControl},
		StartedAt: m.now,
	}
	if parent != nil {
		u.Parent = parent.Id
		parent.Children = append(parent.Children, id)
	}
	m.st.Units[id] = u
	for _, ch := range []Channel{ChannelControl, ChannelKids, ChannelExternal} {
		m.st.Endpoints[endpointId(id, ch)] = &Endpoint{Owner: id}
	}
	m.enqueue(u, false)
	return u
}

func (m *machine) spawn(parent *Unit, a *definition.Activity, scope string) *Unit {
	return m.newUnit(parent, a.Path(), scope)
}

// finish removes the unit and reports the outcome to its parent
func (m *machine) finish(u *Unit, kind SignalKind, fault *Fault) {
	switch kind {
	case SignalCompleted:
		m.emit(EventActivityCompleted, u, nil, nil)
	case SignalFaulted:
		m.emit(EventActivityFaulted, u, fault, nil)
	default:
		m.emit(EventActivityTerminated, u, nil, nil)
	}

	delete(m.st.Units, u.Id)
	for _, ch := range []Channel{ChannelControl, ChannelKids, ChannelExternal} {
		delete(m.st.Endpoints, endpointId(u.Id, ch))
	}
	m.st.Ready = removeString(m.st.Ready, u.Id)

	if u.Parent == "" {
		switch kind {
		case SignalCompleted:
			m.status = persistence.InstanceStatusCompletedOk
		case SignalFaulted:
			m.status = persistence.InstanceStatusCompletedWithFault
			m.st.Fault = fault
		default:
			m.status = persistence.InstanceStatusTerminated
		}
		return
	}
	m.send(u.Parent, ChannelKids, Signal{Kind: kind, From: u.Id, Fault: fault})
}

// send appends to a mailbox of the unit. Structural signals put the owner at the front
// of the ready queue, so that a parent reacts to a child before siblings make progress.
func (m *machine) send(unitId string, ch Channel, sig Signal) bool {
	ep, ok := m.st.Endpoints[endpointId(unitId, ch)]
	if !ok {
		return false
	}
	ep.Mailbox = append(ep.Mailbox, sig)
	if u, ok := m.st.Units[ep.Owner]; ok && u.waitsOn(ch) {
		m.enqueue(u, ch != ChannelExternal)
	}
	return true
}

// deliver sends a signal to an endpoint by id, it returns false when the endpoint is gone
func (m *machine) deliver(endpoint string, sig Signal) bool {
	i := strings.LastIndexByte(endpoint, '/')
	if i < 0 {
		return false
	}
	return m.send(endpoint[:i], Channel(endpoint[i+1:]), sig)
}

func (m *machine) take(u *Unit, ch Channel) (Signal, bool) {
	ep, ok := m.st.Endpoints[endpointId(u.Id, ch)]
	if !ok || len(ep.Mailbox) == 0 {
		return Signal{}, false
	}
	sig := ep.Mailbox[0]
	ep.Mailbox = ep.Mailbox[1:]
	if len(ep.Mailbox) == 0 {
		ep.Mailbox = nil
	}
	return sig, true
}

// wait sets the endpoints the unit blocks on, the control endpoint is always included
func (m *machine) wait(u *Unit, chs ...Channel) {
	u.WaitingOn = append([]Channel{ChannelControl}, chs...)
}

func (m *machine) enqueue(u *Unit, urgent bool) {
	for _, id := range m.st.Ready {
		if id == u.Id {
			return
		}
	}
	if urgent {
		m.st.Ready = append([]string{u.Id}, m.st.Ready...)
	} else {
		m.st.Ready = append(m.st.Ready, u.Id)
	}
}

func (m *machine) requeueIfPending(u *Unit) {
	if m.st.Units[u.Id] != u {
		return
	}
	for _, ch := range u.WaitingOn {
		if ep, ok := m.st.Endpoints[endpointId(u.Id, ch)]; ok && len(ep.Mailbox) > 0 {
			m.enqueue(u, false)
			return
		}
	}
}

func (u *Unit) waitsOn(ch Channel) bool {
	if ch == ChannelControl {
		return true
	}
	for _, c := range u.WaitingOn {
		if c == ch {
			return true
		}
	}
	return false
}

func (m *machine) emit(typ EventType, u *Unit, fault *Fault, failure *Failure) {
	name := "process"
	if _, a := m.kindOf(u); a != nil {
		name = a.DisplayName()
	}
	m.events = append(m.events, Event{
		Type:       typ,
		InstanceId: m.instanceId,
		UnitId:     u.Id,
		Activity:   u.Activity,
		Name:       name,
		Fault:      fault,
		Failure:    failure,
		At:         m.now,
	})
}

func (m *machine) unitsInOrder() []*Unit {
	units := make([]*Unit, 0, len(m.st.Units))
	for _, u := range m.st.Units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].Seq < units[j].Seq
	})
	return units
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			out := append([]string(nil), list[:i]...)
			out = append(out, list[i+1:]...)
			if len(out) == 0 {
				return nil
			}
			return out
		}
	}
	return list
}
