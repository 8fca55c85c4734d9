// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/xcherryio/xflow/compensation"
	"github.com/xcherryio/xflow/definition"
)

// A scope unit goes through these phases:
//
//	running       the body runs
//	compensating  after a fault, the handlers of completed nested scopes run, latest first.
//	              After a termination the same happens, with no fault held.
//	catching      the matching catch runs
//
// The process unit is a scope without catches whose own scope is the root scope.

func (m *machine) startProcess(u *Unit) {
	if m.tmpl.Root == nil {
		m.finish(u, SignalCompleted, nil)
		return
	}
	u.Phase = PhaseRunning
	m.spawn(u, m.tmpl.Root, u.OwnScope)
	m.wait(u, ChannelKids)
}

func (m *machine) startScope(u *Unit, a *definition.Activity) {
	parent := m.st.Scopes[u.Scope]
	id, _ := m.st.newId("s")
	scope := &ScopeInstance{
		Id:       id,
		Activity: a.Path(),
		Start:    m.now,
	}
	if parent != nil {
		scope.Parent = parent.Id
		scope.Ancestors = append(append([]compensation.ScopeRef(nil), parent.Ancestors...), compensation.ScopeRef{
			ScopeId: parent.Id,
			Start:   parent.Start,
		})
	}
	m.st.Scopes[id] = scope
	u.OwnScope = id
	u.Phase = PhaseRunning
	m.spawn(u, a.Body, id)
	m.wait(u, ChannelKids)
}

func (m *machine) terminateScope(u *Unit) {
	switch {
	case u.Phase == PhaseStart:
		m.finish(u, SignalTerminated, nil)
	case u.Terminating:
	default:
		u.Terminating = true
		u.Compensations = nil
		m.terminateChildren(u)
	}
}

func (m *machine) onScopeChild(u *Unit, a *definition.Activity, sig Signal) {
	switch u.Phase {
	case PhaseRunning:
		switch {
		case u.Terminating || sig.Kind == SignalTerminated:
			// a terminated scope compensates its nested scopes too, holding no fault
			u.Terminating = true
			m.compensateWithin(u)
		case sig.Kind == SignalCompleted:
			m.completeScope(u, a)
		default:
			u.Fault = sig.Fault
			m.compensateWithin(u)
		}

	case PhaseCompensating:
		switch {
		case u.Fault != nil && u.Terminating:
			m.endScope(u, SignalTerminated, nil)
		case u.Fault != nil && sig.Kind == SignalFaulted:
			// a failing compensation handler replaces the fault being handled
			m.endScope(u, SignalFaulted, sig.Fault)
		default:
			if !m.nextCompensation(u) {
				m.afterCompensation(u, a)
			}
		}

	case PhaseCatching:
		switch {
		case u.Terminating || sig.Kind == SignalTerminated:
			m.endScope(u, SignalTerminated, nil)
		case sig.Kind == SignalFaulted:
			m.endScope(u, SignalFaulted, sig.Fault)
		default:
			m.endScope(u, SignalCompleted, nil)
		}
	}
}

func (m *machine) compensateWithin(u *Unit) {
	m.beginCompensation(u, m.st.Ledger.Within(u.OwnScope))
	if !m.nextCompensation(u) {
		m.afterCompensation(u, m.activityOf(u))
	}
}

func (m *machine) afterCompensation(u *Unit, a *definition.Activity) {
	if u.Fault == nil {
		m.endScope(u, SignalTerminated, nil)
		return
	}
	if a != nil {
		if handler, ok := a.FindCatch(u.Fault.Name); ok {
			u.Phase = PhaseCatching
			m.spawn(u, handler, u.OwnScope)
			return
		}
	}
	m.endScope(u, SignalFaulted, u.Fault)
}

// completeScope installs the compensation handler of a scope that completed normally.
// Handlers of scopes nested in it stay, an enclosing compensation reaches them.
func (m *machine) completeScope(u *Unit, a *definition.Activity) {
	scope := m.st.Scopes[u.OwnScope]
	end := m.now
	scope.End = &end
	if a != nil && a.CompensationHandler != nil {
		m.st.Ledger.Register(compensation.Handler{
			ScopeId:   scope.Id,
			Name:      a.Name,
			Activity:  a.CompensationHandler.Path(),
			Ancestors: scope.Ancestors,
			Start:     scope.Start,
			End:       end,
		})
	}
	m.finish(u, SignalCompleted, nil)
}

// endScope ends a scope that did not complete normally, it installs no handler and
// the handlers left inside it end with it
func (m *machine) endScope(u *Unit, kind SignalKind, fault *Fault) {
	if scope, ok := m.st.Scopes[u.OwnScope]; ok {
		end := m.now
		scope.End = &end
	}
	m.st.Ledger.Discard(u.OwnScope)
	m.finish(u, kind, fault)
}

func (m *machine) startCompensate(u *Unit, a *definition.Activity) {
	within := m.st.Ledger.Within(u.Scope)
	var handlers []compensation.Handler
	if a.Target == "" {
		handlers = within
	} else {
		seen := map[string]bool{}
		for _, h := range within {
			if h.Name != a.Target {
				continue
			}
			for _, s := range m.st.Ledger.Subtree(h.ScopeId) {
				if !seen[s.ScopeId] {
					seen[s.ScopeId] = true
					handlers = append(handlers, s)
				}
			}
		}
		handlers = compensation.Order(handlers)
	}
	m.beginCompensation(u, handlers)
	if !m.nextCompensation(u) {
		m.finish(u, SignalCompleted, nil)
	}
}

func (m *machine) onCompensateChild(u *Unit, sig Signal) {
	switch {
	case u.Terminating || sig.Kind == SignalTerminated:
		m.finish(u, SignalTerminated, nil)
	case sig.Kind == SignalFaulted:
		m.finish(u, SignalFaulted, sig.Fault)
	default:
		if !m.nextCompensation(u) {
			m.finish(u, SignalCompleted, nil)
		}
	}
}

// beginCompensation takes handlers in ledger order and queues them in execution order
func (m *machine) beginCompensation(u *Unit, handlers []compensation.Handler) {
	u.Phase = PhaseCompensating
	u.Compensations = nil
	for _, h := range compensation.ExecutionOrder(handlers) {
		u.Compensations = append(u.Compensations, h.ScopeId)
	}
	m.wait(u, ChannelKids)
}

// nextCompensation starts the next queued handler, it returns false when none is left.
// A handler is removed from the ledger when it starts, so it never runs twice.
func (m *machine) nextCompensation(u *Unit) bool {
	for len(u.Compensations) > 0 {
		scopeId := u.Compensations[0]
		u.Compensations = u.Compensations[1:]
		h, ok := m.st.Ledger.Get(scopeId)
		if !ok {
			continue
		}
		m.st.Ledger.Remove(scopeId)
		a, ok := m.tmpl.Activity(h.Activity)
		if !ok {
			continue
		}
		m.spawn(u, a, scopeId)
		return true
	}
	u.Compensations = nil
	return false
}

func (m *machine) activityOf(u *Unit) *definition.Activity {
	_, a := m.kindOf(u)
	return a
}
