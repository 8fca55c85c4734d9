// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package compensation

// Ledger keeps the handlers registered by completed scopes of one instance.
// It is part of the persisted instance state, so it is a plain value.
type Ledger struct {
	Handlers []Handler `json:"handlers,omitempty"`
	NextSeq  int64     `json:"nextSeq"`
}

// Register installs the handler of a completed scope, replacing a previous
// registration of the same scope
func (l *Ledger) Register(h Handler) Handler {
	l.NextSeq++
	h.Seq = l.NextSeq
	l.Remove(h.ScopeId)
	l.Handlers = append(l.Handlers, h)
	return h
}

func (l *Ledger) Remove(scopeId string) bool {
	for i, h := range l.Handlers {
		if h.ScopeId == scopeId {
			l.Handlers = append(l.Handlers[:i], l.Handlers[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Ledger) Get(scopeId string) (Handler, bool) {
	for _, h := range l.Handlers {
		if h.ScopeId == scopeId {
			return h, true
		}
	}
	return Handler{}, false
}

// Within returns, in ledger order, the handlers of scopes nested inside the given scope.
// The scope's own handler is not included.
func (l *Ledger) Within(scopeId string) []Handler {
	var found []Handler
	for _, h := range l.Handlers {
		if h.hasAncestor(scopeId) {
			found = append(found, h)
		}
	}
	return Order(found)
}

// Subtree returns, in ledger order, the handler of the given scope together with
// the handlers of every scope nested inside it
func (l *Ledger) Subtree(scopeId string) []Handler {
	var found []Handler
	for _, h := range l.Handlers {
		if h.ScopeId == scopeId || h.hasAncestor(scopeId) {
			found = append(found, h)
		}
	}
	return Order(found)
}

// Discard drops the handlers nested inside the given scope, used when the scope's
// lifetime ends without those handlers being invoked
func (l *Ledger) Discard(scopeId string) int {
	kept := l.Handlers[:0]
	dropped := 0
	for _, h := range l.Handlers {
		if h.hasAncestor(scopeId) {
			dropped++
			continue
		}
		kept = append(kept, h)
	}
	l.Handlers = kept
	return dropped
}

func (l *Ledger) Len() int {
	return len(l.Handlers)
}
