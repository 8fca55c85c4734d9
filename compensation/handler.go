// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package compensation keeps the compensation handlers of completed scopes and
// decides the order they are compensated in.
//
// Two separate steps are involved when compensation is triggered:
//
//  1. Order sorts handlers into ledger order. Ancestors come before descendants, and
//     unrelated scopes come by start time, then end time, then registration order.
//     One exception: unrelated scopes that started at the same time order by nesting
//     depth before end time, the shallower first. An ancestor usually shares its start
//     with its first descendant and ends after it, so breaking such ties by end time
//     alone could not keep ancestors first and stay a total order.
//  2. ExecutionOrder turns the ledger order into the order handlers are run in, which is
//     the reverse: descendants are compensated before their ancestors, and later scopes
//     before earlier ones.
package compensation

import (
	"sort"
	"time"
)

// ScopeRef identifies one scope instance in the path from the root scope
type ScopeRef struct {
	ScopeId string    `json:"scopeId"`
	Start   time.Time `json:"start"`
}

// Handler is the compensation handler of a scope that completed successfully
type Handler struct {
	ScopeId string `json:"scopeId"`
	// Name is the scope name from the process template
	Name string `json:"name"`
	// Activity locates the handler's activity in the process template
	Activity string `json:"activity"`
	// Ancestors lists the enclosing scope instances from the root scope downwards,
	// not including the handler's own scope
	Ancestors []ScopeRef `json:"ancestors,omitempty"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	// Seq is assigned by the ledger on registration
	Seq int64 `json:"seq"`
}

// Depth is the nesting depth of the handler's scope, the root scope is 0
func (h Handler) Depth() int {
	return len(h.Ancestors)
}

// IsAncestorOf is true when h's scope structurally encloses other's scope
func (h Handler) IsAncestorOf(other Handler) bool {
	return other.hasAncestor(h.ScopeId)
}

func (h Handler) hasAncestor(scopeId string) bool {
	for _, a := range h.Ancestors {
		if a.ScopeId == scopeId {
			return true
		}
	}
	return false
}

// effectiveStart is the latest start along the scope's path. A scope never starts before
// the scopes enclosing it, so for consistent data this is just Start. Using the maximum keeps
// ancestors ordered first even when clocks disagree.
func (h Handler) effectiveStart() time.Time {
	start := h.Start
	for _, a := range h.Ancestors {
		if a.Start.After(start) {
			start = a.Start
		}
	}
	return start
}

// Compare is the ledger order of two handlers. It returns a negative number when a orders
// before b, a positive number when b orders before a, and zero only for the same registration.
//
// The order is lexicographic over (effective start, depth, end, seq), which makes it a strict
// total order. An ancestor has an effective start no later than any of its descendants and a
// smaller depth, so it always orders first. Unrelated scopes order by start time, and ties
// by end time unless they sit at different depths.
func Compare(a, b Handler) int {
	as, bs := a.effectiveStart(), b.effectiveStart()
	if !as.Equal(bs) {
		if as.Before(bs) {
			return -1
		}
		return 1
	}
	if a.Depth() != b.Depth() {
		return a.Depth() - b.Depth()
	}
	if !a.End.Equal(b.End) {
		if a.End.Before(b.End) {
			return -1
		}
		return 1
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// Order returns the handlers in ledger order, leaving the input untouched
func Order(handlers []Handler) []Handler {
	ordered := append([]Handler(nil), handlers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Compare(ordered[i], ordered[j]) < 0
	})
	return ordered
}

// ExecutionOrder returns the order handlers are run in for handlers given in ledger order
func ExecutionOrder(ordered []Handler) []Handler {
	out := make([]Handler, len(ordered))
	for i, h := range ordered {
		out[len(ordered)-1-i] = h
	}
	return out
}
