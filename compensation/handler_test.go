// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package compensation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func handler(id string, start, end int, ancestors ...Handler) Handler {
	h := Handler{ScopeId: id, Name: id, Start: at(start), End: at(end)}
	for _, a := range ancestors {
		h.Ancestors = append(h.Ancestors, ScopeRef{ScopeId: a.ScopeId, Start: a.Start})
	}
	return h
}

func scopeIds(hs []Handler) []string {
	var ids []string
	for _, h := range hs {
		ids = append(ids, h.ScopeId)
	}
	return ids
}

func TestOrderNestedScopes(t *testing.T) {
	var l Ledger
	parent := handler("parent", 10, 100)
	outer := handler("outer", 20, 90, parent)
	inner := handler("inner", 30, 80, parent, outer)

	l.Register(inner)
	l.Register(outer)
	l.Register(parent)

	ordered := Order(l.Handlers)
	assert.Equal(t, []string{"parent", "outer", "inner"}, scopeIds(ordered))
	assert.Equal(t, []string{"inner", "outer", "parent"}, scopeIds(ExecutionOrder(ordered)))
}

func TestOrderPeerScopesByStart(t *testing.T) {
	var l Ledger
	parent := handler("parent", 10, 100)
	l.Register(handler("child2", 35, 60, parent))
	l.Register(handler("child1", 17, 30, parent))
	l.Register(parent)

	assert.Equal(t, []string{"parent", "child1", "child2"}, scopeIds(Order(l.Handlers)))
}

func TestOrderParallelScopesWithSameEnd(t *testing.T) {
	var l Ledger
	parent := handler("parent", 10, 100)
	l.Register(handler("late", 40, 60, parent))
	l.Register(handler("early", 20, 60, parent))

	assert.Equal(t, []string{"early", "late"}, scopeIds(Order(l.Handlers)))
}

func TestOrderTiesOnEndThenInsertion(t *testing.T) {
	var l Ledger
	l.Register(handler("b", 10, 50))
	l.Register(handler("a", 10, 40))
	l.Register(handler("c", 10, 40))
	l.Register(handler("d", 10, 40))

	assert.Equal(t, []string{"a", "c", "d", "b"}, scopeIds(Order(l.Handlers)))
}

func TestOrderSameStartDifferentDepthByDepthFirst(t *testing.T) {
	parent := handler("parent", 10, 100)
	// unrelated to shallow, starts with it and ends earlier, but is nested deeper
	deep := handler("deep", 20, 25, parent)
	shallow := handler("shallow", 20, 40)

	assert.Equal(t, []string{"parent", "shallow", "deep"},
		scopeIds(Order([]Handler{deep, shallow, parent})))
}

func TestOrderAncestorFirstEvenWithSkewedStart(t *testing.T) {
	parent := handler("parent", 50, 100)
	// a clock skew that makes the child appear to start before its parent
	child := handler("child", 40, 60, parent)
	assert.True(t, Compare(parent, child) < 0)
	assert.True(t, Compare(child, parent) > 0)
}

func TestLedgerRegisterReplacesSameScope(t *testing.T) {
	var l Ledger
	first := l.Register(handler("s", 1, 2))
	second := l.Register(handler("s", 3, 4))
	assert.Equal(t, 1, l.Len())
	assert.True(t, second.Seq > first.Seq)
	h, ok := l.Get("s")
	assert.True(t, ok)
	assert.Equal(t, at(3), h.Start)
}

func TestLedgerWithinSubtreeAndDiscard(t *testing.T) {
	var l Ledger
	root := handler("root", 0, 100)
	a := handler("a", 10, 50, root)
	a1 := handler("a1", 15, 20, root, a)
	b := handler("b", 60, 70, root)
	l.Register(a1)
	l.Register(a)
	l.Register(b)

	assert.Equal(t, []string{"a", "a1", "b"}, scopeIds(l.Within("root")))
	assert.Equal(t, []string{"a1"}, scopeIds(l.Within("a")))
	assert.Equal(t, []string{"a", "a1"}, scopeIds(l.Subtree("a")))

	assert.Equal(t, 1, l.Discard("a"))
	assert.Equal(t, []string{"a", "b"}, scopeIds(Order(l.Handlers)))
	assert.True(t, l.Remove("b"))
	assert.False(t, l.Remove("b"))
}

func TestCompareIsStrictTotalOrder(t *testing.T) {
	r := rand.New(rand.NewSource(2023))
	for round := 0; round < 50; round++ {
		handlers := randomForest(r, 12)

		for _, a := range handlers {
			assert.Equal(t, 0, Compare(a, a), "irreflexive")
			for _, b := range handlers {
				if a.ScopeId == b.ScopeId {
					continue
				}
				ab, ba := Compare(a, b), Compare(b, a)
				assert.NotEqual(t, 0, ab, "total: %v %v", a.ScopeId, b.ScopeId)
				assert.Equal(t, ab < 0, ba > 0, "antisymmetric: %v %v", a.ScopeId, b.ScopeId)
				if a.IsAncestorOf(b) {
					assert.True(t, ab < 0, "ancestor %v before %v", a.ScopeId, b.ScopeId)
				}
				for _, c := range handlers {
					if Compare(a, b) < 0 && Compare(b, c) < 0 {
						assert.True(t, Compare(a, c) < 0, "transitive: %v %v %v", a.ScopeId, b.ScopeId, c.ScopeId)
					}
				}
			}
		}

		// sorting twice, from different insertion orders, gives the same result
		shuffled := append([]Handler(nil), handlers...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, scopeIds(Order(handlers)), scopeIds(Order(shuffled)))
	}
}

// randomForest builds handlers for random scope trees with random, possibly identical,
// start and end times
func randomForest(r *rand.Rand, n int) []Handler {
	var handlers []Handler
	var l Ledger
	for i := 0; i < n; i++ {
		start := r.Intn(20)
		end := start + r.Intn(20)
		var ancestors []Handler
		if len(handlers) > 0 && r.Intn(3) > 0 {
			parent := handlers[r.Intn(len(handlers))]
			for _, a := range parent.Ancestors {
				ancestors = append(ancestors, Handler{ScopeId: a.ScopeId, Start: a.Start})
			}
			ancestors = append(ancestors, parent)
		}
		h := l.Register(handler(fmt.Sprintf("s%d", i), start, end, ancestors...))
		handlers = append(handlers, h)
	}
	return handlers
}
