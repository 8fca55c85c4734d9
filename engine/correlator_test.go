// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/persistence/memory"
	"github.com/xcherryio/xflow/scheduler"
)

type pauseKey struct{}

// pausingStore runs a callback once, right after a transaction read the routes of an
// operation with a context marked by withPause
type pausingStore struct {
	persistence.Store

	sync.Mutex
	operation   string
	afterSelect func()
}

func withPause(ctx context.Context) context.Context {
	return context.WithValue(ctx, pauseKey{}, true)
}

func (s *pausingStore) StartTransaction(ctx context.Context) (persistence.Transaction, error) {
	tx, err := s.Store.StartTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &pausingTx{Transaction: tx, store: s}, nil
}

func (s *pausingStore) pauseAfterSelect(operation string, fn func()) {
	s.Lock()
	defer s.Unlock()
	s.operation = operation
	s.afterSelect = fn
}

func (s *pausingStore) takeCallback(operation string) func() {
	s.Lock()
	defer s.Unlock()
	if s.operation != operation {
		return nil
	}
	fn := s.afterSelect
	s.afterSelect = nil
	return fn
}

type pausingTx struct {
	persistence.Transaction
	store *pausingStore
}

func (tx *pausingTx) SelectRoutes(ctx context.Context, processType, operation string) ([]persistence.RouteRecord, error) {
	routes, err := tx.Transaction.SelectRoutes(ctx, processType, operation)
	if err != nil {
		return nil, err
	}
	if ctx.Value(pauseKey{}) == nil {
		return routes, nil
	}
	if fn := tx.store.takeCallback(operation); fn != nil {
		fn()
	}
	return routes, nil
}

// routeIn routes msg the way a MYROLE_INVOKE job does, waiting out other jobs of the instance
func routeIn(ctx context.Context, e *engineImpl, processType string, msg Message) error {
	for {
		err := e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
			job := scheduler.Job{JobId: msg.Operation, ScheduledAt: time.Now()}
			return e.route(ctx, tx, job, myRoleInvokePayload{ProcessType: processType, Message: msg})
		})
		if !errors.Is(err, persistence.ErrInstanceLocked) {
			return err
		}
		time.Sleep(tick)
	}
}

func queuedMessages(t *testing.T, e *engineImpl, processType, operation string) []Message {
	var out []Message
	err := e.sched.ExecTransaction(context.Background(), 0, func(ctx context.Context, tx *scheduler.Tx) error {
		records, err := tx.SelectMessages(ctx, processType, operation)
		if err != nil {
			return err
		}
		for _, r := range records {
			var msg Message
			require.NoError(t, json.Unmarshal(r.Payload, &msg))
			out = append(out, msg)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestConcurrentlyRoutedMessagesAreNotLost(t *testing.T) {
	store := &pausingStore{Store: memory.NewStore()}
	h := newHarnessOn(t, store, nil, nil, orderTemplate)
	e := h.engine.(*engineImpl)
	ctx := context.Background()

	id, err := h.engine.Start(ctx, "order", ptrMessage(order("place", "1", `{}`)))
	require.NoError(t, err)
	h.waitUnit(id, "awaitShipping", PhaseWaitingMessage)

	// the second message reads the route, then the first one consumes it and commits
	store.pauseAfterSelect("ship", func() {
		require.NoError(t, routeIn(ctx, e, "order", order("ship", "1", `{"carrier":"first"}`)))
	})
	require.NoError(t, routeIn(withPause(ctx), e, "order", order("ship", "1", `{"carrier":"second"}`)))

	desc := h.waitStatus(id, persistence.InstanceStatusCompletedOk)
	assert.JSONEq(t, `{"carrier":"first"}`, string(desc.Variables["shipment"]))

	queued := queuedMessages(t, e, "order", "ship")
	require.Len(t, queued, 1)
	assert.JSONEq(t, `{"carrier":"second"}`, string(queued[0].Body))
}

func TestMessageOnLeftoverRouteIsQueued(t *testing.T) {
	h := newHarness(t, nil, orderTemplate)
	e := h.engine.(*engineImpl)
	ctx := context.Background()

	id, err := h.engine.Start(ctx, "order", ptrMessage(order("place", "2", `{}`)))
	require.NoError(t, err)
	h.waitUnit(id, "awaitShipping", PhaseWaitingMessage)

	var route persistence.RouteRecord
	err = e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		routes, err := tx.SelectRoutes(ctx, "order", "ship")
		if err != nil {
			return err
		}
		require.Len(t, routes, 1)
		route = routes[0]
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.Terminate(ctx, id))
	h.waitStatus(id, persistence.InstanceStatusTerminated)

	// a route left behind by the ended instance
	err = e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		leftover := route
		leftover.RouteId = "leftover"
		return tx.InsertRoute(ctx, leftover)
	})
	require.NoError(t, err)

	require.NoError(t, routeIn(ctx, e, "order", order("ship", "2", `{"carrier":"late"}`)))

	queued := queuedMessages(t, e, "order", "ship")
	require.Len(t, queued, 1)
	assert.JSONEq(t, `{"carrier":"late"}`, string(queued[0].Body))

	err = e.sched.ExecTransaction(ctx, 0, func(ctx context.Context, tx *scheduler.Tx) error {
		routes, err := tx.SelectRoutes(ctx, "order", "ship")
		assert.Empty(t, routes)
		return err
	})
	require.NoError(t, err)
}
