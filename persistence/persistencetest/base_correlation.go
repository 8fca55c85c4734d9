// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/common/uuid"
	"github.com/xcherryio/xflow/persistence"
)

func StoreRouteTest(t *testing.T, ass *assert.Assertions, store persistence.Store) {
	ctx := context.Background()
	operation := "route-" + uuid.NewString()
	instanceA, instanceB := uuid.NewString(), uuid.NewString()

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		ass.Nil(tx.InsertRoute(ctx, persistence.RouteRecord{
			RouteId: "a1", ProcessType: testProcessType, Operation: operation,
			KeySet: "@2[orderId~1]", InstanceId: instanceA, Endpoint: "e1",
		}))
		ass.Nil(tx.InsertRoute(ctx, persistence.RouteRecord{
			RouteId: "b1", ProcessType: testProcessType, Operation: operation,
			KeySet: "@2[orderId~2]", InstanceId: instanceB, Endpoint: "e7",
		}))
		ass.Nil(tx.InsertRoute(ctx, persistence.RouteRecord{
			RouteId: "a2", ProcessType: testProcessType, Operation: operation,
			KeySet: "@2", InstanceId: instanceA, Endpoint: "e2",
		}))
		ass.Nil(tx.InsertRoute(ctx, persistence.RouteRecord{
			RouteId: "other", ProcessType: "other-type", Operation: operation, InstanceId: instanceA,
		}))

		// visible inside the transaction that wrote them
		routes, err := tx.SelectRoutes(ctx, testProcessType, operation)
		ass.Nil(err)
		ass.Len(routes, 3)
	})

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		routes, err := tx.SelectRoutes(ctx, testProcessType, operation)
		ass.Nil(err)
		ass.Equal([]string{"a1", "b1", "a2"}, routeIds(routes))
		ass.Equal("@2[orderId~1]", routes[0].KeySet)
		ass.Equal("e1", routes[0].Endpoint)
		ass.True(routes[0].Seq < routes[1].Seq)

		deleted, err := tx.DeleteRoute(ctx, "b1")
		ass.Nil(err)
		ass.True(deleted)
		deleted, err = tx.DeleteRoute(ctx, "b1")
		ass.Nil(err)
		ass.False(deleted)
		routes, err = tx.SelectRoutes(ctx, testProcessType, operation)
		ass.Nil(err)
		ass.Equal([]string{"a1", "a2"}, routeIds(routes))
	})

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		ass.Nil(tx.DeleteInstanceRoutes(ctx, instanceA))
		routes, err := tx.SelectRoutes(ctx, testProcessType, operation)
		ass.Nil(err)
		ass.Empty(routes)
	})
}

func StoreMessageTest(t *testing.T, ass *assert.Assertions, store persistence.Store) {
	ctx := context.Background()
	operation := "message-" + uuid.NewString()
	now := time.Now().UTC()

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		for _, id := range []string{"m1", "m2"} {
			ass.Nil(tx.InsertMessage(ctx, persistence.MessageRecord{
				MessageId: id + operation, ProcessType: testProcessType, Operation: operation,
				KeySet: "@2[orderId~1]", Payload: []byte(`{}`), CreatedAt: now,
			}))
		}
	})

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		messages, err := tx.SelectMessages(ctx, testProcessType, operation)
		ass.Nil(err)
		ass.Len(messages, 2)
		ass.Equal("m1"+operation, messages[0].MessageId)

		deleted, err := tx.DeleteMessage(ctx, "m1"+operation)
		ass.Nil(err)
		ass.True(deleted)
		deleted, err = tx.DeleteMessage(ctx, "m1"+operation)
		ass.Nil(err)
		ass.False(deleted)
	})

	inTx(ctx, ass, store, func(tx persistence.Transaction) {
		messages, err := tx.SelectMessages(ctx, testProcessType, operation)
		ass.Nil(err)
		ass.Len(messages, 1)
		ass.Equal("m2"+operation, messages[0].MessageId)
	})
}

func routeIds(routes []persistence.RouteRecord) []string {
	var ids []string
	for _, r := range routes {
		ids = append(ids, r.RouteId)
	}
	return ids
}
