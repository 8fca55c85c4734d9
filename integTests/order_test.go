// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/xflow/engine"
	"github.com/xcherryio/xflow/service/api"
)

func uniqueOrderId(t *testing.T) string {
	return fmt.Sprintf("%v-%v", t.Name(), time.Now().UnixNano())
}

func TestOrderCompletesAfterPayment(t *testing.T) {
	orderId := uniqueOrderId(t)
	instanceId := startOrder(t, orderId, `{"item":"book"}`)

	waitForActivity(t, instanceId, "awaitPayment")
	assert.Equal(t, []string{"ship"}, shipping.callsOf(instanceId))

	deliver(t, "pay", orderId, `{"amount":12}`)
	desc := waitForStatus(t, instanceId, "COMPLETED_OK")

	assert.Nil(t, desc.Fault)
	assert.Empty(t, desc.Units)
	assert.Equal(t, int32(1), desc.Invocations)

	var shipment struct {
		TrackingId string `json:"trackingId"`
	}
	require.NoError(t, json.Unmarshal(desc.Variables["shipment"], &shipment))
	assert.Equal(t, "T-"+instanceId, shipment.TrackingId)
	assert.JSONEq(t, `{"amount":12}`, string(desc.Variables["payment"]))
}

func TestPaymentIsRoutedByOrderId(t *testing.T) {
	first := uniqueOrderId(t) + "-a"
	second := uniqueOrderId(t) + "-b"
	firstId := startOrder(t, first, `{}`)
	secondId := startOrder(t, second, `{}`)
	waitForActivity(t, firstId, "awaitPayment")
	waitForActivity(t, secondId, "awaitPayment")

	deliver(t, "pay", second, `{"amount":2}`)
	waitForStatus(t, secondId, "COMPLETED_OK")
	assert.Equal(t, "ACTIVE", describe(t, firstId).Status)

	deliver(t, "pay", first, `{"amount":1}`)
	waitForStatus(t, firstId, "COMPLETED_OK")
}

func TestSuspendResumeAndTerminateOrder(t *testing.T) {
	orderId := uniqueOrderId(t)
	instanceId := startOrder(t, orderId, `{}`)
	waitForActivity(t, instanceId, "awaitPayment")

	require.Equal(t, http.StatusOK, post(t, api.PathSuspendInstance, api.InstanceRequest{InstanceId: instanceId}, nil))
	waitForStatus(t, instanceId, "SUSPENDED")

	require.Equal(t, http.StatusOK, post(t, api.PathResumeInstance, api.InstanceRequest{InstanceId: instanceId}, nil))
	waitForStatus(t, instanceId, "ACTIVE")

	require.Equal(t, http.StatusOK, post(t, api.PathTerminateInstance, api.InstanceRequest{InstanceId: instanceId}, nil))
	desc := waitForStatus(t, instanceId, "TERMINATED")
	assert.Empty(t, desc.Units)
}

func TestRequestErrors(t *testing.T) {
	status := post(t, api.PathDescribeInstance, api.InstanceRequest{InstanceId: "does-not-exist"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = post(t, api.PathStartInstance, api.StartInstanceRequest{
		ProcessType: "no-such-process",
		Message:     &engine.Message{Operation: "place"},
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = post(t, api.PathDeliverMessage, api.DeliverMessageRequest{
		ProcessType: "order",
		Message:     engine.Message{Operation: "refund"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
