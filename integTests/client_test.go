// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/xflow/engine"
	"github.com/xcherryio/xflow/service/api"
)

func post(t *testing.T, path string, req interface{}, resp interface{}) int {
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpResp, err := http.Post("http://"+apiAddress+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer httpResp.Body.Close()
	if resp != nil && httpResp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(httpResp.Body).Decode(resp))
	}
	return httpResp.StatusCode
}

func startOrder(t *testing.T, orderId string, body string) string {
	var resp api.StartInstanceResponse
	status := post(t, api.PathStartInstance, api.StartInstanceRequest{
		ProcessType: "order",
		Message: &engine.Message{
			Operation:  "place",
			Properties: map[string]string{"orderId": orderId},
			Body:       json.RawMessage(body),
		},
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp.InstanceId)
	return resp.InstanceId
}

func deliver(t *testing.T, operation, orderId, body string) {
	var resp api.DeliverMessageResponse
	status := post(t, api.PathDeliverMessage, api.DeliverMessageRequest{
		ProcessType: "order",
		Message: engine.Message{
			Operation:  operation,
			Properties: map[string]string{"orderId": orderId},
			Body:       json.RawMessage(body),
		},
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, resp.JobId)
}

func describe(t *testing.T, instanceId string) *engine.InstanceDescription {
	var desc engine.InstanceDescription
	status := post(t, api.PathDescribeInstance, api.InstanceRequest{InstanceId: instanceId}, &desc)
	require.Equal(t, http.StatusOK, status)
	return &desc
}

func waitForStatus(t *testing.T, instanceId string, status string) *engine.InstanceDescription {
	var desc *engine.InstanceDescription
	require.Eventually(t, func() bool {
		desc = describe(t, instanceId)
		return desc.Status == status
	}, 10*time.Second, 50*time.Millisecond, "instance %v never reached %v", instanceId, status)
	return desc
}

func waitForActivity(t *testing.T, instanceId string, name string) {
	require.Eventually(t, func() bool {
		for _, u := range describe(t, instanceId).Units {
			if u.Name == name {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond, "activity %v of %v never ran", name, instanceId)
}
