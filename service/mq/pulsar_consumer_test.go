// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/engine"
)

var testCfg = config.PulsarConfig{ProcessTypeProperty: "processType", OperationProperty: "operation"}

type delivererFunc func(ctx context.Context, processType string, message engine.Message) (string, error)

func (f delivererFunc) Deliver(ctx context.Context, processType string, message engine.Message) (string, error) {
	return f(ctx, processType, message)
}

func TestToMessage(t *testing.T) {
	processType, msg, err := toMessage(testCfg, map[string]string{
		"processType": "order",
		"operation":   "ship",
		"orderId":     "42",
	}, []byte(`{"carrier":"post"}`))
	require.NoError(t, err)
	assert.Equal(t, "order", processType)
	assert.Equal(t, "ship", msg.Operation)
	assert.Equal(t, map[string]string{"orderId": "42"}, msg.Properties)
	assert.JSONEq(t, `{"carrier":"post"}`, string(msg.Body))

	_, msg, err = toMessage(testCfg, map[string]string{"processType": "order", "operation": "ship"}, []byte("plain text"))
	require.NoError(t, err)
	assert.Nil(t, msg.Properties)
	assert.Equal(t, json.RawMessage(`"plain text"`), msg.Body)

	_, _, err = toMessage(testCfg, map[string]string{"operation": "ship"}, nil)
	assert.Error(t, err)
}

func TestHandleAcksOrRedelivers(t *testing.T) {
	props := map[string]string{"processType": "order", "operation": "ship"}
	logger := log.NewNopLogger()
	ctx := context.Background()

	var delivered []string
	ok := delivererFunc(func(ctx context.Context, processType string, message engine.Message) (string, error) {
		delivered = append(delivered, processType+"/"+message.Operation)
		return "job-1", nil
	})
	assert.True(t, handle(ctx, testCfg, ok, props, nil, logger))
	assert.Equal(t, []string{"order/ship"}, delivered)

	unknown := delivererFunc(func(ctx context.Context, processType string, message engine.Message) (string, error) {
		return "", fmt.Errorf("%w: order", definition.ErrTemplateNotFound)
	})
	assert.True(t, handle(ctx, testCfg, unknown, props, nil, logger))

	failing := delivererFunc(func(ctx context.Context, processType string, message engine.Message) (string, error) {
		return "", errors.New("database is down")
	})
	assert.False(t, handle(ctx, testCfg, failing, props, nil, logger))

	// invalid messages are dropped without delivery
	assert.True(t, handle(ctx, testCfg, failing, map[string]string{}, nil, logger))
}
