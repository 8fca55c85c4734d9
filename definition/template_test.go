// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package definition

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderTemplate = `
type: order
correlationSets:
  - name: orderId
    properties: [orderId]
failureHandling:
  retryFor: 2
  retryDelay: 1s
root:
  kind: sequence
  name: main
  children:
    - kind: receive
      name: placeOrder
      operation: placeOrder
      createInstance: true
      variable: order
      correlations:
        - set: orderId
          initiate: "yes"
    - kind: scope
      name: payment
      body:
        kind: invoke
        name: charge
        partner: billing
        operation: charge
        inputVariable: order
      catches:
        - faultName: "{foo}bar"
          activity:
            kind: empty
      catchAll:
        kind: exit
      compensationHandler:
        kind: invoke
        partner: billing
        operation: refund
    - kind: wait
      duration: 90s
    - kind: receive
      name: cancel
      operation: cancel
      correlations:
        - set: orderId
`

func TestParseTemplate(t *testing.T) {
	tpl, err := Parse([]byte(orderTemplate))
	require.NoError(t, err)

	assert.Equal(t, "order", tpl.Type)
	assert.Equal(t, int32(2), tpl.FailureHandling.RetryFor)
	assert.Equal(t, time.Second, tpl.FailureHandling.RetryDelay)

	main, ok := tpl.Activity("r")
	require.True(t, ok)
	assert.Equal(t, KindSequence, main.Kind)
	assert.Len(t, main.Children, 4)

	scope, ok := tpl.Activity("r.1")
	require.True(t, ok)
	assert.Equal(t, "payment", scope.Name)
	body, ok := tpl.Activity("r.1.b")
	require.True(t, ok)
	assert.Equal(t, "charge", body.Name)
	handler, ok := tpl.Activity("r.1.h")
	require.True(t, ok)
	assert.Equal(t, "refund", handler.Operation)

	wait, _ := tpl.Activity("r.2")
	assert.Equal(t, 90*time.Second, wait.Duration)
	assert.Equal(t, "wait@r.2", wait.DisplayName())

	cancel, _ := tpl.Activity("r.3")
	assert.Equal(t, InitiateNo, cancel.Correlations[0].Initiate)

	creating, ok := tpl.CreatingReceive("placeOrder")
	require.True(t, ok)
	assert.Equal(t, "placeOrder", creating.Name)
	_, ok = tpl.CreatingReceive("cancel")
	assert.False(t, ok)
	assert.Len(t, tpl.Receives("cancel"), 1)
}

func TestFindCatch(t *testing.T) {
	tpl, err := Parse([]byte(orderTemplate))
	require.NoError(t, err)
	scope, _ := tpl.Activity("r.1")

	c, ok := scope.FindCatch("{foo}bar")
	require.True(t, ok)
	assert.Equal(t, KindEmpty, c.Kind)

	c, ok = scope.FindCatch("{foo}other")
	require.True(t, ok)
	assert.Equal(t, KindExit, c.Kind)

	scope.CatchAll = nil
	_, ok = scope.FindCatch("{foo}other")
	assert.False(t, ok)
}

func TestParsePick(t *testing.T) {
	tpl, err := Parse([]byte(`
type: quote
correlationSets:
  - name: quoteId
    properties: [quoteId]
root:
  kind: pick
  name: answer
  onMessage:
    - operation: accept
      variable: acceptance
      correlations: [{set: quoteId, initiate: join}]
      activity: {kind: empty, name: book}
    - operation: decline
  onAlarm:
    duration: 24h
    activity: {kind: throw, faultName: expired}
`))
	require.NoError(t, err)

	pick, _ := tpl.Activity("r")
	i, accept, ok := pick.FindOnMessage("accept")
	require.True(t, ok)
	assert.Equal(t, 0, i)
	_, _, ok = pick.FindOnMessage("ship")
	assert.False(t, ok)

	receive := accept.Receive()
	assert.Equal(t, KindReceive, receive.Kind)
	assert.Equal(t, "r.m0", receive.Path())
	assert.Equal(t, "acceptance", receive.Variable)
	assert.Equal(t, InitiateJoin, receive.Correlations[0].Initiate)
	assert.Equal(t, []*Activity{receive}, tpl.Receives("accept"))
	assert.Len(t, tpl.Receives("decline"), 1)
	_, ok = tpl.CreatingReceive("accept")
	assert.False(t, ok)

	book, ok := tpl.Activity("r.m0.a")
	require.True(t, ok)
	assert.Equal(t, "book", book.Name)
	alarm, ok := tpl.Activity("r.al")
	require.True(t, ok)
	assert.Equal(t, KindThrow, alarm.Kind)
	assert.Equal(t, 24*time.Hour, pick.OnAlarm.Duration)
}

func TestEmptyTemplate(t *testing.T) {
	tpl, err := Parse([]byte("type: empty\n"))
	require.NoError(t, err)
	assert.Nil(t, tpl.Root)
}

func TestInvalidTemplates(t *testing.T) {
	cases := map[string]string{
		"missing type":           "root:\n  kind: empty\n",
		"unknown kind":           "type: x\nroot:\n  kind: dance\n",
		"scope without body":     "type: x\nroot:\n  kind: scope\n",
		"throw without name":     "type: x\nroot:\n  kind: throw\n",
		"undeclared set":         "type: x\nroot:\n  kind: receive\n  operation: op\n  correlations:\n    - set: nope\n",
		"invoke without partner": "type: x\nroot:\n  kind: invoke\n  operation: op\n",
		"pick without message":   "type: x\nroot:\n  kind: pick\n",
		"pick on one operation":  "type: x\nroot:\n  kind: pick\n  onMessage:\n    - operation: a\n    - operation: a\n",
		"pick creating":          "type: x\nroot:\n  kind: pick\n  createInstance: true\n  onMessage:\n    - operation: a\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "order.yaml"), []byte(orderTemplate), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yml"), []byte("type: empty\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a template"), 0o644))

	store, err := LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "order"}, store.ListTypes())

	_, err = store.GetTemplate("missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestSampleDefinitions(t *testing.T) {
	store, err := LoadDirectory("../config/definitions")
	require.NoError(t, err)
	tmpl, err := store.GetTemplate("order")
	require.NoError(t, err)

	creating, ok := tmpl.CreatingReceive("place")
	require.True(t, ok)
	assert.Equal(t, "placeOrder", creating.Name)
	assert.Len(t, tmpl.Receives("pay"), 1)
	assert.Equal(t, int32(3), tmpl.FailureHandling.RetryFor)
}
