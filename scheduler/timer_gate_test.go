// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/common/clock"
	"github.com/xcherryio/xflow/common/log"
)

func TestTimerGateFiresEarliestUpdate(t *testing.T) {
	gate := NewLocalTimerGate(log.NewNopLogger(), clock.NewRealTimeSource())
	defer gate.Close()

	start := time.Now()
	assert.True(t, gate.Update(start.Add(time.Hour)))
	// a later time does not replace an earlier one
	assert.False(t, gate.Update(start.Add(2*time.Hour)))
	assert.True(t, gate.FireAfter(start.Add(time.Minute)))
	assert.True(t, gate.Update(start.Add(20*time.Millisecond)))
	assert.False(t, gate.FireAfter(start.Add(time.Minute)))

	select {
	case <-gate.FireChan():
		assert.True(t, time.Since(start) >= 20*time.Millisecond)
	case <-time.After(5 * time.Second):
		assert.Fail(t, "timer gate did not fire")
	}
}

func TestTimerGateWaitsRelativeToTimeSource(t *testing.T) {
	now := time.Now()
	timeSource := clock.NewEventTimeSource().Update(now.Add(-time.Hour))
	gate := NewLocalTimerGate(log.NewNopLogger(), timeSource)
	defer gate.Close()

	// an hour ahead of the time source, although due by the wall clock
	gate.Update(now)
	select {
	case <-gate.FireChan():
		assert.Fail(t, "timer gate fired by the wall clock")
	case <-time.After(100 * time.Millisecond):
	}

	timeSource.Update(now)
	assert.True(t, gate.Update(now.Add(-time.Minute)))
	select {
	case <-gate.FireChan():
	case <-time.After(5 * time.Second):
		assert.Fail(t, "timer gate did not fire")
	}
}
