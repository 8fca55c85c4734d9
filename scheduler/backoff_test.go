// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/config"
)

func TestGetNextBackoff(t *testing.T) {
	policy := config.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    5 * time.Second,
	}
	now := time.Now()

	var backoffs []time.Duration
	for attempts := int32(1); attempts <= 5; attempts++ {
		backoff, shouldRetry := GetNextBackoff(attempts, now, policy)
		assert.True(t, shouldRetry)
		backoffs = append(backoffs, backoff)
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, backoffs)
}

func TestGetNextBackoffMaximumAttempts(t *testing.T) {
	policy := config.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}

	_, shouldRetry := GetNextBackoff(2, time.Now(), policy)
	assert.True(t, shouldRetry)
	_, shouldRetry = GetNextBackoff(3, time.Now(), policy)
	assert.False(t, shouldRetry)
}

func TestGetNextBackoffMaximumDuration(t *testing.T) {
	policy := config.RetryPolicy{
		InitialInterval:         time.Second,
		BackoffCoefficient:      2,
		MaximumInterval:         time.Minute,
		MaximumAttemptsDuration: time.Minute,
	}

	_, shouldRetry := GetNextBackoff(1, time.Now().Add(-30*time.Second), policy)
	assert.True(t, shouldRetry)
	_, shouldRetry = GetNextBackoff(1, time.Now().Add(-2*time.Minute), policy)
	assert.False(t, shouldRetry)
}
