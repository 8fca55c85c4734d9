// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"math"
	"time"

	"github.com/xcherryio/xflow/config"
)

// GetNextBackoff returns how long to wait before the next attempt of a job that failed
// completedAttempts times. The policy must have its defaults set.
func GetNextBackoff(
	completedAttempts int32, firstAttempt time.Time, policy config.RetryPolicy,
) (nextBackoff time.Duration, shouldRetry bool) {
	if policy.MaximumAttempts > 0 && completedAttempts >= policy.MaximumAttempts {
		return 0, false
	}
	if policy.MaximumAttemptsDuration > 0 && firstAttempt.Add(policy.MaximumAttemptsDuration).Before(time.Now()) {
		return 0, false
	}
	next := float64(policy.InitialInterval) * math.Pow(float64(policy.BackoffCoefficient), float64(completedAttempts-1))
	if next > float64(policy.MaximumInterval) {
		return policy.MaximumInterval, true
	}
	return time.Duration(next), true
}
