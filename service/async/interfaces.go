// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package async

import "context"

type Server interface {
	// Start will start running on the background
	Start() error
	Stop(ctx context.Context) error
}

// Service runs the job scheduler with the engine as its processor
type Service interface {
	Start() error
	// NotifyNewJobs makes the scheduler poll now, for jobs written by the API service
	NotifyNewJobs()
	Stop(ctx context.Context) error
}
