// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/engine"
	"github.com/xcherryio/xflow/scheduler"
)

type asyncService struct {
	sched  scheduler.Scheduler
	engine engine.Engine
	logger log.Logger
}

func NewAsyncServiceImpl(sched scheduler.Scheduler, eng engine.Engine, logger log.Logger) Service {
	return &asyncService{
		sched:  sched,
		engine: eng,
		logger: logger,
	}
}

func (a asyncService) Start() error {
	if err := a.sched.Start(a.engine); err != nil {
		a.logger.Error("fail to start the job scheduler", tag.Error(err))
		return err
	}
	return nil
}

func (a asyncService) NotifyNewJobs() {
	a.sched.NotifyNewJobs()
}

func (a asyncService) Stop(ctx context.Context) error {
	return a.sched.Stop(ctx)
}
