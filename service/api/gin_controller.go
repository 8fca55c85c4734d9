// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/xcherryio/xflow/common/log"
)

const (
	PathStartInstance     = "/api/v1/xflow/instances/start"
	PathDeliverMessage    = "/api/v1/xflow/messages/deliver"
	PathDescribeInstance  = "/api/v1/xflow/instances/describe"
	PathListFailures      = "/api/v1/xflow/instances/failures"
	PathRecoverActivity   = "/api/v1/xflow/instances/recover"
	PathSuspendInstance   = "/api/v1/xflow/instances/suspend"
	PathResumeInstance    = "/api/v1/xflow/instances/resume"
	PathTerminateInstance = "/api/v1/xflow/instances/terminate"
)

// NewGinRouter routes the API paths to svc
func NewGinRouter(svc Service, logger log.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handler := newGinHandler(svc, logger)

	router.POST(PathStartInstance, handler.StartInstance)
	router.POST(PathDeliverMessage, handler.DeliverMessage)
	router.POST(PathDescribeInstance, handler.DescribeInstance)
	router.POST(PathListFailures, handler.ListFailures)
	router.POST(PathRecoverActivity, handler.RecoverActivity)
	router.POST(PathSuspendInstance, handler.SuspendInstance)
	router.POST(PathResumeInstance, handler.ResumeInstance)
	router.POST(PathTerminateInstance, handler.TerminateInstance)

	return router
}
