// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xcherryio/xflow/common/log"
)

type ginHandler struct {
	logger log.Logger
	svc    Service
}

func newGinHandler(svc Service, logger log.Logger) *ginHandler {
	return &ginHandler{
		logger: logger,
		svc:    svc,
	}
}

func (h *ginHandler) NotifyJobs(c *gin.Context) {
	h.logger.Debug("received NotifyJobs request")
	h.svc.NotifyNewJobs()
	successRespond(c)
}

func successRespond(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]string{
		"message": "success",
	})
}
