// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
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

func (h *ginHandler) StartInstance(c *gin.Context) {
	var req StartInstanceRequest
	if !h.bind(c, &req, "StartInstance") {
		return
	}
	resp, errResp := h.svc.StartInstance(c.Request.Context(), req)
	respond(c, resp, errResp)
}

func (h *ginHandler) DeliverMessage(c *gin.Context) {
	var req DeliverMessageRequest
	if !h.bind(c, &req, "DeliverMessage") {
		return
	}
	resp, errResp := h.svc.DeliverMessage(c.Request.Context(), req)
	respond(c, resp, errResp)
}

func (h *ginHandler) DescribeInstance(c *gin.Context) {
	var req InstanceRequest
	if !h.bind(c, &req, "DescribeInstance") {
		return
	}
	resp, errResp := h.svc.DescribeInstance(c.Request.Context(), req)
	respond(c, resp, errResp)
}

func (h *ginHandler) ListFailures(c *gin.Context) {
	var req InstanceRequest
	if !h.bind(c, &req, "ListFailures") {
		return
	}
	resp, errResp := h.svc.ListFailures(c.Request.Context(), req)
	respond(c, resp, errResp)
}

func (h *ginHandler) RecoverActivity(c *gin.Context) {
	var req RecoverActivityRequest
	if !h.bind(c, &req, "RecoverActivity") {
		return
	}
	respondEmpty(c, h.svc.RecoverActivity(c.Request.Context(), req))
}

func (h *ginHandler) SuspendInstance(c *gin.Context) {
	var req InstanceRequest
	if !h.bind(c, &req, "SuspendInstance") {
		return
	}
	respondEmpty(c, h.svc.SuspendInstance(c.Request.Context(), req))
}

func (h *ginHandler) ResumeInstance(c *gin.Context) {
	var req InstanceRequest
	if !h.bind(c, &req, "ResumeInstance") {
		return
	}
	respondEmpty(c, h.svc.ResumeInstance(c.Request.Context(), req))
}

func (h *ginHandler) TerminateInstance(c *gin.Context) {
	var req InstanceRequest
	if !h.bind(c, &req, "TerminateInstance") {
		return
	}
	respondEmpty(c, h.svc.TerminateInstance(c.Request.Context(), req))
}

func (h *ginHandler) bind(c *gin.Context, req interface{}, api string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		invalidRequestSchema(c, err)
		return false
	}
	h.logger.Debug("received "+api+" API request", tag.Value(h.toJson(req)))
	return true
}

func (h *ginHandler) toJson(req any) string {
	str, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("error when serializing request", tag.Error(err), tag.DefaultValue(req))
		return ""
	}
	return string(str)
}

func respond(c *gin.Context, resp interface{}, errResp *ErrorWithStatus) {
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func respondEmpty(c *gin.Context, errResp *ErrorWithStatus) {
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Error)
		return
	}
	c.Status(http.StatusOK)
}

func invalidRequestSchema(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ApiErrorResponse{
		Detail: "invalid request schema: " + err.Error(),
	})
}
