// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/xcherryio/xflow/common/log"
)

type countingService struct {
	notified atomic.Int32
}

func (s *countingService) Start() error {
	return nil
}

func (s *countingService) NotifyNewJobs() {
	s.notified.Add(1)
}

func (s *countingService) Stop(ctx context.Context) error {
	return nil
}

func TestNotifyJobs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &countingService{}
	router := NewGinRouter(svc, log.NewNopLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, PathNotifyJobs, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"success"}`, w.Body.String())
	assert.Equal(t, int32(1), svc.notified.Load())
}
