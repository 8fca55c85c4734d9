// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/xcherryio/xflow/common/httperror"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/service/async"
)

type remoteJobNotifier struct {
	url    string
	client *http.Client
	logger log.Logger
}

// NewRemoteJobNotifier notifies the async service at cfg.AsyncService.ClientAddress,
// for an API service that runs without the async service in the same process
func NewRemoteJobNotifier(cfg config.Config, logger log.Logger) JobNotifier {
	return &remoteJobNotifier{
		url:    cfg.AsyncService.ClientAddress + async.PathNotifyJobs,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// NotifyNewJobs is best effort in the background, the async service polls anyway
func (n *remoteJobNotifier) NotifyNewJobs() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, nil)
		if err != nil {
			n.logger.Error("failed to create request to notify remote jobs", tag.Value(n.url), tag.Error(err))
			return
		}
		resp, err := n.client.Do(req)
		if resp != nil {
			defer resp.Body.Close()
		}
		if httperror.CheckHttpResponseAndError(err, resp, n.logger) {
			statusCode := -1
			responseBody := "cannot read body from http response"
			if resp != nil {
				statusCode = resp.StatusCode
				if body, err := io.ReadAll(resp.Body); err == nil {
					responseBody = string(body)
				}
			}
			n.logger.Error("failed to notify remote jobs",
				tag.Value(n.url), tag.Error(err), tag.StatusCode(statusCode), tag.Message(responseBody))
		}
	}()
}
