// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package httperror

import (
	"net/http"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
)

// CheckHttpResponseAndError returns true when the call failed, either on the
// transport or with a non 2xx status
func CheckHttpResponseAndError(err error, httpResp *http.Response, logger log.Logger) bool {
	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}
	logger.Debug("check http response and error", tag.Error(err), tag.StatusCode(status))

	if err != nil || (httpResp != nil && (httpResp.StatusCode < 200 || httpResp.StatusCode >= 300)) {
		return true
	}
	return false
}
