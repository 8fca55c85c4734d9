// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xcherryio/xflow/common/httperror"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
)

const (
	HeaderInstanceId = "X-Xflow-Instance-Id"
	HeaderAttempt    = "X-Xflow-Attempt"

	maxReplyBytes = 4 << 20
)

type httpInvoker struct {
	partners map[string]config.PartnerConfig
	client   *http.Client
	logger   log.Logger
}

// NewHTTPInvoker posts the request of an exchange as JSON to <baseUrl>/<operation>
// of the partner, and takes the JSON body of a 2xx response as the reply
func NewHTTPInvoker(partners map[string]config.PartnerConfig, logger log.Logger) Invoker {
	return &httpInvoker{
		partners: partners,
		client:   &http.Client{},
		logger:   logger,
	}
}

func (h *httpInvoker) Invoke(ctx context.Context, exchange Exchange) (json.RawMessage, error) {
	cfg, ok := h.partners[exchange.Partner]
	if !ok {
		return nil, NewFailure(FailureTypeOther, "partner %v is not configured", exchange.Partner)
	}
	if cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.InvokeTimeout)
		defer cancel()
	}

	body := exchange.Request
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	url := FixPartnerUrl(strings.TrimRight(cfg.BaseUrl, "/") + "/" + exchange.Operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFailure(FailureTypeOther, "cannot build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderInstanceId, exchange.InstanceId)
	req.Header.Set(HeaderAttempt, strconv.Itoa(int(exchange.Attempt)))

	resp, err := h.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if httperror.CheckHttpResponseAndError(err, resp, h.logger) {
		if err != nil {
			return nil, NewFailure(FailureTypeCommunicationError, "%v", err)
		}
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		h.logger.Info("partner returned an error status",
			tag.Partner(exchange.Partner), tag.Operation(exchange.Operation), tag.StatusCode(resp.StatusCode))
		return nil, NewFailure(FailureTypeOther, "status %v: %s", resp.StatusCode, detail)
	}

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, NewFailure(FailureTypeCommunicationError, "cannot read reply: %v", err)
	}
	if len(bytes.TrimSpace(reply)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(reply) {
		return nil, NewFailure(FailureTypeFormatError, "reply is not valid JSON")
	}
	return reply, nil
}
