// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"

	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/engine"
	"github.com/xcherryio/xflow/persistence"
)

type ErrorWithStatus struct {
	StatusCode int
	Error      ApiErrorResponse
}

func NewErrorWithStatus(code int, details string) *ErrorWithStatus {
	return &ErrorWithStatus{
		StatusCode: code,
		Error: ApiErrorResponse{
			Detail: details,
		},
	}
}

// statusOf maps the errors of the engine to http status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, definition.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidRecoveryAction), errors.Is(err, engine.ErrNoReceive):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidStatus), errors.Is(err, engine.ErrActivityNotInRecovery),
		errors.Is(err, persistence.ErrInstanceLocked), errors.Is(err, persistence.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
