// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

// Package partner is the message exchange with the services that invoke activities call.
package partner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type FailureType string

const (
	// FailureTypeCommunicationError is a failure to reach the partner or to get its reply
	FailureTypeCommunicationError FailureType = "COMMUNICATION_ERROR"
	// FailureTypeFormatError is a reply that could not be understood
	FailureTypeFormatError FailureType = "FORMAT_ERROR"
	FailureTypeOther       FailureType = "OTHER"
)

type (
	// Exchange is one outbound request to a partner
	Exchange struct {
		InstanceId string          `json:"instanceId"`
		Partner    string          `json:"partner"`
		Operation  string          `json:"operation"`
		Request    json.RawMessage `json:"request,omitempty"`
		// Attempt starts at 1 and is sent to the partner so that it can dedupe
		Attempt int32 `json:"attempt"`
	}

	// Failure is the error an Invoker returns when the exchange failed
	Failure struct {
		Type   FailureType `json:"type"`
		Reason string      `json:"reason"`
	}

	// Invoker delivers exchanges to partners. It may be called more than once for the
	// same attempt when the job carrying the call is redelivered.
	Invoker interface {
		Invoke(ctx context.Context, exchange Exchange) (json.RawMessage, error)
	}

	InvokerFunc func(ctx context.Context, exchange Exchange) (json.RawMessage, error)
)

func (f InvokerFunc) Invoke(ctx context.Context, exchange Exchange) (json.RawMessage, error) {
	return f(ctx, exchange)
}

func NewFailure(ft FailureType, format string, args ...interface{}) *Failure {
	return &Failure{Type: ft, Reason: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	return string(f.Type) + ": " + f.Reason
}

// AsFailure classifies any invoker error, errors that are not a *Failure are OTHER
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Type: FailureTypeOther, Reason: err.Error()}
}
