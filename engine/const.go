// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"time"
)

// invokeLease is how long a partner invocation may take before it is made again
const invokeLease = time.Minute

// Command is what a RESUME job asks of an instance
type Command string

const (
	// CommandStep steps a READY instance for the first time
	CommandStep      Command = "step"
	CommandSuspend   Command = "suspend"
	CommandResume    Command = "resume"
	CommandTerminate Command = "terminate"
	CommandRecover   Command = "recover"
)

// job payloads, stored as JSON
type (
	resumePayload struct {
		Command Command        `json:"command"`
		UnitId  string         `json:"unitId,omitempty"`
		Action  RecoveryAction `json:"action,omitempty"`
	}

	// signalPayload is delivered to an endpoint, by TIMER and PARTNER_RESPONSE jobs
	signalPayload struct {
		Endpoint string `json:"endpoint"`
		Signal   Signal `json:"signal"`
	}

	invokePayload struct {
		Endpoint  string          `json:"endpoint"`
		Partner   string          `json:"partner"`
		Operation string          `json:"operation"`
		Request   json.RawMessage `json:"request,omitempty"`
		Attempt   int32           `json:"attempt"`
	}

	matcherPayload struct {
		RouteId   string `json:"routeId"`
		Operation string `json:"operation"`
	}

	myRoleInvokePayload struct {
		ProcessType string  `json:"processType"`
		Message     Message `json:"message"`
	}
)
