// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/xcherryio/xflow/compensation"
	"github.com/xcherryio/xflow/partner"
)

// Phase is where a unit is in the state machine of its activity kind
type Phase string

const (
	PhaseStart Phase = "start"
	// PhaseRunning is a structured activity waiting for its children
	PhaseRunning Phase = "running"
	// PhaseCompensating runs compensation handlers one at a time
	PhaseCompensating Phase = "compensating"
	// PhaseCatching runs the fault handler of a scope
	PhaseCatching       Phase = "catching"
	PhaseWaitingMessage Phase = "waitingMessage"
	PhaseWaitingTimer   Phase = "waitingTimer"
	PhaseInvoking       Phase = "invoking"
	PhaseWaitingRetry   Phase = "waitingRetry"
	PhaseRecovery       Phase = "recovery"
)

// Channel names the endpoints every unit owns
type Channel string

const (
	// ChannelControl carries termination requests from the parent
	ChannelControl Channel = "control"
	// ChannelKids carries completion notices of children
	ChannelKids Channel = "kids"
	// ChannelExternal carries messages, timer fires, partner responses and recovery actions
	ChannelExternal Channel = "external"
)

type SignalKind string

const (
	SignalCompleted  SignalKind = "completed"
	SignalFaulted    SignalKind = "faulted"
	SignalTerminated SignalKind = "terminated"
	SignalTerminate  SignalKind = "terminate"
	SignalMessage    SignalKind = "message"
	SignalTimer      SignalKind = "timer"
	SignalResponse   SignalKind = "response"
	SignalRecover    SignalKind = "recover"
)

type RecoveryAction string

const (
	RecoveryActionRetry  RecoveryAction = "retry"
	RecoveryActionCancel RecoveryAction = "cancel"
	RecoveryActionFault  RecoveryAction = "fault"
)

type (
	// ContinuationState is everything an instance needs to continue after a restart.
	// It is written at the end of every transaction that touches the instance.
	ContinuationState struct {
		// Clock never goes backwards, it is the time of the last step
		Clock  time.Time `json:"clock"`
		NextId int64     `json:"nextId"`

		Units map[string]*Unit `json:"units"`
		// Ready is the queue of units to step, in order
		Ready     []string             `json:"ready,omitempty"`
		Endpoints map[string]*Endpoint `json:"endpoints,omitempty"`

		Scopes map[string]*ScopeInstance `json:"scopes,omitempty"`
		Ledger compensation.Ledger       `json:"ledger"`

		Variables map[string]json.RawMessage `json:"variables,omitempty"`
		// Correlations maps an initialized correlation set to its key, in canonical form
		Correlations map[string]string `json:"correlations,omitempty"`

		// StartMessage is consumed by the receive that creates the instance
		StartMessage *Message `json:"startMessage,omitempty"`
		// Fault is set when the instance completed with a fault
		Fault *Fault `json:"fault,omitempty"`
		// Invocations counts partner invoke attempts
		Invocations int32 `json:"invocations,omitempty"`
	}

	// Unit is one running activity
	Unit struct {
		Id  string `json:"id"`
		Seq int64  `json:"seq"`
		// Activity is the path of the activity in the template, empty for the process unit
		Activity string `json:"activity"`
		Parent   string `json:"parent,omitempty"`
		// Scope is the scope instance the unit runs in
		Scope string `json:"scope"`
		// OwnScope is the scope instance a scope unit opened
		OwnScope  string    `json:"ownScope,omitempty"`
		Phase     Phase     `json:"phase"`
		WaitingOn []Channel `json:"waitingOn,omitempty"`
		StartedAt time.Time `json:"startedAt"`

		Children []string `json:"children,omitempty"`
		// Next is the position of the running child of a sequence
		Next        int    `json:"next,omitempty"`
		Fault       *Fault `json:"fault,omitempty"`
		Terminating bool   `json:"terminating,omitempty"`
		// Compensations are the scope ids whose handlers are left to run
		Compensations []string `json:"compensations,omitempty"`

		RouteId string `json:"routeId,omitempty"`
		// RouteIds are the routes of a pick, one per onMessage
		RouteIds []string `json:"routeIds,omitempty"`
		JobId    string   `json:"jobId,omitempty"`

		Attempts    int32    `json:"attempts,omitempty"`
		AutoRetries int32    `json:"autoRetries,omitempty"`
		ManualRetry bool     `json:"manualRetry,omitempty"`
		Failure     *Failure `json:"failure,omitempty"`
	}

	// Endpoint is a persisted mailbox owned by one unit
	Endpoint struct {
		Owner   string   `json:"owner"`
		Mailbox []Signal `json:"mailbox,omitempty"`
	}

	Signal struct {
		Kind    SignalKind      `json:"kind"`
		From    string          `json:"from,omitempty"`
		Fault   *Fault          `json:"fault,omitempty"`
		Message *Message        `json:"message,omitempty"`
		Reply   json.RawMessage `json:"reply,omitempty"`
		Failure *Failure        `json:"failure,omitempty"`
		Attempt int32           `json:"attempt,omitempty"`
		Action  RecoveryAction  `json:"action,omitempty"`
	}

	ScopeInstance struct {
		Id        string                  `json:"id"`
		Activity  string                  `json:"activity"`
		Parent    string                  `json:"parent,omitempty"`
		Ancestors []compensation.ScopeRef `json:"ancestors,omitempty"`
		Start     time.Time               `json:"start"`
		End       *time.Time              `json:"end,omitempty"`
	}

	// Fault is a named business fault. It is a value of the process, never a Go error
	Fault struct {
		Name   string `json:"name"`
		Detail string `json:"detail,omitempty"`
		// Activity is the path of the activity that raised it
		Activity string `json:"activity,omitempty"`
	}

	// Failure is a technical failure of an activity, pending recovery or retry
	Failure struct {
		Type     partner.FailureType `json:"type"`
		Reason   string              `json:"reason"`
		Attempts int32               `json:"attempts"`
		At       time.Time           `json:"at"`
	}

	// Message is an inbound message for a receive
	Message struct {
		Operation string `json:"operation"`
		// Properties are what correlation keys are built from
		Properties map[string]string `json:"properties,omitempty"`
		Body       json.RawMessage   `json:"body,omitempty"`
	}
)

func newContinuationState(now time.Time) *ContinuationState {
	return &ContinuationState{
		Clock:     now,
		Units:     map[string]*Unit{},
		Endpoints: map[string]*Endpoint{},
		Scopes:    map[string]*ScopeInstance{},
	}
}

func decodeState(data []byte) (*ContinuationState, error) {
	st := &ContinuationState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	if st.Units == nil {
		st.Units = map[string]*Unit{}
	}
	if st.Endpoints == nil {
		st.Endpoints = map[string]*Endpoint{}
	}
	if st.Scopes == nil {
		st.Scopes = map[string]*ScopeInstance{}
	}
	return st, nil
}

func (st *ContinuationState) encode() ([]byte, error) {
	return json.Marshal(st)
}

func (st *ContinuationState) newId(prefix string) (string, int64) {
	st.NextId++
	return prefix + strconv.FormatInt(st.NextId, 10), st.NextId
}

// advanceClock moves the clock to now unless that would move it backwards
func (st *ContinuationState) advanceClock(now time.Time) time.Time {
	if now.After(st.Clock) {
		st.Clock = now.UTC()
	}
	return st.Clock
}

func endpointId(unitId string, ch Channel) string {
	return unitId + "/" + string(ch)
}

func (f *Fault) String() string {
	if f.Detail == "" {
		return f.Name
	}
	return f.Name + ": " + f.Detail
}
