// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package definition

import (
	"fmt"
	"time"
)

// Kind is the closed set of activity kinds the engine interprets
type Kind string

const (
	KindEmpty      Kind = "empty"
	KindSequence   Kind = "sequence"
	KindFlow       Kind = "flow"
	KindScope      Kind = "scope"
	KindReceive    Kind = "receive"
	KindInvoke     Kind = "invoke"
	KindThrow      Kind = "throw"
	KindWait       Kind = "wait"
	KindPick       Kind = "pick"
	KindCompensate Kind = "compensate"
	KindExit       Kind = "exit"
)

// Initiate tells a receive what to do with a correlation set
type Initiate string

const (
	// InitiateNo requires the set to be initialized already, and routes on it
	InitiateNo Initiate = "no"
	// InitiateYes initializes the set from the message, it must not be initialized yet
	InitiateYes Initiate = "yes"
	// InitiateJoin routes on the set when initialized, and initializes it otherwise
	InitiateJoin Initiate = "join"
)

type (
	// Activity is one node of a template's activity tree.
	// Which fields are meaningful depends on Kind.
	Activity struct {
		Kind Kind   `yaml:"kind"`
		Name string `yaml:"name"`

		// Children of a sequence or a flow
		Children []*Activity `yaml:"children,omitempty"`

		// Body of a scope
		Body *Activity `yaml:"body,omitempty"`
		// Catches of a scope, matched by fault name
		Catches []Catch `yaml:"catches,omitempty"`
		// CatchAll of a scope, for faults no catch matches
		CatchAll *Activity `yaml:"catchAll,omitempty"`
		// CompensationHandler of a scope, installed when the scope completes
		CompensationHandler *Activity `yaml:"compensationHandler,omitempty"`
		// FailureHandling on a scope is inherited by the invokes nested in it
		FailureHandling *FailureHandling `yaml:"failureHandling,omitempty"`

		// Operation of a receive or an invoke
		Operation string `yaml:"operation,omitempty"`
		// CreateInstance receives start new instances
		CreateInstance bool `yaml:"createInstance,omitempty"`
		// Correlations of a receive
		Correlations []CorrelationUse `yaml:"correlations,omitempty"`
		// RouteAll lets one message be accepted by every matching instance
		RouteAll bool `yaml:"routeAll,omitempty"`
		// Variable a receive stores the message into
		Variable string `yaml:"variable,omitempty"`

		// Partner of an invoke
		Partner string `yaml:"partner,omitempty"`
		// InputVariable is sent by an invoke, and the reply is stored in OutputVariable
		InputVariable  string `yaml:"inputVariable,omitempty"`
		OutputVariable string `yaml:"outputVariable,omitempty"`

		// FaultName of a throw
		FaultName string `yaml:"faultName,omitempty"`

		// Duration of a wait
		Duration time.Duration `yaml:"duration,omitempty"`

		// OnMessages of a pick, one per operation. The first message or the alarm wins
		OnMessages []*OnMessage `yaml:"onMessage,omitempty"`
		// OnAlarm of a pick fires unless a message comes first
		OnAlarm *OnAlarm `yaml:"onAlarm,omitempty"`

		// Target of a compensate is the name of the scope to compensate.
		// Empty compensates every completed scope nested in the enclosing scope
		Target string `yaml:"target,omitempty"`

		path string
	}

	Catch struct {
		FaultName string    `yaml:"faultName"`
		Activity  *Activity `yaml:"activity"`
	}

	// OnMessage is a branch of a pick, run with the message it waited for
	OnMessage struct {
		Operation    string           `yaml:"operation"`
		Correlations []CorrelationUse `yaml:"correlations,omitempty"`
		Variable     string           `yaml:"variable,omitempty"`
		// Activity is optional, the pick completes with the message alone
		Activity *Activity `yaml:"activity,omitempty"`

		receive *Activity
	}

	OnAlarm struct {
		Duration time.Duration `yaml:"duration"`
		Activity *Activity     `yaml:"activity,omitempty"`
	}

	CorrelationUse struct {
		Set      string   `yaml:"set"`
		Initiate Initiate `yaml:"initiate"`
	}

	// FailureHandling decides what happens when an invoke fails
	FailureHandling struct {
		// RetryFor is the number of automatic retries
		RetryFor int32 `yaml:"retryFor"`
		// RetryDelay is waited before each automatic retry
		RetryDelay time.Duration `yaml:"retryDelay"`
		// FaultOnFailure raises the failure fault instead of entering recovery
		FaultOnFailure bool `yaml:"faultOnFailure"`
	}
)

// Path locates the activity in its template
func (a *Activity) Path() string {
	return a.path
}

// DisplayName is the name, or the path for unnamed activities
func (a *Activity) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return string(a.Kind) + "@" + a.path
}

// Receive is the receive the branch waits with, set once the template is initialized
func (o *OnMessage) Receive() *Activity {
	return o.receive
}

// FindOnMessage returns the branch of a pick that takes the operation
func (a *Activity) FindOnMessage(operation string) (int, *OnMessage, bool) {
	for i, o := range a.OnMessages {
		if o.Operation == operation {
			return i, o, true
		}
	}
	return 0, nil, false
}

// FindCatch returns the handler for a fault, falling back to the catch all
func (a *Activity) FindCatch(faultName string) (*Activity, bool) {
	for _, c := range a.Catches {
		if c.FaultName == faultName {
			return c.Activity, true
		}
	}
	if a.CatchAll != nil {
		return a.CatchAll, true
	}
	return nil, false
}

func (a *Activity) validate(t *ProcessTemplate) error {
	switch a.Kind {
	case KindEmpty, KindExit:
	case KindSequence, KindFlow:
		for _, c := range a.Children {
			if c == nil {
				return fmt.Errorf("%v has an empty child", a.DisplayName())
			}
		}
	case KindScope:
		if a.Body == nil {
			return fmt.Errorf("scope %v must have a body", a.DisplayName())
		}
		for _, c := range a.Catches {
			if c.Activity == nil {
				return fmt.Errorf("catch of %v in scope %v must have an activity", c.FaultName, a.DisplayName())
			}
		}
	case KindReceive:
		if a.Operation == "" {
			return fmt.Errorf("receive %v must have an operation", a.DisplayName())
		}
		for _, c := range a.Correlations {
			if _, ok := t.CorrelationSet(c.Set); !ok {
				return fmt.Errorf("receive %v uses undeclared correlation set %v", a.DisplayName(), c.Set)
			}
			switch c.Initiate {
			case InitiateNo, InitiateYes, InitiateJoin:
			default:
				return fmt.Errorf("receive %v has invalid initiate %q for set %v", a.DisplayName(), c.Initiate, c.Set)
			}
		}
	case KindInvoke:
		if a.Partner == "" || a.Operation == "" {
			return fmt.Errorf("invoke %v must have a partner and an operation", a.DisplayName())
		}
	case KindThrow:
		if a.FaultName == "" {
			return fmt.Errorf("throw %v must have a faultName", a.DisplayName())
		}
	case KindWait:
		if a.Duration < 0 {
			return fmt.Errorf("wait %v must not have a negative duration", a.DisplayName())
		}
	case KindPick:
		if len(a.OnMessages) == 0 {
			return fmt.Errorf("pick %v must have an onMessage", a.DisplayName())
		}
		if a.CreateInstance {
			return fmt.Errorf("pick %v cannot create instances, use a receive", a.DisplayName())
		}
		seen := map[string]bool{}
		for _, o := range a.OnMessages {
			if o == nil || o.Operation == "" {
				return fmt.Errorf("onMessage of pick %v must have an operation", a.DisplayName())
			}
			if seen[o.Operation] {
				return fmt.Errorf("pick %v has two onMessage for operation %v", a.DisplayName(), o.Operation)
			}
			seen[o.Operation] = true
		}
		if a.OnAlarm != nil && a.OnAlarm.Duration < 0 {
			return fmt.Errorf("onAlarm of pick %v must not have a negative duration", a.DisplayName())
		}
	case KindCompensate:
	default:
		return fmt.Errorf("unknown activity kind %q at %v", a.Kind, a.path)
	}
	return nil
}
