// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package definition

import (
	"fmt"
	"strconv"
)

const rootPath = "r"

// FailureFaultName is raised when an activity failure is turned into a process fault
const FailureFaultName = "{urn:xflow:failure}activityFailure"

// CorrelationViolationFaultName is raised on misuse of a correlation set
const CorrelationViolationFaultName = "{urn:xflow:bpel}correlationViolation"

type (
	// ProcessTemplate is the immutable definition instances of a process type run.
	// It is shared read only by all instances once loaded.
	ProcessTemplate struct {
		Type            string           `yaml:"type"`
		CorrelationSets []CorrelationSet `yaml:"correlationSets,omitempty"`
		// FailureHandling is the default for invokes not covered by a scope
		FailureHandling *FailureHandling `yaml:"failureHandling,omitempty"`
		// Root is the activity tree. An absent root is the empty tree
		Root *Activity `yaml:"root,omitempty"`

		activities map[string]*Activity
		receives   map[string][]*Activity
	}

	// CorrelationSet declares the message properties a key is made of, in order
	CorrelationSet struct {
		Name       string   `yaml:"name"`
		Properties []string `yaml:"properties"`
	}
)

// Init indexes and validates the template. It must be called once before the
// template is shared.
func (t *ProcessTemplate) Init() error {
	if t.Type == "" {
		return fmt.Errorf("process template must have a type")
	}
	seen := map[string]bool{}
	for _, cs := range t.CorrelationSets {
		if cs.Name == "" || len(cs.Properties) == 0 {
			return fmt.Errorf("correlation set of %v must have a name and properties", t.Type)
		}
		if seen[cs.Name] {
			return fmt.Errorf("correlation set %v is declared twice in %v", cs.Name, t.Type)
		}
		seen[cs.Name] = true
	}

	t.activities = map[string]*Activity{}
	t.receives = map[string][]*Activity{}
	if t.Root == nil {
		return nil
	}
	return t.index(t.Root, rootPath)
}

func (t *ProcessTemplate) index(a *Activity, path string) error {
	a.path = path
	t.activities[path] = a
	for i := range a.Correlations {
		if a.Correlations[i].Initiate == "" {
			a.Correlations[i].Initiate = InitiateNo
		}
	}
	if err := a.validate(t); err != nil {
		return fmt.Errorf("invalid process template %v: %w", t.Type, err)
	}
	if a.Kind == KindReceive {
		t.receives[a.Operation] = append(t.receives[a.Operation], a)
	}

	for i, c := range a.Children {
		if err := t.index(c, path+"."+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	if a.Body != nil {
		if err := t.index(a.Body, path+".b"); err != nil {
			return err
		}
	}
	for i, c := range a.Catches {
		if err := t.index(c.Activity, path+".c"+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	if a.CatchAll != nil {
		if err := t.index(a.CatchAll, path+".ca"); err != nil {
			return err
		}
	}
	if a.CompensationHandler != nil {
		if err := t.index(a.CompensationHandler, path+".h"); err != nil {
			return err
		}
	}
	for i, o := range a.OnMessages {
		o.receive = &Activity{
			Kind:         KindReceive,
			Name:         a.Name,
			Operation:    o.Operation,
			Correlations: o.Correlations,
			Variable:     o.Variable,
		}
		if err := t.index(o.receive, path+".m"+strconv.Itoa(i)); err != nil {
			return err
		}
		if o.Activity != nil {
			if err := t.index(o.Activity, path+".m"+strconv.Itoa(i)+".a"); err != nil {
				return err
			}
		}
	}
	if a.OnAlarm != nil && a.OnAlarm.Activity != nil {
		if err := t.index(a.OnAlarm.Activity, path+".al"); err != nil {
			return err
		}
	}
	return nil
}

// Activity looks up an activity by its path
func (t *ProcessTemplate) Activity(path string) (*Activity, bool) {
	a, ok := t.activities[path]
	return a, ok
}

func (t *ProcessTemplate) CorrelationSet(name string) (CorrelationSet, bool) {
	for _, cs := range t.CorrelationSets {
		if cs.Name == name {
			return cs, true
		}
	}
	return CorrelationSet{}, false
}

// Receives returns the receives of an operation in template order
func (t *ProcessTemplate) Receives(operation string) []*Activity {
	return t.receives[operation]
}

// CreatingReceive returns the receive that starts a new instance on the operation, if any
func (t *ProcessTemplate) CreatingReceive(operation string) (*Activity, bool) {
	for _, r := range t.receives[operation] {
		if r.CreateInstance {
			return r, true
		}
	}
	return nil, false
}

// RouteAll is true when a receive of the operation accepts broadcast delivery
func (t *ProcessTemplate) RouteAll(operation string) bool {
	for _, r := range t.receives[operation] {
		if r.RouteAll {
			return true
		}
	}
	return false
}
