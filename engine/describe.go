// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"time"

	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/persistence"
)

type (
	InstanceDescription struct {
		InstanceId  string `json:"instanceId"`
		ProcessType string `json:"processType"`
		Status      string `json:"status"`
		Fault       *Fault `json:"fault,omitempty"`
		// Units are the running activities in creation order
		Units        []UnitDescription          `json:"units,omitempty"`
		Failures     []ActivityFailure          `json:"failures,omitempty"`
		Variables    map[string]json.RawMessage `json:"variables,omitempty"`
		Correlations map[string]string          `json:"correlations,omitempty"`
		Invocations  int32                      `json:"invocations"`
		// CompensationHandlers is the number of installed handlers not run yet
		CompensationHandlers int       `json:"compensationHandlers"`
		Version              int64     `json:"version"`
		CreatedAt            time.Time `json:"createdAt"`
		UpdatedAt            time.Time `json:"updatedAt"`
	}

	UnitDescription struct {
		Id        string    `json:"id"`
		Activity  string    `json:"activity"`
		Name      string    `json:"name"`
		Kind      string    `json:"kind"`
		Phase     Phase     `json:"phase"`
		WaitingOn []Channel `json:"waitingOn,omitempty"`
		// PendingSignals are queued in the mailboxes of the unit, while the instance is suspended
		PendingSignals int `json:"pendingSignals,omitempty"`
	}

	// ActivityFailure is an activity waiting for a recovery action
	ActivityFailure struct {
		InstanceId string           `json:"instanceId"`
		ActivityId string           `json:"activityId"`
		Activity   string           `json:"activity"`
		Name       string           `json:"name"`
		Failure    Failure          `json:"failure"`
		Actions    []RecoveryAction `json:"actions"`
	}
)

func describe(tmpl *definition.ProcessTemplate, rec *persistence.InstanceRecord, st *ContinuationState) *InstanceDescription {
	m := newMachine(tmpl, rec.InstanceId, st, rec.Status, st.Clock)
	desc := &InstanceDescription{
		InstanceId:           rec.InstanceId,
		ProcessType:          rec.ProcessType,
		Status:               rec.Status.String(),
		Fault:                st.Fault,
		Variables:            st.Variables,
		Correlations:         st.Correlations,
		Invocations:          st.Invocations,
		CompensationHandlers: st.Ledger.Len(),
		Version:              rec.Version,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
	for _, u := range m.unitsInOrder() {
		kind, a := m.kindOf(u)
		name := "process"
		if a != nil {
			name = a.DisplayName()
		}
		pending := 0
		for _, ch := range []Channel{ChannelControl, ChannelKids, ChannelExternal} {
			if ep, ok := st.Endpoints[endpointId(u.Id, ch)]; ok {
				pending += len(ep.Mailbox)
			}
		}
		desc.Units = append(desc.Units, UnitDescription{
			Id:             u.Id,
			Activity:       u.Activity,
			Name:           name,
			Kind:           string(kind),
			Phase:          u.Phase,
			WaitingOn:      u.WaitingOn,
			PendingSignals: pending,
		})
	}
	desc.Failures = failures(m)
	return desc
}

func failures(m *machine) []ActivityFailure {
	var out []ActivityFailure
	for _, u := range m.unitsInOrder() {
		if u.Phase != PhaseRecovery || u.Failure == nil {
			continue
		}
		name := u.Activity
		if a := m.activityOf(u); a != nil {
			name = a.DisplayName()
		}
		out = append(out, ActivityFailure{
			InstanceId: m.instanceId,
			ActivityId: u.Id,
			Activity:   u.Activity,
			Name:       name,
			Failure:    *u.Failure,
			Actions:    []RecoveryAction{RecoveryActionRetry, RecoveryActionCancel, RecoveryActionFault},
		})
	}
	return out
}
