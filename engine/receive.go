// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"

	"github.com/xcherryio/xflow/correlation"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/persistence"
)

func correlationViolation(a *definition.Activity, set string) *Fault {
	return &Fault{Name: definition.CorrelationViolationFaultName, Detail: set, Activity: a.Path()}
}

// routeKeys is the key set a receive waits under. It raises a correlation violation
// when a set must be initialized already and is not, or must not be and is.
func (m *machine) routeKeys(a *definition.Activity) (correlation.KeySet, *Fault) {
	keys := correlation.NewKeySet()
	for _, c := range a.Correlations {
		canonical, initialized := m.st.Correlations[c.Set]
		switch c.Initiate {
		case definition.InitiateNo:
			if !initialized {
				return keys, correlationViolation(a, c.Set)
			}
			keys = keys.Add(correlation.ParseKey(canonical))
		case definition.InitiateYes:
			if initialized {
				return keys, correlationViolation(a, c.Set)
			}
		case definition.InitiateJoin:
			if initialized {
				keys = keys.Add(correlation.ParseKey(canonical))
			}
		}
	}
	return keys, nil
}

func (m *machine) startReceive(u *Unit, a *definition.Activity) {
	keys, fault := m.routeKeys(a)
	if fault != nil {
		m.finish(u, SignalFaulted, fault)
		return
	}

	if a.CreateInstance && m.st.StartMessage != nil && m.st.StartMessage.Operation == a.Operation {
		msg := *m.st.StartMessage
		m.st.StartMessage = nil
		m.consumeMessage(u, a, msg)
		return
	}

	u.RouteId = m.instanceId + "/" + u.Id
	m.routes = append(m.routes, persistence.RouteRecord{
		RouteId:     u.RouteId,
		ProcessType: m.tmpl.Type,
		Operation:   a.Operation,
		KeySet:      keys.CanonicalForm(),
		InstanceId:  m.instanceId,
		Endpoint:    endpointId(u.Id, ChannelExternal),
	})
	m.jobs = append(m.jobs, jobRequest{
		Type:    persistence.JobTypeMatcher,
		Payload: matcherPayload{RouteId: u.RouteId, Operation: a.Operation},
	})
	u.Phase = PhaseWaitingMessage
	m.wait(u, ChannelExternal)
}

// consumeMessage completes the receive with the message
func (m *machine) consumeMessage(u *Unit, a *definition.Activity, msg Message) {
	if fault := m.acceptMessage(a, msg); fault != nil {
		m.finish(u, SignalFaulted, fault)
		return
	}
	m.finish(u, SignalCompleted, nil)
}

// acceptMessage initializes the correlation sets the receive initiates from the message
// and stores the message body
func (m *machine) acceptMessage(a *definition.Activity, msg Message) *Fault {
	if m.st.Correlations == nil {
		m.st.Correlations = map[string]string{}
	}
	initialized := map[string]string{}
	for _, c := range a.Correlations {
		if c.Initiate == definition.InitiateNo {
			continue
		}
		if _, ok := m.st.Correlations[c.Set]; ok {
			if c.Initiate == definition.InitiateYes {
				return correlationViolation(a, c.Set)
			}
			continue
		}
		cs, _ := m.tmpl.CorrelationSet(c.Set)
		key, ok := messageKey(cs, msg.Properties)
		if !ok {
			return correlationViolation(a, c.Set)
		}
		initialized[c.Set] = key.CanonicalForm()
	}
	// sets are written once, and only when the whole receive succeeds
	for set, key := range initialized {
		m.st.Correlations[set] = key
	}

	if a.Variable != "" {
		if m.st.Variables == nil {
			m.st.Variables = map[string]json.RawMessage{}
		}
		body := msg.Body
		if len(body) == 0 {
			body = json.RawMessage("null")
		}
		m.st.Variables[a.Variable] = body
	}
	return nil
}

// messageKey builds the key of a correlation set from message properties,
// it is false when a property is missing
func messageKey(cs definition.CorrelationSet, properties map[string]string) (correlation.Key, bool) {
	values := make([]string, 0, len(cs.Properties))
	for _, p := range cs.Properties {
		v, ok := properties[p]
		if !ok {
			return correlation.Key{}, false
		}
		values = append(values, v)
	}
	return correlation.NewKey(cs.Name, values...), true
}

// messageKeySet is every key the message carries for the sets of the template
func messageKeySet(tmpl *definition.ProcessTemplate, msg Message) correlation.KeySet {
	keys := correlation.NewKeySet()
	for _, cs := range tmpl.CorrelationSets {
		if k, ok := messageKey(cs, msg.Properties); ok {
			keys = keys.Add(k)
		}
	}
	return keys
}
