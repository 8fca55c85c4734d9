// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/common/uuid"
	"github.com/xcherryio/xflow/correlation"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/persistence"
	"github.com/xcherryio/xflow/scheduler"
)

// route delivers an inbound message to the receives waiting for it. Routes are read and
// consumed in the same transaction that hands the message to the instance, so a message
// is never matched twice. When nothing waits, the message starts a new instance if a
// receive creates instances on the operation, and is queued for a later receive otherwise.
func (e *engineImpl) route(ctx context.Context, tx *scheduler.Tx, job scheduler.Job, p myRoleInvokePayload) error {
	tmpl, err := e.templates.GetTemplate(p.ProcessType)
	if err != nil {
		return e.dropJob(job, err)
	}
	msg := p.Message
	logger := e.logger.WithTags(tag.ProcessType(p.ProcessType), tag.Operation(msg.Operation), tag.JobId(job.JobId))
	if len(tmpl.Receives(msg.Operation)) == 0 {
		logger.Warn("message dropped, no receive for the operation")
		return nil
	}

	keys := messageKeySet(tmpl, msg)
	delivered, err := e.deliverToRoutes(ctx, tx, job, tmpl, keys, msg, logger)
	if err != nil || delivered {
		return err
	}

	if _, ok := tmpl.CreatingReceive(msg.Operation); ok {
		instanceId, err := e.createFromMessage(ctx, tx, tmpl, msg, job.ScheduledAt)
		if err != nil {
			return err
		}
		logger.Info("instance created by message", tag.InstanceId(instanceId))
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	logger.Info("message queued, no receive is waiting for it", tag.CorrelationKeySet(keys.CanonicalForm()))
	return tx.InsertMessage(ctx, persistence.MessageRecord{
		MessageId:   uuid.NewString(),
		ProcessType: p.ProcessType,
		Operation:   msg.Operation,
		KeySet:      keys.CanonicalForm(),
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
}

// maxRouteSelections bounds how often routes are selected again after finding
// the selected ones consumed by concurrent transactions
const maxRouteSelections = 10

// errRouteStale means the receive behind a route is gone, the route is left over
var errRouteStale = errors.New("route does not lead to a waiting receive")

// deliverToRoutes hands the message to the receives whose routes it selects. A selected
// route can turn out consumed by a concurrent transaction, or lead to a receive that is
// no longer waiting. Such routes are dropped and the routes are selected again, so the
// message is never lost to a stale route.
func (e *engineImpl) deliverToRoutes(
	ctx context.Context, tx *scheduler.Tx, job scheduler.Job, tmpl *definition.ProcessTemplate,
	keys correlation.KeySet, msg Message, logger log.Logger,
) (bool, error) {
	for i := 0; i < maxRouteSelections; i++ {
		records, err := tx.SelectRoutes(ctx, tmpl.Type, msg.Operation)
		if err != nil {
			return false, err
		}
		routes := make([]correlation.Route, 0, len(records))
		byId := make(map[string]persistence.RouteRecord, len(records))
		for _, r := range records {
			routes = append(routes, correlation.Route{Id: r.RouteId, KeySet: correlation.ParseKeySet(r.KeySet)})
			byId[r.RouteId] = r
		}

		selected := correlation.Select(keys, routes, tmpl.RouteAll(msg.Operation))
		if len(selected) == 0 {
			return false, nil
		}
		delivered := 0
		for _, r := range selected {
			rec := byId[r.Id]
			deleted, err := tx.DeleteRoute(ctx, rec.RouteId)
			if err != nil {
				return false, err
			}
			if !deleted {
				logger.Debug("route consumed concurrently, selecting again", tag.ID(rec.RouteId))
				continue
			}
			ok, err := e.deliverToRoute(ctx, tx, job, rec, msg)
			if err != nil {
				return false, err
			}
			if !ok {
				logger.Warn("dropping a route whose receive is no longer waiting",
					tag.InstanceId(rec.InstanceId), tag.Endpoint(rec.Endpoint))
				continue
			}
			delivered++
			logger.Debug("message routed",
				tag.InstanceId(rec.InstanceId), tag.Endpoint(rec.Endpoint), tag.CorrelationKeySet(r.KeySet.CanonicalForm()))
		}
		if delivered > 0 {
			return true, nil
		}
	}
	return false, fmt.Errorf("routes of operation %v kept changing while routing", msg.Operation)
}

// deliverToRoute returns false when the instance cannot take the message at the endpoint
func (e *engineImpl) deliverToRoute(
	ctx context.Context, tx *scheduler.Tx, job scheduler.Job, rec persistence.RouteRecord, msg Message,
) (bool, error) {
	delivered := false
	err := e.advance(ctx, tx, rec.InstanceId, job.ScheduledAt, func(m *machine) error {
		if !m.deliver(rec.Endpoint, Signal{Kind: SignalMessage, Message: &msg}) {
			return errRouteStale
		}
		delivered = true
		return nil
	})
	switch {
	case errors.Is(err, errRouteStale), errors.Is(err, persistence.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return delivered, nil
}

// createFromMessage creates an instance and steps it in the routing transaction, so the
// receives it registers are visible to the next message
func (e *engineImpl) createFromMessage(
	ctx context.Context, tx *scheduler.Tx, tmpl *definition.ProcessTemplate, msg Message, now time.Time,
) (string, error) {
	instanceId, err := e.insertInstance(ctx, tx, tmpl, now)
	if err != nil {
		return "", err
	}
	err = e.advance(ctx, tx, instanceId, now, func(m *machine) error {
		m.st.StartMessage = &msg
		m.status = persistence.InstanceStatusActive
		return nil
	})
	return instanceId, err
}

// match hands the oldest queued message routable to a newly registered receive over to it
func (e *engineImpl) match(ctx context.Context, tx *scheduler.Tx, job scheduler.Job, p matcherPayload) error {
	rec, err := tx.LockInstance(ctx, job.InstanceId)
	if err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		return nil
	}

	routes, err := tx.SelectRoutes(ctx, rec.ProcessType, p.Operation)
	if err != nil {
		return err
	}
	var route *persistence.RouteRecord
	for i := range routes {
		if routes[i].RouteId == p.RouteId {
			route = &routes[i]
			break
		}
	}
	if route == nil {
		return nil
	}

	messages, err := tx.SelectMessages(ctx, rec.ProcessType, p.Operation)
	if err != nil {
		return err
	}
	routeKeys := correlation.ParseKeySet(route.KeySet)
	for _, queued := range messages {
		if !correlation.ParseKeySet(queued.KeySet).IsRoutableTo(routeKeys, false) {
			continue
		}
		var msg Message
		if err := json.Unmarshal(queued.Payload, &msg); err != nil {
			e.logger.Error("dropping unreadable queued message", tag.ID(queued.MessageId), tag.Error(err))
			if _, err := tx.DeleteMessage(ctx, queued.MessageId); err != nil {
				return err
			}
			continue
		}
		routeDeleted, err := tx.DeleteRoute(ctx, route.RouteId)
		if err != nil {
			return err
		}
		if !routeDeleted {
			// consumed by a routed message meanwhile, the queued message waits for the next receive
			return nil
		}
		deleted, err := tx.DeleteMessage(ctx, queued.MessageId)
		if err != nil {
			return err
		}
		if !deleted {
			// rolls back the route deletion, the job retries against the remaining queue
			return fmt.Errorf("queued message %v consumed concurrently", queued.MessageId)
		}
		e.logger.Debug("queued message matched",
			tag.InstanceId(rec.InstanceId), tag.ID(queued.MessageId), tag.Endpoint(route.Endpoint))
		return e.advance(ctx, tx, rec.InstanceId, job.ScheduledAt, func(m *machine) error {
			m.deliver(route.Endpoint, Signal{Kind: SignalMessage, Message: &msg})
			return nil
		})
	}
	return nil
}
