// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/xcherryio/xflow/common/log"
	"github.com/xcherryio/xflow/common/log/tag"
	"github.com/xcherryio/xflow/config"
	"github.com/xcherryio/xflow/definition"
	"github.com/xcherryio/xflow/engine"
)

// Consumer feeds inbound messages from a message queue to the engine
type Consumer interface {
	Start() error
	Stop(ctx context.Context) error
}

// Deliverer is the part of the engine a consumer hands messages to
type Deliverer interface {
	Deliver(ctx context.Context, processType string, message engine.Message) (string, error)
}

type pulsarConsumer struct {
	cfg       config.PulsarConfig
	deliverer Deliverer
	logger    log.Logger

	client   pulsar.Client
	consumer pulsar.Consumer
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPulsarConsumer consumes cfg.TopicsPattern with a shared subscription, so every node
// of the async service can run one
func NewPulsarConsumer(cfg config.PulsarConfig, deliverer Deliverer, logger log.Logger) Consumer {
	return &pulsarConsumer{
		cfg:       cfg,
		deliverer: deliverer,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (p *pulsarConsumer) Start() error {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: p.cfg.URL})
	if err != nil {
		return err
	}
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		TopicsPattern:    p.cfg.TopicsPattern,
		SubscriptionName: p.cfg.SubscriptionName,
		Type:             pulsar.Shared,
	})
	if err != nil {
		client.Close()
		return err
	}
	p.client = client
	p.consumer = consumer

	p.wg.Add(1)
	go p.processMessages()
	return nil
}

func (p *pulsarConsumer) Stop(ctx context.Context) error {
	close(p.stopCh)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.consumer != nil {
		p.consumer.Close()
	}
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

func (p *pulsarConsumer) processMessages() {
	defer p.wg.Done()
	msgCh := p.consumer.Chan()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				p.logger.Info("message channel is closed")
				return
			}
			logger := p.logger.WithTags(tag.ID(msg.Message.ID().String()), tag.Key(msg.Message.Key()))
			if handle(context.Background(), p.cfg, p.deliverer, msg.Message.Properties(), msg.Message.Payload(), logger) {
				if err := p.consumer.Ack(msg); err != nil {
					logger.Error("failed to ack the message after processing", tag.Error(err))
				}
			} else {
				p.consumer.Nack(msg)
			}
		case <-p.stopCh:
			p.logger.Info("message processor is closed")
			return
		}
	}
}

// handle delivers one queue message, it returns false when the message should be redelivered
func handle(
	ctx context.Context, cfg config.PulsarConfig, deliverer Deliverer,
	properties map[string]string, payload []byte, logger log.Logger,
) bool {
	processType, msg, err := toMessage(cfg, properties, payload)
	if err != nil {
		logger.Error("dropping invalid queue message", tag.Error(err))
		return true
	}
	jobId, err := deliverer.Deliver(ctx, processType, msg)
	switch {
	case err == nil:
		logger.Debug("queue message accepted", tag.ProcessType(processType), tag.Operation(msg.Operation), tag.JobId(jobId))
		return true
	case errors.Is(err, definition.ErrTemplateNotFound), errors.Is(err, engine.ErrNoReceive):
		logger.Warn("dropping queue message no process accepts", tag.ProcessType(processType), tag.Error(err))
		return true
	}
	logger.Error("failed to deliver queue message, will be redelivered", tag.Error(err))
	return false
}

// toMessage reads the process type and the operation from the configured properties.
// The other properties are the message properties used for correlation.
// A payload that is not JSON is kept as a JSON string.
func toMessage(cfg config.PulsarConfig, properties map[string]string, payload []byte) (string, engine.Message, error) {
	processType := properties[cfg.ProcessTypeProperty]
	operation := properties[cfg.OperationProperty]
	if processType == "" || operation == "" {
		return "", engine.Message{}, fmt.Errorf("properties %v and %v are required",
			cfg.ProcessTypeProperty, cfg.OperationProperty)
	}

	msg := engine.Message{Operation: operation}
	for k, v := range properties {
		if k == cfg.ProcessTypeProperty || k == cfg.OperationProperty {
			continue
		}
		if msg.Properties == nil {
			msg.Properties = map[string]string{}
		}
		msg.Properties[k] = v
	}

	if len(payload) > 0 {
		if json.Valid(payload) {
			msg.Body = json.RawMessage(payload)
		} else {
			body, err := json.Marshal(string(payload))
			if err != nil {
				return "", engine.Message{}, err
			}
			msg.Body = body
		}
	}
	return processType, msg, nil
}
