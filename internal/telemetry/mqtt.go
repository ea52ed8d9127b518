// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connect opens an MQTT session.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Publisher queues messages so real-time loops never wait on the broker.
// When the queue is full new messages are dropped.
type Publisher struct {
	client mqtt.Client
	queue  chan message
}

func NewPublisher(client mqtt.Client, depth int) *Publisher {
	return &Publisher{
		client: client,
		queue:  make(chan message, depth),
	}
}

// JSON marshals v and queues it as a retained message.
func (p *Publisher) JSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("json marshal error (%s): %v", topic, err)
		return
	}
	p.Raw(topic, payload, true)
}

// Raw queues payload as is.
func (p *Publisher) Raw(topic string, payload []byte, retained bool) {
	select {
	case p.queue <- message{topic, payload, retained}:
	default:
		log.Printf("mqtt: queue full, dropped %s", topic)
	}
}

// Run publishes queued messages until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-p.queue:
			if token := p.client.Publish(m.topic, 0, m.retained, m.payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (%s): %v", m.topic, token.Error())
			}
		}
	}
}

// SubscribeJSON decodes every message on topic into a fresh T.
func SubscribeJSON[T any](client mqtt.Client, topic string, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s unmarshal error: %v", topic, err)
			return
		}
		fn(v)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("subscribed to %s", topic)
	return nil
}

// Subscribe delivers raw payloads.
func Subscribe(client mqtt.Client, topic string, fn func(payload []byte)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("subscribed to %s", topic)
	return nil
}
