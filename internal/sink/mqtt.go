// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/features"
)

// Status is the live state published next to the records.
type Status struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Persisted uint64 `json:"persisted"`
	Skipped   uint64 `json:"skipped"`
	Time      int64  `json:"time_ms"`
}

// MQTT publishes records and status as JSON.
type MQTT struct {
	client      mqtt.Client
	recordTopic string
	statusTopic string
	timeout     time.Duration
}

// NewMQTT returns a publisher on an already connected client.
func NewMQTT(client mqtt.Client, recordTopic, statusTopic string) *MQTT {
	return &MQTT{
		client:      client,
		recordTopic: recordTopic,
		statusTopic: statusTopic,
		timeout:     5 * time.Second,
	}
}

// AppendRecord publishes r with QoS 1.
func (m *MQTT) AppendRecord(r features.Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return m.publish(m.recordTopic, 1, false, payload)
}

// PublishStatus publishes s as a retained message.
func (m *MQTT) PublishStatus(s Status) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	return m.publish(m.statusTopic, 0, true, payload)
}

func (m *MQTT) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, m.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
