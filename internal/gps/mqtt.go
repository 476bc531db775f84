// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"encoding/json"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SubscribeFixes feeds fixes published on topic into t.
func SubscribeFixes(client mqtt.Client, topic string, t *Tracker, logger *slog.Logger) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			logger.Warn("gps: bad fix payload", "topic", msg.Topic(), "error", err)
			return
		}
		if !t.Update(f) {
			logger.Debug("gps: void fix ignored", "validity", f.Validity)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}
