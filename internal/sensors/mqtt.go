// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/imu"
	"github.com/relabs-tech/bikepath_logger/internal/motion"
)

// SubscribeIMU feeds raw IMU samples published on topic to submit. Samples
// are stamped on arrival since the producer's clock is not ours.
func SubscribeIMU(client mqtt.Client, topic string, clock Clock, submit func(motion.Reading), logger *slog.Logger) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var raw imu.IMURaw
		if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
			logger.Warn("sensors: bad IMU payload", "topic", msg.Topic(), "error", err)
			return
		}
		for _, r := range raw.Readings(clock.NowNanos()) {
			submit(r)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}
