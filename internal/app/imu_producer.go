// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/imu"
)

// RunIMUProducer reads the frame IMU every IMU_SAMPLE_INTERVAL and
// publishes the raw samples to TOPIC_IMU for a logger running elsewhere.
func RunIMUProducer(ctx context.Context, cfg *config.Config) error {
	src, err := imuSource(cfg, slog.Default())
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDIMU, slog.Default())
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting publish loop")

	ticker := time.NewTicker(cfg.IMUInterval())
	defer ticker.Stop()

	var sent, failed uint64
	for {
		var t time.Time
		select {
		case <-ctx.Done():
			log.Printf("IMU producer stopped: sent=%d failed=%d", sent, failed)
			return nil
		case t = <-ticker.C:
		}

		raw, err := src.ReadRaw()
		if err != nil {
			failed++
			log.Printf("error reading IMU: %v", err)
			continue
		}
		raw.Source = "frame"

		if err := publishIMU(client, cfg.TopicIMU, raw); err != nil {
			failed++
			log.Printf("MQTT publish error (imu): %v", err)
			continue
		}
		sent++

		// one line per second at the default rate
		if sent%200 == 1 {
			log.Printf("%s tick: accel ax=%d ay=%d az=%d | gyro gx=%d gy=%d gz=%d | mag mx=%d my=%d mz=%d valid=%t",
				t.Format(time.RFC3339),
				raw.Ax, raw.Ay, raw.Az,
				raw.Gx, raw.Gy, raw.Gz,
				raw.Mx, raw.My, raw.Mz, raw.MagValid,
			)
		}
	}
}

func publishIMU(client mqtt.Client, topic string, raw imu.IMURaw) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	// QoS 0, not retained.
	token := client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}
