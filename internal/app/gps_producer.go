// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
)

// RunGPSProducer opens the GPS serial port, decodes NMEA sentences, and
// publishes every combined fix as JSON to TOPIC_GPS.
func RunGPSProducer(ctx context.Context, cfg *config.Config) error {
	// ---- 1) Connect to MQTT broker ----
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS, slog.Default())
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// ---- 2) Stream fixes from the serial port ----
	sc := gps.SerialConfig{Port: cfg.GPSSerialPort, BaudRate: uint(cfg.GPSBaudRate)}
	log.Printf("GPS producer reading %s at %d baud", sc.Port, sc.BaudRate)

	var published uint64
	return gps.ReadSerial(ctx, sc, func(f gps.Fix) {
		if err := publishFix(client, cfg.TopicGPS, f); err != nil {
			log.Printf("GPS publish error: %v", err)
			return
		}
		published++
		if published%60 == 1 {
			log.Printf("published GPS fix #%d: lat=%.6f lon=%.6f speed=%.1fkn validity=%s sats=%d",
				published, f.Latitude, f.Longitude, f.SpeedKnots, f.Validity, f.Satellites)
		}
	})
}

// publishFix publishes f retained, so late subscribers get the last fix.
func publishFix(client mqtt.Client, topic string, f gps.Fix) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}
