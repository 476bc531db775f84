// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bikepath_logger/internal/config"
	"github.com/relabs-tech/bikepath_logger/internal/features"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
	"github.com/relabs-tech/bikepath_logger/internal/sink"
)

// RunConsoleMQTT prints records, logger status and GPS fixes as they are
// published, until ctx is canceled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, slog.Default())
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	subs := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicRecords, formatRecord},
		{cfg.TopicStatus, formatStatus},
		{cfg.TopicGPS, formatFix},
	}
	for _, s := range subs {
		if err := subscribePrint(client, s.topic, os.Stdout, s.format); err != nil {
			return err
		}
		log.Printf("console: subscribed to %s", s.topic)
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func subscribePrint(client mqtt.Client, topic string, w io.Writer, format func([]byte) (string, error)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		line, err := format(msg.Payload())
		if err != nil {
			log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
			return
		}
		fmt.Fprintln(w, line)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func formatRecord(payload []byte) (string, error) {
	var r features.Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[REC ] #%-5d %s lat=%.6f lon=%.6f speed=%5.1fkm/h n=%-3d accZ=%6.3f σ=%6.3f pitch=%6.3f roll=%6.3f",
		r.Sequence, r.ImageFile, r.Latitude, r.Longitude, r.SpeedKmh, r.SampleCount,
		r.AccelZ.Mean, r.AccelZ.StandardDeviation, r.Pitch.Mean, r.Roll.Mean,
	), nil
}

func formatStatus(payload []byte) (string, error) {
	var s sink.Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf("[STAT] state=%-22s persisted=%d skipped=%d session=%s",
		s.State, s.Persisted, s.Skipped, s.SessionID), nil
}

func formatFix(payload []byte) (string, error) {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[GPS ] time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
	), nil
}
