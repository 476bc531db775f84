// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/relabs-tech/bikepath_logger/internal/features"
)

// ClickHouseConfig holds the connection settings.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

const createRecordsTable = `
	CREATE TABLE IF NOT EXISTS capture_records (
		timestamp DateTime64(3),
		session_id String,
		sequence UInt64,
		latitude Float64,
		longitude Float64,
		altitude Float64,
		speed_kmh Float32,
		speed_accuracy_mps Float32,
		location_time_ms Int64,
		exposure_start_ns Int64,
		exposure_duration_ns Int64,
		frame_window_ns Int64,
		window_start_ns Int64,
		window_end_ns Int64,
		sample_count UInt32,
		accel_x_mean Float32, accel_x_variance Float32, accel_x_std_dev Float32,
		accel_y_mean Float32, accel_y_variance Float32, accel_y_std_dev Float32,
		accel_z_mean Float32, accel_z_variance Float32, accel_z_std_dev Float32,
		pitch_mean Float32, pitch_variance Float32, pitch_std_dev Float32,
		roll_mean Float32, roll_variance Float32, roll_std_dev Float32,
		azimuth_delta_deg Float32,
		pitch_delta_deg Float32,
		roll_delta_deg Float32,
		image_file String,
		accel_z_series Array(Float32),
		pitch_series Array(Float32),
		offsets_ns Array(Int64)
	) ENGINE = MergeTree()
	ORDER BY (session_id, timestamp)
	PARTITION BY toYYYYMM(timestamp)
`

const insertRecord = `
	INSERT INTO capture_records (
		timestamp, session_id, sequence, latitude, longitude, altitude,
		speed_kmh, speed_accuracy_mps, location_time_ms,
		exposure_start_ns, exposure_duration_ns, frame_window_ns, window_start_ns, window_end_ns,
		sample_count,
		accel_x_mean, accel_x_variance, accel_x_std_dev,
		accel_y_mean, accel_y_variance, accel_y_std_dev,
		accel_z_mean, accel_z_variance, accel_z_std_dev,
		pitch_mean, pitch_variance, pitch_std_dev,
		roll_mean, roll_variance, roll_std_dev,
		azimuth_delta_deg, pitch_delta_deg, roll_delta_deg,
		image_file,
		accel_z_series, pitch_series, offsets_ns
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// ClickHouse stores records in the capture_records table.
type ClickHouse struct {
	conn   driver.Conn
	logger *slog.Logger
}

// NewClickHouse connects, pings and creates the table if needed.
func NewClickHouse(ctx context.Context, c ClickHouseConfig, logger *slog.Logger) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{c.Addr},
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createRecordsTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger.Info("sink: connected to ClickHouse", "addr", c.Addr, "database", c.Database)
	return &ClickHouse{conn: conn, logger: logger}, nil
}

// AppendRecord inserts r.
func (c *ClickHouse) AppendRecord(r features.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.conn.Exec(ctx, insertRecord, recordArgs(r)...); err != nil {
		return fmt.Errorf("failed to insert record %d: %w", r.Sequence, err)
	}
	return nil
}

// Close closes the connection.
func (c *ClickHouse) Close() error { return c.conn.Close() }

func recordArgs(r features.Record) []any {
	return []any{
		time.UnixMilli(r.TimestampMillis).UTC(),
		r.SessionID,
		r.Sequence,
		r.Latitude, r.Longitude, r.Altitude,
		r.SpeedKmh, r.SpeedAccuracy, r.LocationTimeMillis,
		r.ExposureStart, r.ExposureDuration, r.FrameWindow, r.WindowStart, r.WindowEnd,
		uint32(r.SampleCount),
		r.AccelX.Mean, r.AccelX.Variance, r.AccelX.StandardDeviation,
		r.AccelY.Mean, r.AccelY.Variance, r.AccelY.StandardDeviation,
		r.AccelZ.Mean, r.AccelZ.Variance, r.AccelZ.StandardDeviation,
		r.Pitch.Mean, r.Pitch.Variance, r.Pitch.StandardDeviation,
		r.Roll.Mean, r.Roll.Variance, r.Roll.StandardDeviation,
		r.AzimuthDelta, r.PitchDelta, r.RollDelta,
		r.ImageFile,
		nonNil(r.AccelZSeries), nonNil(r.PitchSeries), nonNil(r.OffsetsNanos),
	}
}

// nonNil returns an empty slice for nil so the driver writes an empty array.
func nonNil[T any](vs []T) []T {
	if vs == nil {
		return []T{}
	}
	return vs
}
