// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import (
	"context"
	"time"

	"github.com/relabs-tech/bikepath_logger/internal/features"
	"github.com/relabs-tech/bikepath_logger/internal/gps"
)

// Clock supplies the two time bases of the logger: a monotonic nanosecond
// clock shared by sensor samples and exposure timestamps, and wall-clock
// milliseconds for record and image names.
type Clock interface {
	NowNanos() int64
	NowMillis() int64
}

// SystemClock measures monotonic time from its creation.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) NowNanos() int64  { return int64(time.Since(c.epoch)) }
func (c *SystemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// LocationProvider returns the latest known position, if any.
type LocationProvider interface {
	CurrentLocation() (gps.Location, bool)
}

// Sink persists records in the order they are appended.
type Sink interface {
	AppendRecord(features.Record) error
}

// ImageStore saves encoded images and returns where they were written.
type ImageStore interface {
	SaveImage(name string, data []byte) (string, error)
}

// CaptureResult is an intermediate (preview or metering) result.
type CaptureResult struct {
	Frame int64
	AF    AFState
	AE    AEState
}

// Image is an encoded still image.
type Image struct {
	Frame          int64
	TimestampNanos int64
	Data           []byte
}

// Listener receives hardware callbacks. Implementations must not block.
type Listener interface {
	OnCaptureResult(CaptureResult)
	OnStillStarted(frame, timestampNanos int64)
	OnStillCompleted(frame, exposureNanos int64)
	OnImageAvailable(Image)
	OnError(error)
}

// Hardware is the camera adapter driven by the orchestrator.
type Hardware interface {
	Open(ctx context.Context, l Listener) error
	Close() error
	StartPreview() error
	TriggerPrecapture() error
	CaptureStill() error
}
