// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// gravityAlpha is the low-pass coefficient used to isolate gravity from
// the raw accelerometer signal.
const gravityAlpha = 0.8

// DefaultQueueSize bounds the number of readings waiting for processing.
const DefaultQueueSize = 512

// Processor turns raw readings into Samples on a single goroutine, so the
// fusion state (last accel/mag, gravity estimate) is never shared.
type Processor struct {
	buf    *Buffer
	logger *slog.Logger
	queue  chan Reading

	dropped atomic.Uint64

	// owned by Run
	accel   Vector3
	mag     Vector3
	haveMag bool
	gravity Vector3

	mu          sync.Mutex
	offsets     Offsets
	calibrating bool
	cal         calibrator
	last        Sample
}

// NewProcessor returns a processor feeding buf.
func NewProcessor(buf *Buffer, queueSize int, logger *slog.Logger) *Processor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Processor{
		buf:    buf,
		logger: logger,
		queue:  make(chan Reading, queueSize),
	}
}

// Submit enqueues r without blocking the sensor callback. When the queue is
// full the reading is dropped and counted.
func (p *Processor) Submit(r Reading) {
	select {
	case p.queue <- r:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			p.logger.Warn("motion: reading queue full, dropping", "kind", r.Kind, "dropped", n)
		}
	}
}

// Dropped returns the number of readings dropped so far.
func (p *Processor) Dropped() uint64 { return p.dropped.Load() }

// Run processes readings until ctx is canceled.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("motion: processor started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("motion: processor stopped")
			return nil
		case r := <-p.queue:
			p.process(r)
		}
	}
}

// process applies one reading. Only accelerometer readings produce samples;
// magnetometer readings update the field used for the next one.
func (p *Processor) process(r Reading) {
	switch r.Kind {
	case Magnetometer:
		p.mag = r.Values
		p.haveMag = true
		return
	case Accelerometer:
	default:
		p.logger.Debug("motion: ignoring reading", "kind", r.Kind)
		return
	}

	p.accel = r.Values
	p.gravity.X = gravityAlpha*p.gravity.X + (1-gravityAlpha)*r.Values.X
	p.gravity.Y = gravityAlpha*p.gravity.Y + (1-gravityAlpha)*r.Values.Y
	p.gravity.Z = gravityAlpha*p.gravity.Z + (1-gravityAlpha)*r.Values.Z

	var o Orientation
	ok := false
	if p.haveMag {
		o, ok = OrientationFromField(p.accel, p.mag)
	}
	if !ok {
		o = OrientationFromAccel(p.accel)
	}

	raw := Sample{
		TimestampNanos: r.TimestampNanos,
		Acceleration: Vector3{
			X: r.Values.X - p.gravity.X,
			Y: r.Values.Y - p.gravity.Y,
			Z: r.Values.Z - p.gravity.Z,
		},
		Orientation: o,
	}

	p.mu.Lock()
	if p.calibrating {
		p.cal.add(raw)
	}
	s := p.offsets.Apply(raw)
	p.last = s
	p.mu.Unlock()

	p.buf.Append(s)
}

// StartCalibration zeroes the offsets and starts accumulating raw values.
func (p *Processor) StartCalibration() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.offsets = Offsets{}
	p.cal = calibrator{}
	p.calibrating = true
	p.logger.Info("motion: calibration started")
}

// StopCalibration sets the offsets to the mean of the values seen since
// StartCalibration and returns them with the sample count. Without an
// active calibration the current offsets are returned unchanged.
func (p *Processor) StopCalibration() (Offsets, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.calibrating {
		return p.offsets, 0
	}
	p.calibrating = false
	p.offsets = p.cal.offsets()
	n := p.cal.count()
	p.cal = calibrator{}
	p.logger.Info("motion: calibration finished", "samples", n,
		"pitch", p.offsets.Pitch, "roll", p.offsets.Roll, "accel_z", p.offsets.Acceleration.Z)
	return p.offsets, n
}

// SetOffsets replaces the offsets applied to future samples.
func (p *Processor) SetOffsets(o Offsets) {
	p.mu.Lock()
	p.offsets = o
	p.mu.Unlock()
}

// Offsets returns the offsets currently applied.
func (p *Processor) Offsets() Offsets {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offsets
}

// Last returns the most recent calibrated sample, collected or not.
func (p *Processor) Last() Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
