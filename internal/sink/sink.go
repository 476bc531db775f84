// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink persists feature records: a CSV directory with the images
// next to it, an MQTT live feed and a ClickHouse table.
package sink

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/relabs-tech/bikepath_logger/internal/features"
)

// Sink receives records in capture order.
type Sink interface {
	AppendRecord(features.Record) error
}

// Multi appends every record to all of its sinks, in order. A failing sink
// does not keep the others from receiving the record.
type Multi []Sink

func (m Multi) AppendRecord(r features.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.AppendRecord(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tee writes every record to a primary sink and then offers it to a
// mirror. Only the primary decides whether the record was persisted;
// mirror failures are logged and counted.
type Tee struct {
	primary Sink
	mirror  Sink
	logger  *slog.Logger

	mirrorFailed atomic.Uint64
}

// NewTee returns a Tee over primary and mirror.
func NewTee(primary, mirror Sink, logger *slog.Logger) *Tee {
	return &Tee{primary: primary, mirror: mirror, logger: logger}
}

func (t *Tee) AppendRecord(r features.Record) error {
	if err := t.primary.AppendRecord(r); err != nil {
		return err
	}
	if err := t.mirror.AppendRecord(r); err != nil {
		n := t.mirrorFailed.Add(1)
		if !errors.Is(err, ErrQueueFull) || n%50 == 1 {
			t.logger.Warn("sink: record kept locally only", "sequence", r.Sequence, "error", err, "mirror_failed", n)
		}
	}
	return nil
}

// MirrorFailed returns the number of records the mirror did not accept.
func (t *Tee) MirrorFailed() uint64 { return t.mirrorFailed.Load() }
