// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/relabs-tech/bikepath_logger/internal/features"
)

// ErrQueueFull is returned by Async.AppendRecord when the worker is behind.
var ErrQueueFull = errors.New("record queue full")

// Async hands records to a single worker goroutine so slow I/O never
// blocks the capture loop. Accepted records are written in order and are
// drained on shutdown.
type Async struct {
	next   Sink
	queue  chan features.Record
	logger *slog.Logger

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewAsync returns an Async writer in front of next.
func NewAsync(next Sink, size int, logger *slog.Logger) *Async {
	if size <= 0 {
		size = 64
	}
	return &Async{next: next, queue: make(chan features.Record, size), logger: logger}
}

// AppendRecord enqueues r without blocking.
func (a *Async) AppendRecord(r features.Record) error {
	select {
	case a.queue <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued records until ctx is canceled, then drains what was
// already accepted.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case r := <-a.queue:
			a.write(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-a.queue:
					a.write(r)
				default:
					a.logger.Info("sink: writer stopped", "written", a.written.Load(), "failed", a.failed.Load())
					return nil
				}
			}
		}
	}
}

func (a *Async) write(r features.Record) {
	if err := a.next.AppendRecord(r); err != nil {
		a.failed.Add(1)
		a.logger.Error("sink: write record", "sequence", r.Sequence, "error", err)
		return
	}
	a.written.Add(1)
}

// Written returns the number of records written successfully.
func (a *Async) Written() uint64 { return a.written.Load() }
