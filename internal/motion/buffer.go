// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import "sync"

// Snapshot is a point-in-time copy of the buffer. Samples is owned by the
// caller and may be sliced or iterated without locking.
type Snapshot struct {
	Epoch   uint64
	Samples []Sample
}

// Buffer accumulates samples for one capture epoch. Appends only land while
// collection is active. Every mutation and every copy-out happens under mu,
// so readers never observe a half-appended sample.
type Buffer struct {
	mu         sync.Mutex
	samples    []Sample
	collecting bool
	epoch      uint64
}

// NewBuffer returns an empty, inactive buffer.
func NewBuffer() *Buffer {
	return &Buffer{samples: make([]Sample, 0, 256)}
}

// Append adds s when collection is active and reports whether it was kept.
func (b *Buffer) Append(s Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.collecting {
		return false
	}
	b.samples = append(b.samples, s)
	return true
}

// StartCollecting enables appends. Calling it while already collecting is a
// no-op and keeps the epoch in progress.
func (b *Buffer) StartCollecting() {
	b.mu.Lock()
	b.collecting = true
	b.mu.Unlock()
}

// StopCollecting disables appends. No-op when already stopped.
func (b *Buffer) StopCollecting() {
	b.mu.Lock()
	b.collecting = false
	b.mu.Unlock()
}

// Collecting reports whether appends are currently accepted.
func (b *Buffer) Collecting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collecting
}

// Snapshot copies the current samples. The lock is held only for the copy.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Sample, len(b.samples))
	copy(out, b.samples)
	return Snapshot{Epoch: b.epoch, Samples: out}
}

// Clear drops all samples and starts a new epoch. The collecting flag is
// left untouched.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = b.samples[:0]
	b.epoch++
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Epoch returns the current epoch counter.
func (b *Buffer) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}
