// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import (
	"sync"

	"github.com/relabs-tech/bikepath_logger/internal/motion"
)

// Span resolves e against samples with a full scan. It returns false when
// the exposure does not fit its frame window.
func Span(samples []motion.Sample, e Exposure) (Range, bool) {
	if !e.Valid() {
		return Range{}, false
	}
	r, _ := scan(samples, e, 0, e.Start)
	return r, true
}

// scan walks samples from index from. Besides the range it returns the
// first index whose timestamp is >= floor, which is where a later scan may
// safely resume.
func scan(samples []motion.Sample, e Exposure, from int, floor int64) (Range, int) {
	start, end := e.Bounds()

	resume := len(samples)
	first := -1
	last := -1
	for i := from; i < len(samples); i++ {
		ts := samples[i].TimestampNanos
		if resume == len(samples) && ts >= floor {
			resume = i
		}
		if ts > end {
			break
		}
		if ts >= start {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first < 0 {
		// Nothing inside: report an empty range at the insertion point.
		at := from
		for at < len(samples) && samples[at].TimestampNanos < start {
			at++
		}
		return Range{Start: at, End: at}, resume
	}
	return Range{Start: first, End: last + 1}, resume
}

// Resolver resolves consecutive exposures against snapshots of the same
// collection epoch, resuming each scan where earlier history can no longer
// belong to any future window.
//
// The resume index is the first sample at or after the previous exposure
// start minus half the worst-case window. Any later window starts no
// earlier than that as long as exposure starts do not go backwards and the
// frame window stays within the worst case; otherwise the resolver falls
// back to a full scan.
type Resolver struct {
	mu        sync.Mutex
	worstCase int64

	valid     bool
	epoch     uint64
	lastStart int64
	offset    int
}

// NewResolver returns a resolver bounded by worstCase. A non-positive value
// selects WorstCase.
func NewResolver(worstCase int64) *Resolver {
	if worstCase <= 0 {
		worstCase = WorstCase
	}
	return &Resolver{worstCase: worstCase}
}

// WorstCase returns the window length bounding the resume offset.
func (r *Resolver) WorstCase() int64 { return r.worstCase }

// Resolve returns the half-open range of snap.Samples inside e's window.
// It returns false when e is invalid; an empty snapshot yields Range{0, 0}.
func (r *Resolver) Resolve(snap motion.Snapshot, e Exposure) (Range, bool) {
	if !e.Valid() {
		return Range{}, false
	}
	if len(snap.Samples) == 0 {
		return Range{}, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	from := 0
	if r.valid && snap.Epoch == r.epoch && e.Start >= r.lastStart &&
		e.FrameWindow <= r.worstCase && r.offset <= len(snap.Samples) {
		from = r.offset
	}

	rng, resume := scan(snap.Samples, e, from, e.Start-r.worstCase/2)

	r.valid = true
	r.epoch = snap.Epoch
	r.lastStart = e.Start
	r.offset = resume
	return rng, true
}

// Reset forgets the resume offset.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.valid = false
	r.offset = 0
	r.mu.Unlock()
}

// Offset returns the index the next scan of the same epoch may resume at.
func (r *Resolver) Offset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}
