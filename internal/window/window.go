// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import "time"

// WorstCase is the longest frame window the logger ever uses. It bounds both
// the dynamic window and the resume offset of the Resolver.
const WorstCase = int64(720 * time.Millisecond)

// Exposure describes the acquisition interval of one photograph, all in
// nanoseconds on the monotonic sample clock.
type Exposure struct {
	Start       int64 // sensor exposure start
	Exposure    int64 // exposure duration
	FrameWindow int64 // total window centered on the exposure
}

// Valid reports whether the exposure fits inside its frame window.
func (e Exposure) Valid() bool {
	return e.Exposure >= 0 && e.Exposure <= e.FrameWindow
}

// Slack is the time added on each side of the exposure.
func (e Exposure) Slack() int64 {
	return (e.FrameWindow - e.Exposure) / 2
}

// Bounds returns the inclusive window [start, end].
func (e Exposure) Bounds() (start, end int64) {
	off := e.Slack()
	return e.Start - off, e.Start + e.Exposure + off
}

// Dynamic returns the frame window for the given speed: the time it takes
// to travel one meter, capped at worstCase. Unknown or non-positive speeds
// get the worst case.
func Dynamic(speedMps float32, hasSpeed bool, worstCase int64) int64 {
	if !hasSpeed || speedMps <= 0 {
		return worstCase
	}
	w := int64(float64(time.Second) / float64(speedMps))
	if w > worstCase || w <= 0 {
		return worstCase
	}
	return w
}

// Range is a half-open index range [Start, End) into a sample slice.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in r.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether r selects nothing.
func (r Range) Empty() bool { return r.Len() == 0 }
