// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"sync"
	"time"
)

// Tracker keeps the latest valid fix. It is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	loc        Location
	have       bool
	receivedAt time.Time
	maxAge     time.Duration
	now        func() time.Time
}

// NewTracker returns a tracker whose location expires after maxAge. A
// non-positive maxAge never expires.
func NewTracker(maxAge time.Duration) *Tracker {
	return &Tracker{maxAge: maxAge, now: time.Now}
}

// Update stores f if it is valid and reports whether it was kept.
func (t *Tracker) Update(f Fix) bool {
	if !f.Valid() {
		return false
	}
	t.Set(f.Location())
	return true
}

// Set stores loc as the current location.
func (t *Tracker) Set(loc Location) {
	t.mu.Lock()
	t.loc = loc
	t.have = true
	t.receivedAt = t.now()
	t.mu.Unlock()
}

// CurrentLocation returns the latest location unless none was received or
// it is older than the tracker's max age.
func (t *Tracker) CurrentLocation() (Location, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.have {
		return Location{}, false
	}
	if t.maxAge > 0 && t.now().Sub(t.receivedAt) > t.maxAge {
		return Location{}, false
	}
	return t.loc, true
}
