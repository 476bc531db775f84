// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

// event is anything handled by the orchestrator loop. Hardware callbacks and
// timers only ever post events; all state lives with the loop.
type event interface{}

type startEvent struct{}

type stopEvent struct{}

type resultEvent struct {
	result CaptureResult
}

type stillStartedEvent struct {
	frame     int64
	timestamp int64
}

type stillCompletedEvent struct {
	frame    int64
	exposure int64
}

type imageEvent struct {
	image Image
}

type errorEvent struct {
	err error
}

// leadElapsedEvent fires when the pre-capture lead of a cycle is over.
type leadElapsedEvent struct {
	cycle uint64
}

// windowClosedEvent fires once the frame window of a cycle has passed.
type windowClosedEvent struct {
	cycle uint64
}
