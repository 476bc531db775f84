// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

// State is the position of the orchestrator in the capture sequence.
type State int

const (
	Preview State = iota
	WaitingFocusLock
	WaitingPrecapture
	WaitingNonPrecapture
	PictureTaken
)

func (s State) String() string {
	switch s {
	case Preview:
		return "preview"
	case WaitingFocusLock:
		return "waiting_focus_lock"
	case WaitingPrecapture:
		return "waiting_precapture"
	case WaitingNonPrecapture:
		return "waiting_non_precapture"
	case PictureTaken:
		return "picture_taken"
	default:
		return "unknown"
	}
}

// AFState is the auto-focus state reported with a capture result.
// AFUnknown means the hardware did not report one.
type AFState int

const (
	AFUnknown AFState = iota
	AFInactive
	AFPassiveScan
	AFPassiveFocused
	AFPassiveUnfocused
	AFActiveScan
	AFFocusedLocked
	AFNotFocusedLocked
)

// Converged reports whether focus is settled enough to take the picture.
func (s AFState) Converged() bool {
	switch s {
	case AFUnknown, AFFocusedLocked, AFNotFocusedLocked:
		return true
	}
	return false
}

// AEState is the auto-exposure state reported with a capture result.
// AEUnknown means the hardware did not report one.
type AEState int

const (
	AEUnknown AEState = iota
	AEInactive
	AESearching
	AEConverged
	AELocked
	AEFlashRequired
	AEPrecapture
)

// Converged reports whether exposure is settled.
func (s AEState) Converged() bool {
	switch s {
	case AEUnknown, AEConverged, AELocked:
		return true
	}
	return false
}

// precaptureAcknowledged reports whether the hardware has picked up a
// precapture trigger.
func (s AEState) precaptureAcknowledged() bool {
	switch s {
	case AEUnknown, AEPrecapture, AEConverged, AEFlashRequired:
		return true
	}
	return false
}

func (s AEState) String() string {
	switch s {
	case AEUnknown:
		return "unknown"
	case AEInactive:
		return "inactive"
	case AESearching:
		return "searching"
	case AEConverged:
		return "converged"
	case AELocked:
		return "locked"
	case AEFlashRequired:
		return "flash_required"
	case AEPrecapture:
		return "precapture"
	default:
		return "invalid"
	}
}
