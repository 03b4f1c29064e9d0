package engine

import (
	"time"

	"park-timer-backend/internal/model"
)

const (
	// TickInterval is how often running timers are recomputed.
	TickInterval = time.Second
	// WarningThreshold is the remaining time, in seconds, at or below
	// which a running visitor is shown as warning.
	WarningThreshold = 300
)

// Remaining returns the seconds left of a timeMinutes allotment started at
// start, as seen at now. Elapsed time is floored to whole seconds and never
// negative, so a start time in the future reads as a full allotment.
func Remaining(start time.Time, timeMinutes int, now time.Time) int {
	elapsed := int(now.Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := timeMinutes*60 - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DeriveStatus maps remaining seconds of a running timer to its status.
func DeriveStatus(remaining int) model.VisitorStatus {
	switch {
	case remaining <= 0:
		return model.StatusExpired
	case remaining <= WarningThreshold:
		return model.StatusWarning
	default:
		return model.StatusActive
	}
}

// running reports whether the status belongs to a started, unfinished timer.
func running(s model.VisitorStatus) bool {
	return s == model.StatusActive || s == model.StatusWarning || s == model.StatusExpired
}
