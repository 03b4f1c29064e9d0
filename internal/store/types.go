package store

import (
	"errors"
	"time"

	"park-timer-backend/internal/model"
)

var (
	// ErrNotFound is returned when no record matches the requested key.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidVisitor is returned when a new visitor record is missing required fields.
	ErrInvalidVisitor = errors.New("invalid visitor")
)

// VisitorPatch lists the visitor fields an update may change. Nil fields
// are left untouched.
type VisitorPatch struct {
	TimeMinutes      *int
	StartTime        *time.Time
	EndTime          *time.Time
	RemainingSeconds *int
	Status           *model.VisitorStatus
}

func (p VisitorPatch) columns() map[string]any {
	cols := make(map[string]any, 5)
	if p.TimeMinutes != nil {
		cols["time_minutes"] = *p.TimeMinutes
	}
	if p.StartTime != nil {
		cols["start_time"] = p.StartTime.UTC()
	}
	if p.EndTime != nil {
		cols["end_time"] = p.EndTime.UTC()
	}
	if p.RemainingSeconds != nil {
		cols["remaining_seconds"] = *p.RemainingSeconds
	}
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	return cols
}
