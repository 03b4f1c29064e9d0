package model

import "time"

// VisitorType identifies whose attraction-time allotment a visitor record is.
type VisitorType string

const (
	VisitorTypeGuardian   VisitorType = "guardian"
	VisitorTypeChild      VisitorType = "child"
	VisitorTypeIndividual VisitorType = "individual"
)

// Valid reports whether t is a known visitor type.
func (t VisitorType) Valid() bool {
	switch t {
	case VisitorTypeGuardian, VisitorTypeChild, VisitorTypeIndividual:
		return true
	}
	return false
}

// VisitorStatus is a visitor's position in the timer state machine.
type VisitorStatus string

const (
	StatusPending   VisitorStatus = "pending"
	StatusActive    VisitorStatus = "active"
	StatusWarning   VisitorStatus = "warning"
	StatusExpired   VisitorStatus = "expired"
	StatusCompleted VisitorStatus = "completed"
)

// MaxAllotmentMinutes caps a visitor's total purchased time, renewals
// included. No allotment outlasts one operating day.
const MaxAllotmentMinutes = 24 * 60

// Visitor is one purchased time allotment for park access.
type Visitor struct {
	ID               string        `gorm:"primaryKey;size:36" json:"id"`
	Type             VisitorType   `gorm:"size:16;not null" json:"type"`
	PersonID         string        `gorm:"size:64" json:"personId"`
	GuardianID       string        `gorm:"size:64;index" json:"guardianId"`
	Name             string        `gorm:"size:256;not null" json:"name"`
	TimeMinutes      int           `gorm:"not null" json:"timeMinutes"`
	StartTime        *time.Time    `json:"startTime"`
	EndTime          *time.Time    `json:"endTime"`
	RemainingSeconds int           `gorm:"not null" json:"remainingSeconds"`
	Status           VisitorStatus `gorm:"size:16;not null;index" json:"status"`
	RegisteredBy     string        `gorm:"size:128" json:"registeredBy"`
	Date             string        `gorm:"size:10;not null;index" json:"date"` // operating day, YYYY-MM-DD
	Paid             bool          `gorm:"not null" json:"paid"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// AllotmentSeconds is the total purchased time in seconds.
func (v *Visitor) AllotmentSeconds() int {
	return v.TimeMinutes * 60
}
