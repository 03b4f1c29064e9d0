package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// SpokenRepeats is how many times the announcement sentence is spoken.
	SpokenRepeats = 3
	// SpeechLang is the locale front-desk browsers should speak in.
	SpeechLang = "es-MX"

	announcementTemplate = "%s ha acabado su tiempo."
)

// ErrChannelUnavailable is reported by a channel that cannot deliver at all
// (no receivers, not configured, not supported).
var ErrChannelUnavailable = errors.New("alert channel unavailable")

// Tone is one beep of the expiration chime.
type Tone struct {
	FrequencyHz int           `json:"frequency_hz"`
	Duration    time.Duration `json:"-"`
	Offset      time.Duration `json:"-"`
	Waveform    string        `json:"waveform"`
}

// ExpirationChime is the two-tone sequence played when a visitor's time runs out.
var ExpirationChime = []Tone{
	{FrequencyHz: 880, Duration: time.Second, Offset: 0, Waveform: "sine"},
	{FrequencyHz: 1100, Duration: 800 * time.Millisecond, Offset: 300 * time.Millisecond, Waveform: "sine"},
}

// Alert announces that one visitor's time has expired.
type Alert struct {
	VisitorID    string
	Name         string
	Announcement string
	Tones        []Tone
	At           time.Time
}

// NewExpiredAlert builds the spoken and audible alert for a visitor.
func NewExpiredAlert(visitorID, name string, at time.Time) Alert {
	tones := make([]Tone, len(ExpirationChime))
	copy(tones, ExpirationChime)
	return Alert{
		VisitorID:    visitorID,
		Name:         name,
		Announcement: Announcement(name),
		Tones:        tones,
		At:           at,
	}
}

// Announcement repeats the expiration sentence for name SpokenRepeats times.
func Announcement(name string) string {
	sentence := fmt.Sprintf(announcementTemplate, strings.TrimSpace(name))
	parts := make([]string, SpokenRepeats)
	for i := range parts {
		parts[i] = sentence
	}
	return strings.Join(parts, " ")
}
