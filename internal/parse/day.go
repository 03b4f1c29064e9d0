package parse

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the layout of an operating-day key.
const DayLayout = "2006-01-02"

// Day returns the operating-day key of t in the park's timezone.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

// ParseDay validates and normalizes a YYYY-MM-DD day key.
func ParseDay(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("unable to parse day: %q", raw)
	}
	return d.Format(DayLayout), nil
}

// FormatCountdown renders seconds as a zero-padded mm:ss countdown.
// Minutes are not wrapped into hours, so 90 minutes reads "90:00".
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
