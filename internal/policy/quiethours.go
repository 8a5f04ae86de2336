package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuietHours is a do-not-disturb window in whole local hours. A window whose
// start is after its end wraps past midnight.
type QuietHours struct {
	Start int
	End   int
	// Location is the business timezone. When nil the instant's own location is used.
	Location *time.Location
}

// NewQuietHours validates the hours and returns the window.
func NewQuietHours(start, end int, loc *time.Location) (QuietHours, error) {
	if start < 0 || start > 23 {
		return QuietHours{}, invalid("quiet_hours.start", ErrHourOutOfRange, "got %d, want 0-23", start)
	}
	if end < 0 || end > 23 {
		return QuietHours{}, invalid("quiet_hours.end", ErrHourOutOfRange, "got %d, want 0-23", end)
	}
	return QuietHours{Start: start, End: end, Location: loc}, nil
}

// Overnight reports whether the window wraps past midnight.
func (q QuietHours) Overnight() bool {
	return q.Start > q.End
}

func (q QuietHours) local(t time.Time) time.Time {
	if q.Location != nil {
		return t.In(q.Location)
	}
	return t
}

// IsQuiet reports whether t falls inside the window.
func (q QuietHours) IsQuiet(t time.Time) bool {
	h := q.local(t).Hour()
	if q.Overnight() {
		return h >= q.Start || h < q.End
	}
	return h >= q.Start && h < q.End
}

// Shift moves t to the first allowed instant after the window. Instants
// outside the window are returned unchanged.
func (q QuietHours) Shift(t time.Time) time.Time {
	if !q.IsQuiet(t) {
		return t
	}
	d := q.local(t)
	day := d.Day()
	if q.Overnight() && d.Hour() >= q.Start {
		day++
	}
	// time.Date normalizes day overflow into the next month.
	return time.Date(d.Year(), d.Month(), day, q.End, 0, 0, 0, d.Location())
}

func (q QuietHours) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", q.Start, q.End)
}

// ParseHour reads an "HH:00" clock string. Minutes other than 00 are rejected
// because windows are hour-granular.
func ParseHour(field, s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		mm = "00"
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, invalid(field, ErrHourOutOfRange, "%q is not HH:00", s)
	}
	if m, err := strconv.Atoi(mm); err != nil || m != 0 {
		return 0, invalid(field, ErrHourOutOfRange, "%q must be on the hour", s)
	}
	if h < 0 || h > 23 {
		return 0, invalid(field, ErrHourOutOfRange, "got %d, want 0-23", h)
	}
	return h, nil
}

// FormatHour renders an hour as "HH:00".
func FormatHour(h int) string {
	return fmt.Sprintf("%02d:00", h)
}
