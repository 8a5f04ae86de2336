package policy

import (
	"encoding/json"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DefaultTimezone   = "Asia/Kolkata"
	DefaultQuietStart = 22
	DefaultQuietEnd   = 7
)

// BusinessSettings is the per-business policy document stored as settings_json.
type BusinessSettings struct {
	Timezone   string
	QuietHours QuietHours
	Keywords   RuleSet
}

// DefaultSettings returns the settings a new business starts with.
func DefaultSettings() BusinessSettings {
	loc, _ := time.LoadLocation(DefaultTimezone)
	return BusinessSettings{
		Timezone:   DefaultTimezone,
		QuietHours: QuietHours{Start: DefaultQuietStart, End: DefaultQuietEnd, Location: loc},
	}
}

// NewBusinessSettings validates the timezone and binds it to the quiet hours.
func NewBusinessSettings(tz string, quiet QuietHours, keywords RuleSet) (BusinessSettings, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return BusinessSettings{}, err
	}
	q, err := NewQuietHours(quiet.Start, quiet.End, loc)
	if err != nil {
		return BusinessSettings{}, err
	}
	if err := keywords.Validate(); err != nil {
		return BusinessSettings{}, err
	}
	return BusinessSettings{Timezone: loc.String(), QuietHours: q, Keywords: keywords}, nil
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil, invalid("timezone", ErrUnknownTimezone, "timezone is required")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, invalid("timezone", ErrUnknownTimezone, "%q", tz)
	}
	return loc, nil
}

// Location returns the business timezone, falling back to UTC.
func (s BusinessSettings) Location() *time.Location {
	if s.QuietHours.Location != nil {
		return s.QuietHours.Location
	}
	return time.UTC
}

type quietHoursJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type settingsJSON struct {
	Timezone   string         `json:"timezone"`
	QuietHours quietHoursJSON `json:"quiet_hours"`
	Keywords   RuleSet        `json:"keywords"`
}

func (s BusinessSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(settingsJSON{
		Timezone: s.Timezone,
		QuietHours: quietHoursJSON{
			Start: FormatHour(s.QuietHours.Start),
			End:   FormatHour(s.QuietHours.End),
		},
		Keywords: s.Keywords,
	})
}

func (s *BusinessSettings) UnmarshalJSON(data []byte) error {
	w := settingsJSON{
		Timezone:   DefaultTimezone,
		QuietHours: quietHoursJSON{Start: FormatHour(DefaultQuietStart), End: FormatHour(DefaultQuietEnd)},
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, err := ParseHour("quiet_hours.start", w.QuietHours.Start)
	if err != nil {
		return err
	}
	end, err := ParseHour("quiet_hours.end", w.QuietHours.End)
	if err != nil {
		return err
	}
	parsed, err := NewBusinessSettings(w.Timezone, QuietHours{Start: start, End: end}, w.Keywords)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSettings decodes a settings_json document.
func ParseSettings(data []byte) (BusinessSettings, error) {
	var s BusinessSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return BusinessSettings{}, err
	}
	return s, nil
}
