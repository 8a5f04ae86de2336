package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	doc := `{
		"timezone": "Asia/Dubai",
		"quiet_hours": {"start": "21:00", "end": "08:00"},
		"keywords": {"customer_rules": [], "ops_rules": [
			{"match": "contains", "triggers": ["NEW "], "do": "NEW_ORDER"}
		]}
	}`

	s, err := ParseSettings([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "Asia/Dubai", s.Timezone)
	assert.Equal(t, 21, s.QuietHours.Start)
	assert.Equal(t, 8, s.QuietHours.End)
	assert.Equal(t, "Asia/Dubai", s.Location().String())
	require.Len(t, s.Keywords.Ops, 1)
	assert.Empty(t, s.Keywords.Customer)
}

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultTimezone, s.Timezone)
	assert.Equal(t, DefaultQuietStart, s.QuietHours.Start)
	assert.Equal(t, DefaultQuietEnd, s.QuietHours.End)
}

func TestParseSettings_Invalid(t *testing.T) {
	_, err := ParseSettings([]byte(`{"timezone": "Mars/Olympus"}`))
	assert.ErrorIs(t, err, ErrUnknownTimezone)

	_, err = ParseSettings([]byte(`{"quiet_hours": {"start": "22:30", "end": "07:00"}}`))
	assert.ErrorIs(t, err, ErrHourOutOfRange)

	_, err = ParseSettings([]byte(`{"keywords": {"ops_rules": [{"match": "exact", "triggers": ["A"], "do": "NOPE"}]}}`))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestBusinessSettings_MarshalJSON(t *testing.T) {
	s := DefaultSettings()

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timezone": "Asia/Kolkata",
		"quiet_hours": {"start": "22:00", "end": "07:00"},
		"keywords": {"customer_rules": [], "ops_rules": []}
	}`, string(data))

	back, err := ParseSettings(data)
	require.NoError(t, err)
	assert.Equal(t, s.Timezone, back.Timezone)
	assert.Equal(t, s.QuietHours.Start, back.QuietHours.Start)
	assert.Equal(t, s.QuietHours.End, back.QuietHours.End)
}
