package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsentTransition(t *testing.T) {
	tests := []struct {
		name        string
		current     Consent
		text        string
		want        Consent
		wantKeyword string
		changed     bool
	}{
		{"stop opts out", OptedIn, "STOP", Unsubscribed, "STOP", true},
		{"lowercase stop", NeedsOptIn, "  stop ", Unsubscribed, "STOP", true},
		{"unsubscribe", OptedIn, "Unsubscribe", Unsubscribed, "UNSUBSCRIBE", true},
		{"start opts in", NeedsOptIn, "START", OptedIn, "START", true},
		{"start when already in", OptedIn, "start", OptedIn, "START", false},
		{"keyword inside sentence is ignored", OptedIn, "please stop messaging", OptedIn, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kw, changed := ConsentTransition(tt.current, tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantKeyword, kw)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestCanSendFreeForm(t *testing.T) {
	now := time.Date(2025, time.August, 5, 12, 0, 0, 0, time.UTC)

	assert.True(t, CanSendFreeForm(now.Add(-2*time.Hour), now))
	assert.True(t, CanSendFreeForm(now.Add(-24*time.Hour), now))
	assert.False(t, CanSendFreeForm(now.Add(-30*time.Hour), now))
	assert.False(t, CanSendFreeForm(time.Time{}, now))
}
