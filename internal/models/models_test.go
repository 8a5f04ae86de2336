package models

import (
	"testing"

	"connect-gateway/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContact_Tags(t *testing.T) {
	var c Contact
	assert.Nil(t, c.TagList())

	c.SetTags([]string{" paid ", "", "Paid", "class-7"})
	assert.Equal(t, []string{"paid", "class-7"}, c.TagList())

	c.AddTag("class-7")
	c.AddTag("stop")
	assert.Equal(t, []string{"paid", "class-7", "stop"}, c.TagList())

	c.Tags = "not json"
	assert.Nil(t, c.TagList())
}

func TestContact_ToPolicy(t *testing.T) {
	c := Contact{WaID: "919800000001", Consent: "opted_in", Tags: `["vip"]`}
	p := c.ToPolicy()
	assert.Equal(t, "919800000001", p.ID)
	assert.Equal(t, policy.OptedIn, p.Consent)
	assert.Equal(t, []string{"vip"}, p.Tags)

	c.Consent = "BOGUS"
	assert.Equal(t, policy.NeedsOptIn, c.ToPolicy().Consent)
}

func TestBusiness_PolicySettings(t *testing.T) {
	var b Business
	s, err := b.PolicySettings()
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultTimezone, s.Timezone)
	assert.Equal(t, policy.DefaultQuietStart, s.QuietHours.Start)

	s.QuietHours.Start = 21
	require.NoError(t, b.SetPolicySettings(s))
	assert.Contains(t, b.Settings, `"21:00"`)

	round, err := b.PolicySettings()
	require.NoError(t, err)
	assert.Equal(t, 21, round.QuietHours.Start)
	assert.Equal(t, policy.DefaultQuietEnd, round.QuietHours.End)

	b.Settings = "{"
	_, err = b.PolicySettings()
	assert.Error(t, err)
}
