package policy

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tuitionKeywords = `{
  "customer_rules": [
    {"match": "contains", "triggers": ["fees", "due"], "do": "TEMPLATE", "template_id": "tmpl-fee-reminder-uuid", "vars": ["{{name}}", "{{due_amount}}"]},
    {"match": "contains", "triggers": ["paid", "payment done"], "do": "AUTOREPLY", "reply_text": "Thanks! We'll verify and confirm."},
    {"match": "startswith", "triggers": ["brochure"], "do": "MEDIA", "media_id": "media-123", "caption": "Our batches"}
  ],
  "ops_rules": [
    {"match": "exact", "triggers": ["PAID"], "do": "OPS_MARK_PAID", "throttle_sec": 2, "expects": "phone amount [note]"},
    {"match": "contains", "triggers": ["ATTEND"], "do": "OPS_ATTEND"}
  ]
}`

func TestParseRuleSet(t *testing.T) {
	rs, err := ParseRuleSet([]byte(tuitionKeywords))
	require.NoError(t, err)

	require.Len(t, rs.Customer, 3)
	require.Len(t, rs.Ops, 2)

	assert.Equal(t, SendTemplate{TemplateID: "tmpl-fee-reminder-uuid", Vars: []string{"{{name}}", "{{due_amount}}"}}, rs.Customer[0].Action)
	assert.Equal(t, SendMedia{MediaID: "media-123", Caption: "Our batches"}, rs.Customer[2].Action)
	assert.Equal(t, OpsCommand{Command: ActionMarkPaid, Expects: "phone amount [note]"}, rs.Ops[0].Action)
	assert.Equal(t, 2, rs.Ops[0].ThrottleSec)
	assert.Equal(t, 0, rs.Ops[1].ThrottleSec)

	assert.Equal(t, rs.Ops, rs.Rules(ChannelOps))
	assert.Equal(t, rs.Customer, rs.Rules(ChannelCustomer))
}

func TestRuleSet_RoundTrip(t *testing.T) {
	want, err := ParseRuleSet([]byte(tuitionKeywords))
	require.NoError(t, err)

	data, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := ParseRuleSet(data)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleSet_EmptyLists(t *testing.T) {
	data, err := json.Marshal(RuleSet{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"customer_rules": [], "ops_rules": []}`, string(data))

	got, err := ParseRuleSet(data)
	require.NoError(t, err)
	if diff := cmp.Diff(RuleSet{}, got); diff != "" {
		t.Errorf("empty ruleset mismatch (-want +got):\n%s", diff)
	}
}

func TestRule_OmitsZeroThrottle(t *testing.T) {
	r, err := NewRule(MatchContains, []string{"menu"}, SendTemplate{TemplateID: "tmpl-menu"}, 0)
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"match":"contains","triggers":["menu"],"do":"TEMPLATE","template_id":"tmpl-menu"}`, string(data))
}

func TestParseRuleSet_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown match", `{"customer_rules":[{"match":"regex","triggers":["a"],"do":"AUTOREPLY","reply_text":"x"}]}`, ErrUnknownMatch},
		{"unknown action", `{"ops_rules":[{"match":"exact","triggers":["A"],"do":"LAUNCH"}]}`, ErrUnknownAction},
		{"no triggers", `{"ops_rules":[{"match":"exact","triggers":[],"do":"OPS_ATTEND"}]}`, ErrEmptyTriggers},
		{"blank trigger", `{"ops_rules":[{"match":"exact","triggers":["  "],"do":"OPS_ATTEND"}]}`, ErrEmptyTriggers},
		{"autoreply without text", `{"customer_rules":[{"match":"exact","triggers":["hi"],"do":"AUTOREPLY"}]}`, ErrMissingPayload},
		{"template without id", `{"customer_rules":[{"match":"exact","triggers":["hi"],"do":"TEMPLATE"}]}`, ErrMissingPayload},
		{"media without id", `{"customer_rules":[{"match":"exact","triggers":["hi"],"do":"MEDIA"}]}`, ErrMissingPayload},
		{"negative throttle", `{"ops_rules":[{"match":"exact","triggers":["A"],"do":"OPS_ATTEND","throttle_sec":-1}]}`, ErrNegativeThrottle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestNewRule_RejectsNonCanonicalMatch(t *testing.T) {
	_, err := NewRule(MatchType("EXACT"), []string{"PAID"}, OpsCommand{Command: ActionMarkPaid}, 0)
	assert.ErrorIs(t, err, ErrUnknownMatch)

	_, err = json.Marshal(Rule{Match: " contains", Triggers: []string{"a"}, Action: AutoReply{ReplyText: "x"}})
	assert.ErrorIs(t, err, ErrUnknownMatch)

	// Documents stay lenient about case.
	rs, err := ParseRuleSet([]byte(`{"ops_rules":[{"match":"EXACT","triggers":["PAID"],"do":"OPS_MARK_PAID"}]}`))
	require.NoError(t, err)
	assert.Equal(t, MatchExact, rs.Ops[0].Match)
}

func TestNewRule_EmptyVarsRoundTrip(t *testing.T) {
	want, err := NewRule(MatchContains, []string{"menu"}, SendTemplate{TemplateID: "tmpl-menu", Vars: []string{}}, 0)
	require.NoError(t, err)
	assert.Nil(t, want.Action.(SendTemplate).Vars)

	data, err := json.Marshal(RuleSet{Customer: []Rule{want}})
	require.NoError(t, err)
	got, err := ParseRuleSet(data)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got.Customer[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRule_MarshalRejectsInvalid(t *testing.T) {
	_, err := json.Marshal(Rule{Match: MatchExact, Triggers: []string{"A"}, Action: OpsCommand{Command: ActionAutoReply}})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("OPS")
	require.NoError(t, err)
	assert.Equal(t, ChannelOps, ch)

	_, err = ParseChannel("sms")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}
