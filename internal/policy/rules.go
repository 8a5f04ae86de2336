package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "startswith"
)

func ParseMatchType(s string) (MatchType, error) {
	switch m := MatchType(strings.ToLower(strings.TrimSpace(s))); m {
	case MatchExact, MatchContains, MatchStartsWith:
		return m, nil
	}
	return "", invalid("match", ErrUnknownMatch, "%q", s)
}

type ActionKind string

const (
	ActionAutoReply    ActionKind = "AUTOREPLY"
	ActionTemplate     ActionKind = "TEMPLATE"
	ActionMedia        ActionKind = "MEDIA"
	ActionMarkPaid     ActionKind = "OPS_MARK_PAID"
	ActionAttend       ActionKind = "OPS_ATTEND"
	ActionNewOrder     ActionKind = "NEW_ORDER"
	ActionAdvanceOrder ActionKind = "ADVANCE_ORDER"
)

func (k ActionKind) IsOps() bool {
	switch k {
	case ActionMarkPaid, ActionAttend, ActionNewOrder, ActionAdvanceOrder:
		return true
	}
	return false
}

// Action is what a matched rule asks the caller to do. The concrete type
// carries only the fields relevant to its kind.
type Action interface {
	Kind() ActionKind
	validate() error
}

type AutoReply struct {
	ReplyText string
}

func (AutoReply) Kind() ActionKind { return ActionAutoReply }

func (a AutoReply) validate() error {
	if strings.TrimSpace(a.ReplyText) == "" {
		return invalid("reply_text", ErrMissingPayload, "required for %s", ActionAutoReply)
	}
	return nil
}

type SendTemplate struct {
	TemplateID string
	Vars       []string
}

func (SendTemplate) Kind() ActionKind { return ActionTemplate }

func (a SendTemplate) validate() error {
	if strings.TrimSpace(a.TemplateID) == "" {
		return invalid("template_id", ErrMissingPayload, "required for %s", ActionTemplate)
	}
	return nil
}

type SendMedia struct {
	MediaID string
	Caption string
}

func (SendMedia) Kind() ActionKind { return ActionMedia }

func (a SendMedia) validate() error {
	if strings.TrimSpace(a.MediaID) == "" {
		return invalid("media_id", ErrMissingPayload, "required for %s", ActionMedia)
	}
	return nil
}

// OpsCommand is one of the staff-side actions. Expects is help text shown to
// staff describing the command arguments.
type OpsCommand struct {
	Command ActionKind
	Expects string
}

func (a OpsCommand) Kind() ActionKind { return a.Command }

func (a OpsCommand) validate() error {
	if !a.Command.IsOps() {
		return invalid("do", ErrUnknownAction, "%q is not an ops command", a.Command)
	}
	return nil
}

// Rule maps inbound text to an action. Rules are evaluated in list order.
type Rule struct {
	Match       MatchType
	Triggers    []string
	Action      Action
	ThrottleSec int
}

// NewRule builds a validated rule.
func NewRule(match MatchType, triggers []string, action Action, throttleSec int) (Rule, error) {
	if t, ok := action.(SendTemplate); ok && len(t.Vars) == 0 {
		t.Vars = nil
		action = t
	}
	r := Rule{Match: match, Triggers: triggers, Action: action, ThrottleSec: throttleSec}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks a constructed rule. The match type must already be one of
// the canonical constants; ParseMatchType is the lenient entry point.
func (r Rule) Validate() error {
	switch r.Match {
	case MatchExact, MatchContains, MatchStartsWith:
	default:
		return invalid("match", ErrUnknownMatch, "%q", r.Match)
	}
	if len(r.Triggers) == 0 {
		return invalid("triggers", ErrEmptyTriggers, "at least one trigger is required")
	}
	for i, t := range r.Triggers {
		if strings.TrimSpace(t) == "" {
			return invalid(fmt.Sprintf("triggers[%d]", i), ErrEmptyTriggers, "trigger is blank")
		}
	}
	if r.Action == nil {
		return invalid("do", ErrUnknownAction, "action is required")
	}
	if err := r.Action.validate(); err != nil {
		return err
	}
	if r.ThrottleSec < 0 {
		return invalid("throttle_sec", ErrNegativeThrottle, "got %d", r.ThrottleSec)
	}
	return nil
}

func (r Rule) Throttle() time.Duration {
	return time.Duration(r.ThrottleSec) * time.Second
}

// ruleJSON is the settings_json shape of a rule.
type ruleJSON struct {
	Match       string   `json:"match"`
	Triggers    []string `json:"triggers"`
	Do          string   `json:"do"`
	ReplyText   string   `json:"reply_text,omitempty"`
	TemplateID  string   `json:"template_id,omitempty"`
	Vars        []string `json:"vars,omitempty"`
	MediaID     string   `json:"media_id,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	Expects     string   `json:"expects,omitempty"`
	ThrottleSec int      `json:"throttle_sec,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	w := ruleJSON{
		Match:       string(r.Match),
		Triggers:    r.Triggers,
		Do:          string(r.Action.Kind()),
		ThrottleSec: r.ThrottleSec,
	}
	switch a := r.Action.(type) {
	case AutoReply:
		w.ReplyText = a.ReplyText
	case SendTemplate:
		w.TemplateID = a.TemplateID
		w.Vars = a.Vars
	case SendMedia:
		w.MediaID = a.MediaID
		w.Caption = a.Caption
	case OpsCommand:
		w.Expects = a.Expects
	}
	return json.Marshal(w)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rule, err := w.toRule()
	if err != nil {
		return err
	}
	*r = rule
	return nil
}

func (w ruleJSON) toRule() (Rule, error) {
	match, err := ParseMatchType(w.Match)
	if err != nil {
		return Rule{}, err
	}
	action, err := newAction(w)
	if err != nil {
		return Rule{}, err
	}
	return NewRule(match, w.Triggers, action, w.ThrottleSec)
}

func newAction(w ruleJSON) (Action, error) {
	kind := ActionKind(strings.ToUpper(strings.TrimSpace(w.Do)))
	switch {
	case kind == ActionAutoReply:
		return AutoReply{ReplyText: w.ReplyText}, nil
	case kind == ActionTemplate:
		return SendTemplate{TemplateID: w.TemplateID, Vars: w.Vars}, nil
	case kind == ActionMedia:
		return SendMedia{MediaID: w.MediaID, Caption: w.Caption}, nil
	case kind.IsOps():
		return OpsCommand{Command: kind, Expects: w.Expects}, nil
	}
	return nil, invalid("do", ErrUnknownAction, "%q", w.Do)
}

type Channel string

const (
	ChannelCustomer Channel = "customer"
	ChannelOps      Channel = "ops"
)

func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelCustomer, ChannelOps:
		return c, nil
	}
	return "", invalid("channel", ErrUnknownChannel, "%q is not customer or ops", s)
}

// RuleSet holds the two independent rule lists of a business.
type RuleSet struct {
	Customer []Rule
	Ops      []Rule
}

// Rules returns the list evaluated for ch. Channels never cross-match.
func (rs RuleSet) Rules(ch Channel) []Rule {
	if ch == ChannelOps {
		return rs.Ops
	}
	return rs.Customer
}

func (rs RuleSet) Validate() error {
	for i, r := range rs.Customer {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("customer_rules[%d]: %w", i, err)
		}
	}
	for i, r := range rs.Ops {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("ops_rules[%d]: %w", i, err)
		}
	}
	return nil
}

type ruleSetJSON struct {
	Customer []Rule `json:"customer_rules"`
	Ops      []Rule `json:"ops_rules"`
}

func (rs RuleSet) MarshalJSON() ([]byte, error) {
	w := ruleSetJSON{Customer: rs.Customer, Ops: rs.Ops}
	if w.Customer == nil {
		w.Customer = []Rule{}
	}
	if w.Ops == nil {
		w.Ops = []Rule{}
	}
	return json.Marshal(w)
}

func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	var w ruleSetJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rs.Customer, rs.Ops = nil, nil
	if len(w.Customer) > 0 {
		rs.Customer = w.Customer
	}
	if len(w.Ops) > 0 {
		rs.Ops = w.Ops
	}
	return nil
}

// ParseRuleSet decodes and validates a {"customer_rules", "ops_rules"} document.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}
