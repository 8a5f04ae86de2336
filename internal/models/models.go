package models

import (
	"encoding/json"
	"strings"
	"time"

	"connect-gateway/internal/policy"
)

// Business is a tenant with its own numbers and policy settings
type Business struct {
	Code             string    `gorm:"primaryKey;type:varchar(32)" json:"code"`
	Name             string    `gorm:"type:varchar(255);not null" json:"name"`
	PhoneNumberID    string    `gorm:"type:varchar(64);index" json:"phone_number_id"`     // Customer-facing number
	OpsPhoneNumberID string    `gorm:"type:varchar(64);index" json:"ops_phone_number_id"` // Staff command number
	Ruleset          string    `gorm:"type:varchar(64)" json:"ruleset"`                   // Preset the settings were seeded from
	Settings         string    `gorm:"type:text" json:"settings"`                         // settings_json document
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Business) TableName() string {
	return "businesses"
}

// PolicySettings decodes the stored settings_json. An empty document yields
// the defaults.
func (b Business) PolicySettings() (policy.BusinessSettings, error) {
	if strings.TrimSpace(b.Settings) == "" {
		return policy.DefaultSettings(), nil
	}
	return policy.ParseSettings([]byte(b.Settings))
}

// SetPolicySettings encodes s into the settings column.
func (b *Business) SetPolicySettings(s policy.BusinessSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	b.Settings = string(data)
	return nil
}

// Contact is one WhatsApp number as seen by one business. The same number
// messaging two businesses is two contacts with independent consent.
type Contact struct {
	BusinessCode  string     `gorm:"primaryKey;type:varchar(32)" json:"business_code"`
	WaID          string     `gorm:"primaryKey;type:varchar(32)" json:"wa_id"` // WhatsApp ID (phone number)
	Name          string     `gorm:"type:varchar(255)" json:"name"`
	Tags          string     `gorm:"type:text" json:"tags"` // JSON array
	Consent       string     `gorm:"type:varchar(20);default:'NEEDS_OPT_IN'" json:"consent"`
	LastInboundAt *time.Time `json:"last_inbound_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// TagList decodes the stored tags. Malformed values are treated as no tags.
func (c Contact) TagList() []string {
	var tags []string
	if err := json.Unmarshal([]byte(c.Tags), &tags); err != nil {
		return nil
	}
	return tags
}

// SetTags stores tags as a JSON array, dropping blanks and duplicates.
func (c *Contact) SetTags(tags []string) {
	clean := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok || t == "" {
			continue
		}
		seen[key] = struct{}{}
		clean = append(clean, t)
	}
	data, _ := json.Marshal(clean)
	c.Tags = string(data)
}

// AddTag appends tag unless the contact already carries it.
func (c *Contact) AddTag(tag string) {
	c.SetTags(append(c.TagList(), tag))
}

// ToPolicy snapshots the contact for audience resolution. Unknown consent
// values are treated as never opted in.
func (c Contact) ToPolicy() policy.Contact {
	consent, err := policy.ParseConsent(c.Consent)
	if err != nil {
		consent = policy.NeedsOptIn
	}
	return policy.Contact{ID: c.WaID, Tags: c.TagList(), Consent: consent}
}

// ScheduledMessage represents a campaign send to be dispatched at a future time
type ScheduledMessage struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CampaignID    string     `gorm:"type:varchar(36);index;not null" json:"campaign_id"`
	BusinessCode  string     `gorm:"type:varchar(32);index" json:"business_code"`
	RecipientWaID string     `gorm:"type:varchar(32)" json:"recipient_wa_id"`
	TemplateName  string     `gorm:"type:varchar(255)" json:"template_name"`
	Vars          string     `gorm:"type:text" json:"vars"` // JSON array
	RequestedTime time.Time  `json:"requested_time"`
	ScheduledTime time.Time  `gorm:"not null;index" json:"scheduled_time"`
	Shifted       bool       `json:"shifted"` // Moved out of quiet hours
	Status        string     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ScheduledMessage) TableName() string {
	return "scheduled_messages"
}

// AutomationLog represents one keyword rule evaluation
type AutomationLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BusinessCode string    `gorm:"type:varchar(32);index" json:"business_code"`
	Channel      string    `gorm:"type:varchar(16)" json:"channel"`
	RuleIndex    int       `json:"rule_index"`
	WaID         string    `gorm:"type:varchar(32)" json:"wa_id"`
	Message      string    `gorm:"type:text" json:"message"`
	Action       string    `gorm:"type:varchar(32)" json:"action"`
	Outcome      string    `gorm:"type:varchar(16);index" json:"outcome"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AutomationLog) TableName() string {
	return "automation_logs"
}

// ConsentEvent records a STOP/START style consent change
type ConsentEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BusinessCode string    `gorm:"type:varchar(32);index:idx_consent_contact" json:"business_code"`
	WaID         string    `gorm:"type:varchar(32);index:idx_consent_contact" json:"wa_id"`
	FromState    string    `gorm:"type:varchar(20)" json:"from_state"`
	ToState      string    `gorm:"type:varchar(20)" json:"to_state"`
	Keyword      string    `gorm:"type:varchar(32)" json:"keyword"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ConsentEvent) TableName() string {
	return "consent_events"
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&Business{},
		&Contact{},
		&ScheduledMessage{},
		&AutomationLog{},
		&ConsentEvent{},
	}
}
