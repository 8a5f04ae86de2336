// Package campaign previews and schedules template sends to a tagged
// audience, keeping customer sends out of the business quiet hours.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnknownBusiness  = errors.New("unknown business")
	ErrTemplateRejected = errors.New("template rejected")
	ErrVarsMismatch     = errors.New("vars do not match placeholders")
	ErrEmptyAudience    = errors.New("audience is empty")
	ErrInvalidID        = errors.New("invalid campaign id")
)

// EventCampaignScheduled is published after a campaign is persisted.
const EventCampaignScheduled = "campaign_scheduled"

// Publisher receives realtime events.
type Publisher interface {
	BroadcastEvent(eventType string, data interface{})
}

type Request struct {
	BusinessCode string         `json:"business_code" binding:"required"`
	Channel      policy.Channel `json:"channel"`
	TemplateName string         `json:"template_name" binding:"required"`
	TemplateBody string         `json:"template_body"`
	Vars         []string       `json:"vars"`
	Include      []string       `json:"include"`
	Exclude      []string       `json:"exclude"`
	Mode         string         `json:"mode"`
	// SendAt is the requested send instant. Zero means now.
	SendAt time.Time `json:"send_at"`
}

type Exclusion struct {
	WaID   string        `json:"wa_id"`
	Reason policy.Reason `json:"reason"`
}

type Preview struct {
	BusinessCode  string         `json:"business_code"`
	Channel       policy.Channel `json:"channel"`
	TemplateName  string         `json:"template_name"`
	Placeholders  int            `json:"placeholders"`
	Timezone      string         `json:"timezone"`
	QuietHours    string         `json:"quiet_hours"`
	Total         int            `json:"total"`
	Eligible      int            `json:"eligible"`
	Recipients    []string       `json:"recipients"`
	Excluded      []Exclusion    `json:"excluded"`
	RequestedTime time.Time      `json:"requested_time"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	Shifted       bool           `json:"shifted"`
}

type Campaign struct {
	ID string `json:"campaign_id"`
	Preview
}

type Planner struct {
	db  *gorm.DB
	pub Publisher
	log *zap.Logger

	Now func() time.Time
}

func NewPlanner(db *gorm.DB, pub Publisher, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{db: db, pub: pub, log: log.Named("campaign"), Now: time.Now}
}

// Preview validates the template, resolves the audience and computes the
// effective send time without persisting anything.
func (p *Planner) Preview(ctx context.Context, req Request) (Preview, error) {
	ch := req.Channel
	if ch == "" {
		ch = policy.ChannelCustomer
	}
	ch, err := policy.ParseChannel(string(ch))
	if err != nil {
		return Preview{}, err
	}

	if err := policy.ValidateTemplateName(req.TemplateName); err != nil {
		return Preview{}, err
	}
	check := policy.ValidatePlaceholders(req.TemplateBody)
	if !check.OK {
		return Preview{}, fmt.Errorf("%w: %s", ErrTemplateRejected, check.Reason)
	}
	if req.TemplateBody != "" && len(req.Vars) != check.Count {
		return Preview{}, fmt.Errorf("%w: body has %d, got %d", ErrVarsMismatch, check.Count, len(req.Vars))
	}

	criteria, err := policy.NewAudienceCriteria(req.Include, req.Exclude, req.Mode)
	if err != nil {
		return Preview{}, err
	}

	var biz models.Business
	if err := p.db.WithContext(ctx).Where("code = ?", req.BusinessCode).First(&biz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Preview{}, fmt.Errorf("%w: %s", ErrUnknownBusiness, req.BusinessCode)
		}
		return Preview{}, err
	}
	settings, err := biz.PolicySettings()
	if err != nil {
		return Preview{}, fmt.Errorf("business %s settings: %w", biz.Code, err)
	}

	var rows []models.Contact
	if err := p.db.WithContext(ctx).Where("business_code = ?", biz.Code).Order("created_at, wa_id").Find(&rows).Error; err != nil {
		return Preview{}, err
	}
	contacts := make([]policy.Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, r.ToPolicy())
	}
	eligible, excluded := policy.Partition(contacts, criteria)

	requested := req.SendAt
	if requested.IsZero() {
		requested = p.Now()
	}
	scheduled := requested
	if ch == policy.ChannelCustomer {
		scheduled = settings.QuietHours.Shift(requested)
	}

	out := Preview{
		BusinessCode:  biz.Code,
		Channel:       ch,
		TemplateName:  req.TemplateName,
		Placeholders:  check.Count,
		Timezone:      settings.Timezone,
		QuietHours:    settings.QuietHours.String(),
		Total:         len(contacts),
		Eligible:      len(eligible),
		Recipients:    make([]string, 0, len(eligible)),
		Excluded:      make([]Exclusion, 0, len(excluded)),
		RequestedTime: requested,
		ScheduledTime: scheduled,
		Shifted:       !scheduled.Equal(requested),
	}
	for _, c := range eligible {
		out.Recipients = append(out.Recipients, c.ID)
	}
	for _, x := range excluded {
		out.Excluded = append(out.Excluded, Exclusion{WaID: x.Contact.ID, Reason: x.Reason})
	}
	return out, nil
}

// Schedule previews the request and persists one pending message per
// recipient under a new campaign id.
func (p *Planner) Schedule(ctx context.Context, req Request) (Campaign, error) {
	preview, err := p.Preview(ctx, req)
	if err != nil {
		return Campaign{}, err
	}
	if preview.Eligible == 0 {
		return Campaign{}, ErrEmptyAudience
	}

	vars, err := json.Marshal(nonNil(req.Vars))
	if err != nil {
		return Campaign{}, err
	}

	id := uuid.NewString()
	msgs := make([]models.ScheduledMessage, 0, len(preview.Recipients))
	for _, waID := range preview.Recipients {
		msgs = append(msgs, models.ScheduledMessage{
			CampaignID:    id,
			BusinessCode:  preview.BusinessCode,
			RecipientWaID: waID,
			TemplateName:  preview.TemplateName,
			Vars:          string(vars),
			RequestedTime: preview.RequestedTime,
			ScheduledTime: preview.ScheduledTime,
			Shifted:       preview.Shifted,
			Status:        "pending",
		})
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&msgs, 100).Error
	})
	if err != nil {
		return Campaign{}, fmt.Errorf("persist campaign: %w", err)
	}

	c := Campaign{ID: id, Preview: preview}
	p.log.Info("campaign scheduled",
		zap.String("campaign_id", id),
		zap.String("business", preview.BusinessCode),
		zap.Int("recipients", preview.Eligible),
		zap.Time("scheduled_time", preview.ScheduledTime),
		zap.Bool("shifted", preview.Shifted),
	)
	if p.pub != nil {
		p.pub.BroadcastEvent(EventCampaignScheduled, c)
	}
	return c, nil
}

// Messages returns the scheduled messages of a campaign.
func (p *Planner) Messages(ctx context.Context, campaignID string) ([]models.ScheduledMessage, error) {
	id, err := uuid.Parse(strings.TrimSpace(campaignID))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidID, campaignID, err)
	}
	var msgs []models.ScheduledMessage
	err = p.db.WithContext(ctx).Where("campaign_id = ?", id.String()).Order("id").Find(&msgs).Error
	return msgs, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
