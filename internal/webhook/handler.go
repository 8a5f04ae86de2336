package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connect-gateway/internal/automation"
	"connect-gateway/internal/config"
	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"
	wa "connect-gateway/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventConsentUpdate is published when an inbound keyword changes consent.
const EventConsentUpdate = "consent_update"

// ConsentUpdate is the payload of a consent_update event.
type ConsentUpdate struct {
	BusinessCode string         `json:"business_code"`
	WaID         string         `json:"wa_id"`
	From         policy.Consent `json:"from"`
	To           policy.Consent `json:"to"`
	Keyword      string         `json:"keyword"`
}

type Handler struct {
	Config           *config.Config
	AutomationEngine *automation.Engine

	db  *gorm.DB
	pub automation.Publisher
	log *zap.Logger

	// Now is the handler clock.
	Now func() time.Time
}

func NewHandler(cfg *config.Config, db *gorm.DB, automationEngine *automation.Engine, pub automation.Publisher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Config:           cfg,
		AutomationEngine: automationEngine,
		db:               db,
		pub:              pub,
		log:              log.Named("webhook"),
		Now:              time.Now,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			h.log.Info("webhook verified")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

func (h *Handler) HandleMessage(c *gin.Context) {
	var payload wa.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("invalid webhook payload", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	h.Ingest(c.Request.Context(), payload)

	// Meta retries anything but 200, so per-message failures are only logged.
	c.Status(http.StatusOK)
}

// Ingest processes every text message in the payload and returns the
// automation decisions that were made.
func (h *Handler) Ingest(ctx context.Context, payload wa.WebhookPayload) []automation.Decision {
	var decisions []automation.Decision
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if len(value.Messages) == 0 {
				continue
			}
			biz, ch, err := h.resolveBusiness(ctx, value.Metadata.PhoneNumberID)
			if err != nil {
				h.log.Warn("message for unknown number",
					zap.String("phone_number_id", value.Metadata.PhoneNumberID), zap.Error(err))
				continue
			}
			for _, msg := range value.Messages {
				d, ok, err := h.handleMessage(ctx, biz, ch, value, msg)
				if err != nil {
					h.log.Error("failed to process message",
						zap.String("business", biz.Code), zap.String("message_id", msg.ID), zap.Error(err))
					continue
				}
				if ok {
					decisions = append(decisions, d)
				}
			}
		}
	}
	return decisions
}

// resolveBusiness maps the receiving number to its business and channel.
func (h *Handler) resolveBusiness(ctx context.Context, phoneNumberID string) (models.Business, policy.Channel, error) {
	var biz models.Business
	if phoneNumberID == "" {
		return biz, "", gorm.ErrRecordNotFound
	}
	err := h.db.WithContext(ctx).
		Where("phone_number_id = ? OR ops_phone_number_id = ?", phoneNumberID, phoneNumberID).
		First(&biz).Error
	if err != nil {
		return biz, "", err
	}
	if biz.OpsPhoneNumberID == phoneNumberID {
		return biz, policy.ChannelOps, nil
	}
	return biz, policy.ChannelCustomer, nil
}

func (h *Handler) handleMessage(ctx context.Context, biz models.Business, ch policy.Channel, value wa.ChangeValue, msg wa.InboundMessage) (automation.Decision, bool, error) {
	text, hasText := msg.TextContent()
	h.log.Debug("inbound message",
		zap.String("business", biz.Code), zap.String("channel", string(ch)),
		zap.String("from", msg.From), zap.String("type", msg.Type))

	if ch == policy.ChannelCustomer {
		contact, err := h.touchContact(ctx, biz.Code, msg.From, value.ProfileName(msg.From))
		if err != nil {
			return automation.Decision{}, false, err
		}
		if hasText {
			handled, err := h.applyConsent(ctx, biz.Code, contact, text)
			if err != nil || handled {
				return automation.Decision{}, false, err
			}
		}
	}

	if !hasText || h.AutomationEngine == nil {
		return automation.Decision{}, false, nil
	}
	d, err := h.AutomationEngine.ProcessInbound(ctx, biz.Code, ch, msg.From, text)
	if err != nil {
		return automation.Decision{}, false, err
	}
	return d, true, nil
}

// touchContact creates the contact on first contact and records the time of
// its latest inbound message.
func (h *Handler) touchContact(ctx context.Context, businessCode, waID, name string) (models.Contact, error) {
	now := h.Now()
	var contact models.Contact
	err := h.db.WithContext(ctx).
		Where(models.Contact{BusinessCode: businessCode, WaID: waID}).
		Attrs(models.Contact{Name: name, Tags: "[]", Consent: string(policy.NeedsOptIn)}).
		FirstOrCreate(&contact).Error
	if err != nil {
		return contact, err
	}

	updates := map[string]interface{}{"last_inbound_at": now}
	if contact.Name == "" && name != "" {
		updates["name"] = name
	}
	if err := h.db.WithContext(ctx).Model(&contact).Updates(updates).Error; err != nil {
		return contact, err
	}
	return contact, nil
}

// applyConsent handles STOP/START style keywords. It reports whether text
// was a consent keyword; such messages are not passed to keyword rules.
func (h *Handler) applyConsent(ctx context.Context, businessCode string, contact models.Contact, text string) (bool, error) {
	current, err := policy.ParseConsent(contact.Consent)
	if err != nil {
		current = policy.NeedsOptIn
	}
	next, keyword, changed := policy.ConsentTransition(current, text)
	if keyword == "" {
		return false, nil
	}
	if !changed {
		return true, nil
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Contact{}).
			Where("business_code = ? AND wa_id = ?", businessCode, contact.WaID).
			Update("consent", string(next))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("contact disappeared")
		}
		return tx.Create(&models.ConsentEvent{
			BusinessCode: businessCode,
			WaID:         contact.WaID,
			FromState:    string(current),
			ToState:      string(next),
			Keyword:      keyword,
		}).Error
	})
	if err != nil {
		return true, err
	}

	h.log.Info("consent changed",
		zap.String("business", businessCode), zap.String("wa_id", contact.WaID),
		zap.String("from", string(current)), zap.String("to", string(next)))
	if h.pub != nil {
		h.pub.BroadcastEvent(EventConsentUpdate, ConsentUpdate{
			BusinessCode: businessCode,
			WaID:         contact.WaID,
			From:         current,
			To:           next,
			Keyword:      keyword,
		})
	}
	return true, nil
}
