package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"
	"connect-gateway/internal/throttle"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUnknownBusiness is returned when no business has the given code.
var ErrUnknownBusiness = errors.New("unknown business")

// Publisher receives realtime events. The websocket hub implements it.
type Publisher interface {
	BroadcastEvent(eventType string, data interface{})
}

// EventRuleDecision is published whenever an inbound message matches a rule.
const EventRuleDecision = "rule_decision"

// Decision is the outcome of running one inbound message through a
// business's keyword rules.
type Decision struct {
	BusinessCode string            `json:"business_code"`
	Channel      policy.Channel    `json:"channel"`
	WaID         string            `json:"wa_id"`
	Text         string            `json:"text"`
	Outcome      string            `json:"outcome"`
	RuleIndex    int               `json:"rule_index"`
	Action       policy.ActionKind `json:"action,omitempty"`
	Rule         *policy.Rule      `json:"rule,omitempty"`
	RetryAt      *time.Time        `json:"retry_at,omitempty"`

	Result policy.MatchResult `json:"-"`
}

type Engine struct {
	db       *gorm.DB
	throttle throttle.Store
	pub      Publisher
	log      *zap.Logger

	// Now is the engine clock.
	Now func() time.Time

	locks sync.Map // business:channel -> *sync.Mutex
}

func NewEngine(db *gorm.DB, store throttle.Store, pub Publisher, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:       db,
		throttle: store,
		pub:      pub,
		log:      log.Named("automation"),
		Now:      time.Now,
	}
}

// lock serializes evaluation per business channel so a throttle read and
// the following write are never interleaved with another message.
func (e *Engine) lock(key string) func() {
	m, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ProcessInbound evaluates text against the rules of the business channel
// it arrived on. A matched rule is logged and published; the first match
// decides even when it is throttled.
func (e *Engine) ProcessInbound(ctx context.Context, businessCode string, ch policy.Channel, waID, text string) (Decision, error) {
	var biz models.Business
	if err := e.db.WithContext(ctx).Where("code = ?", businessCode).First(&biz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, fmt.Errorf("%w: %s", ErrUnknownBusiness, businessCode)
		}
		return Decision{}, err
	}
	settings, err := biz.PolicySettings()
	if err != nil {
		return Decision{}, fmt.Errorf("business %s settings: %w", businessCode, err)
	}
	rules := settings.Keywords.Rules(ch)

	unlock := e.lock(businessCode + ":" + string(ch))
	defer unlock()

	now := e.Now()
	var storeErr error
	lastFired := func(index int) (time.Time, bool) {
		at, ok, err := e.throttle.LastFired(ctx, throttle.Key(businessCode, ch, index))
		if err != nil {
			storeErr = err
			return time.Time{}, false
		}
		return at, ok
	}

	res := policy.Match(rules, text, now, lastFired)
	if storeErr != nil {
		return Decision{}, storeErr
	}

	d := Decision{
		BusinessCode: businessCode,
		Channel:      ch,
		WaID:         waID,
		Text:         text,
		Outcome:      res.Outcome.String(),
		RuleIndex:    res.Index,
		Result:       res,
	}
	if res.Outcome == policy.NoMatch {
		e.log.Debug("no rule matched", zap.String("business", businessCode), zap.String("channel", string(ch)))
		return d, nil
	}

	rule := res.Rule
	d.Rule = &rule
	d.Action = rule.Action.Kind()
	if res.Outcome == policy.Throttled {
		retry := res.RetryAt
		d.RetryAt = &retry
	} else {
		if err := e.throttle.MarkFired(ctx, throttle.Key(businessCode, ch, res.Index), now, rule.Throttle()); err != nil {
			return Decision{}, err
		}
	}

	entry := models.AutomationLog{
		BusinessCode: businessCode,
		Channel:      string(ch),
		RuleIndex:    res.Index,
		WaID:         waID,
		Message:      text,
		Action:       string(d.Action),
		Outcome:      d.Outcome,
	}
	if err := e.db.WithContext(ctx).Create(&entry).Error; err != nil {
		e.log.Warn("failed to write automation log", zap.Error(err))
	}

	e.log.Info("rule decision",
		zap.String("business", businessCode),
		zap.String("channel", string(ch)),
		zap.Int("rule", res.Index),
		zap.String("action", string(d.Action)),
		zap.String("outcome", d.Outcome),
	)
	if e.pub != nil {
		e.pub.BroadcastEvent(EventRuleDecision, d)
	}
	return d, nil
}
