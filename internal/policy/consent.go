package policy

import (
	"strings"
	"time"
)

// FreeFormWindow is how long after a customer's last message a business may
// reply without a template.
const FreeFormWindow = 24 * time.Hour

var consentKeywords = map[string]Consent{
	"STOP":        Unsubscribed,
	"UNSUBSCRIBE": Unsubscribed,
	"START":       OptedIn,
}

// ConsentTransition applies an inbound opt-out or opt-in keyword. The whole
// message must be the keyword. It returns the resulting state, the keyword
// that matched, and whether the state changed.
func ConsentTransition(current Consent, text string) (next Consent, keyword string, changed bool) {
	kw := strings.ToUpper(strings.TrimSpace(text))
	target, ok := consentKeywords[kw]
	if !ok {
		return current, "", false
	}
	return target, kw, target != current
}

// CanSendFreeForm reports whether a plain-text reply is still allowed.
func CanSendFreeForm(lastInbound, now time.Time) bool {
	if lastInbound.IsZero() {
		return false
	}
	return now.Sub(lastInbound) <= FreeFormWindow
}
