package policy

import (
	"strings"
	"time"
)

type Outcome int

const (
	NoMatch Outcome = iota
	Fired
	// Throttled means the first matching rule fired too recently. Later rules
	// are not consulted.
	Throttled
)

func (o Outcome) String() string {
	switch o {
	case Fired:
		return "fired"
	case Throttled:
		return "throttled"
	}
	return "no_match"
}

// MatchResult is the outcome of evaluating one inbound message.
type MatchResult struct {
	Outcome Outcome
	// Index is the position of the selected rule, or -1 on NoMatch.
	Index int
	Rule  Rule
	// Action is set only when Outcome is Fired.
	Action Action
	// RetryAt is the earliest instant the throttled rule may fire again.
	RetryAt time.Time
}

// LastFiredFunc returns when the rule at index last fired. The engine calls
// it at most once, for the selected rule only.
type LastFiredFunc func(index int) (time.Time, bool)

// Matches reports whether any trigger of r matches text.
func (r Rule) Matches(text string) bool {
	for _, t := range r.Triggers {
		if matchTrigger(r.Match, t, text) {
			return true
		}
	}
	return false
}

func matchTrigger(m MatchType, trigger, text string) bool {
	switch m {
	case MatchExact:
		return strings.TrimSpace(text) == strings.TrimSpace(trigger)
	case MatchContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(trigger))
	case MatchStartsWith:
		return strings.HasPrefix(strings.ToLower(text), strings.ToLower(trigger))
	}
	return false
}

// Match selects the first rule matching text. A throttled first match
// suppresses the message instead of falling through.
func Match(rules []Rule, text string, now time.Time, lastFired LastFiredFunc) MatchResult {
	for i, r := range rules {
		if !r.Matches(text) {
			continue
		}
		res := MatchResult{Index: i, Rule: r}
		if r.ThrottleSec > 0 && lastFired != nil {
			if last, ok := lastFired(i); ok {
				next := last.Add(r.Throttle())
				if now.Before(next) {
					res.Outcome = Throttled
					res.RetryAt = next
					return res
				}
			}
		}
		res.Outcome = Fired
		res.Action = r.Action
		return res
	}
	return MatchResult{Outcome: NoMatch, Index: -1}
}
