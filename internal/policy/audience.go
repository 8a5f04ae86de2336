package policy

import (
	"strings"
)

type Consent string

const (
	OptedIn      Consent = "OPTED_IN"
	NeedsOptIn   Consent = "NEEDS_OPT_IN"
	Unsubscribed Consent = "UNSUBSCRIBED"
)

// ParseConsent maps a stored or submitted value onto a Consent. An empty
// value means the contact never opted in.
func ParseConsent(s string) (Consent, error) {
	switch Consent(strings.ToUpper(strings.TrimSpace(s))) {
	case OptedIn:
		return OptedIn, nil
	case NeedsOptIn, "":
		return NeedsOptIn, nil
	case Unsubscribed:
		return Unsubscribed, nil
	}
	return "", invalid("consent", ErrUnknownConsent, "%q", s)
}

// Contact is the caller's snapshot of a recipient for one evaluation.
type Contact struct {
	ID      string
	Tags    []string
	Consent Consent
}

// HasTag reports whether the contact carries tag, ignoring case.
func (c Contact) HasTag(tag string) bool {
	tag = normalizeTag(tag)
	for _, t := range c.Tags {
		if normalizeTag(t) == tag {
			return true
		}
	}
	return false
}

type MatchMode string

const (
	MatchAny MatchMode = "ANY"
	MatchAll MatchMode = "ALL"
)

// ImplicitExcludes are always part of the effective exclude set.
var ImplicitExcludes = []string{"stop", "unsubscribed"}

// AudienceCriteria selects campaign recipients by tag.
//
// With an empty include set, ANY matches nobody while ALL matches every
// contact that is not excluded.
type AudienceCriteria struct {
	Include []string
	Exclude []string
	Mode    MatchMode
}

// NewAudienceCriteria validates the mode. An empty mode defaults to ANY.
func NewAudienceCriteria(include, exclude []string, mode string) (AudienceCriteria, error) {
	m := MatchMode(strings.ToUpper(strings.TrimSpace(mode)))
	switch m {
	case "":
		m = MatchAny
	case MatchAny, MatchAll:
	default:
		return AudienceCriteria{}, invalid("mode", ErrUnknownMode, "%q", mode)
	}
	return AudienceCriteria{Include: include, Exclude: exclude, Mode: m}, nil
}

// EffectiveExclude returns the caller's exclusions plus the implicit ones,
// normalized and without duplicates.
func (a AudienceCriteria) EffectiveExclude() []string {
	out := make([]string, 0, len(a.Exclude)+len(ImplicitExcludes))
	seen := make(map[string]struct{}, cap(out))
	add := func(tags []string) {
		for _, t := range tags {
			t = normalizeTag(t)
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	add(a.Exclude)
	add(ImplicitExcludes)
	return out
}

// Reason explains why a contact is left out of an audience.
type Reason string

const (
	ReasonEligible        Reason = ""
	ReasonNotOptedIn      Reason = "not_opted_in"
	ReasonExcludedTag     Reason = "excluded_tag"
	ReasonIncludeMismatch Reason = "include_mismatch"
	ReasonDuplicate       Reason = "duplicate"
)

// Explain returns ReasonEligible when c would be included, otherwise the
// first rule that keeps it out. Duplicates are only detectable in Resolve.
func Explain(c Contact, criteria AudienceCriteria) Reason {
	if c.Consent != OptedIn {
		return ReasonNotOptedIn
	}
	tags := tagSet(c.Tags)
	for _, t := range criteria.EffectiveExclude() {
		if _, ok := tags[t]; ok {
			return ReasonExcludedTag
		}
	}
	if !includes(tags, criteria) {
		return ReasonIncludeMismatch
	}
	return ReasonEligible
}

func includes(tags map[string]struct{}, criteria AudienceCriteria) bool {
	include := tagSet(criteria.Include)
	if criteria.Mode == MatchAll {
		for t := range include {
			if _, ok := tags[t]; !ok {
				return false
			}
		}
		return true
	}
	for t := range include {
		if _, ok := tags[t]; ok {
			return true
		}
	}
	return false
}

// Exclusion pairs a contact with the reason it was dropped.
type Exclusion struct {
	Contact Contact
	Reason  Reason
}

// Resolve filters contacts down to the eligible audience, keeping input order.
// Each identifier appears at most once.
func Resolve(contacts []Contact, criteria AudienceCriteria) []Contact {
	out, _ := Partition(contacts, criteria)
	return out
}

// Partition is Resolve that also reports every dropped contact with its reason.
func Partition(contacts []Contact, criteria AudienceCriteria) ([]Contact, []Exclusion) {
	var (
		included []Contact
		excluded []Exclusion
	)
	seen := make(map[string]struct{}, len(contacts))
	for _, c := range contacts {
		id := strings.TrimSpace(c.ID)
		if _, dup := seen[id]; dup {
			excluded = append(excluded, Exclusion{Contact: c, Reason: ReasonDuplicate})
			continue
		}
		seen[id] = struct{}{}
		if r := Explain(c, criteria); r != ReasonEligible {
			excluded = append(excluded, Exclusion{Contact: c, Reason: r})
			continue
		}
		included = append(included, c)
	}
	if included == nil {
		included = []Contact{}
	}
	return included, excluded
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
