// Package catalog holds the built-in keyword rule packs and sample
// businesses, read from an embedded YAML document.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"connect-gateway/internal/policy"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a named rule pack.
type Preset struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Summary  string         `json:"summary"`
	Keywords policy.RuleSet `json:"keywords"`
}

// SampleBusiness describes a business seeded into an empty database.
type SampleBusiness struct {
	Code             string `yaml:"code"`
	Name             string `yaml:"name"`
	Timezone         string `yaml:"timezone"`
	Ruleset          string `yaml:"ruleset"`
	PhoneNumberID    string `yaml:"phone_number_id"`
	OpsPhoneNumberID string `yaml:"ops_phone_number_id"`
}

type Catalog struct {
	presets    map[string]Preset
	order      []string
	businesses []SampleBusiness
}

type document struct {
	Presets []struct {
		ID      string `yaml:"id"`
		Label   string `yaml:"label"`
		Summary string `yaml:"summary"`
		// Decoded generically and re-read through the rule JSON codec so
		// both formats share one set of field names and checks.
		Keywords map[string]interface{} `yaml:"keywords"`
	} `yaml:"presets"`
	Businesses []SampleBusiness `yaml:"businesses"`
}

// Load parses the embedded presets.
func Load() (*Catalog, error) {
	return Parse(presetsYAML)
}

// Parse builds a catalog from a presets document. Every pack is validated
// and every sample business must reference a known pack.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}

	c := &Catalog{presets: make(map[string]Preset, len(doc.Presets))}
	for i, p := range doc.Presets {
		if p.ID == "" {
			return nil, fmt.Errorf("preset %d: missing id", i)
		}
		if _, dup := c.presets[p.ID]; dup {
			return nil, fmt.Errorf("preset %q: duplicate id", p.ID)
		}
		raw, err := json.Marshal(p.Keywords)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		rules, err := policy.ParseRuleSet(raw)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		c.presets[p.ID] = Preset{ID: p.ID, Label: p.Label, Summary: p.Summary, Keywords: rules}
		c.order = append(c.order, p.ID)
	}

	for _, b := range doc.Businesses {
		if _, ok := c.presets[b.Ruleset]; !ok {
			return nil, fmt.Errorf("business %q: unknown ruleset %q", b.Code, b.Ruleset)
		}
		if _, err := policy.LoadLocation(b.Timezone); err != nil {
			return nil, fmt.Errorf("business %q: %w", b.Code, err)
		}
		c.businesses = append(c.businesses, b)
	}
	return c, nil
}

// Get returns the preset with the given id.
func (c *Catalog) Get(id string) (Preset, bool) {
	p, ok := c.presets[id]
	return p, ok
}

// IDs lists preset ids in document order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Presets lists every preset in document order.
func (c *Catalog) Presets() []Preset {
	out := make([]Preset, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.presets[id])
	}
	return out
}

// Businesses returns the sample businesses sorted by code.
func (c *Catalog) Businesses() []SampleBusiness {
	out := append([]SampleBusiness(nil), c.businesses...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Settings builds the business settings for a sample business: its
// timezone, the default quiet hours, and its preset's rules.
func (c *Catalog) Settings(b SampleBusiness, quiet policy.QuietHours) (policy.BusinessSettings, error) {
	p, ok := c.presets[b.Ruleset]
	if !ok {
		return policy.BusinessSettings{}, fmt.Errorf("unknown ruleset %q", b.Ruleset)
	}
	return policy.NewBusinessSettings(b.Timezone, quiet, p.Keywords)
}
