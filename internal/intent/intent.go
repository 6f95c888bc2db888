// Package intent maps transcripts to skills with an ordered rule table.
//
// Rules are tried top to bottom against the lowercased transcript and the
// first match wins, so a rule's position is its priority. [DefaultRules] is
// the production table; anything it does not claim goes to the fallback
// skill.
package intent

import (
	"fmt"
	"strings"
)

// Skill identifies the skill that handles an intent. Values double as metric
// labels.
type Skill string

const (
	AddToInventory  Skill = "add_to_inventory"
	InventoryQuery  Skill = "inventory_query"
	SystemTelemetry Skill = "system_telemetry"
	Conversational  Skill = "conversational"
	CloudFallback   Skill = "cloud_fallback"
)

// Intent is a routed transcript.
type Intent struct {
	Skill      Skill
	Transcript string

	// Rule is the name of the rule that matched, empty for the fallback.
	Rule string
}

// Rule claims a transcript for Skill when it contains every phrase in AllOf
// and, if AnyOf is non-empty, at least one phrase in AnyOf. Phrases are
// matched as lowercase substrings.
type Rule struct {
	Name  string
	Skill Skill
	AllOf []string
	AnyOf []string
}

// Matches reports whether r claims the already lowercased transcript.
func (r Rule) Matches(lower string) bool {
	for _, p := range r.AllOf {
		if !strings.Contains(lower, p) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return len(r.AllOf) > 0
	}
	for _, p := range r.AnyOf {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DefaultRules is the production routing table. Order matters: a transcript
// that mentions both "add" and "inventory" must reach AddToInventory before
// the broader inventory rule sees it.
var DefaultRules = []Rule{
	{Name: "add-inventory", Skill: AddToInventory, AllOf: []string{"add", "inventory"}},
	{Name: "inventory", Skill: InventoryQuery, AllOf: []string{"inventory"}},
	{Name: "temperature", Skill: SystemTelemetry, AllOf: []string{"temperature"}},
	{Name: "small-talk", Skill: Conversational, AnyOf: []string{"who are you", "what can you do"}},
}

// Router resolves transcripts against a rule table.
type Router struct {
	rules    []Rule
	fallback Skill
}

// NewRouter returns a Router over rules with fallback for unmatched
// transcripts. Rules with no phrases or no skill are rejected.
func NewRouter(rules []Rule, fallback Skill) (*Router, error) {
	if fallback == "" {
		return nil, fmt.Errorf("intent: fallback skill must be set")
	}
	for i, r := range rules {
		if r.Skill == "" {
			return nil, fmt.Errorf("intent: rule %d (%s) has no skill", i, r.Name)
		}
		if len(r.AllOf) == 0 && len(r.AnyOf) == 0 {
			return nil, fmt.Errorf("intent: rule %d (%s) has no phrases", i, r.Name)
		}
		for _, p := range append(append([]string(nil), r.AllOf...), r.AnyOf...) {
			if p == "" || p != strings.ToLower(p) {
				return nil, fmt.Errorf("intent: rule %d (%s) phrase %q must be non-empty lowercase", i, r.Name, p)
			}
		}
	}
	return &Router{rules: append([]Rule(nil), rules...), fallback: fallback}, nil
}

// Default returns a Router over [DefaultRules] falling back to CloudFallback.
func Default() *Router {
	r, err := NewRouter(DefaultRules, CloudFallback)
	if err != nil {
		panic(err)
	}
	return r
}

// Route returns the intent for transcript. It never fails: unmatched input
// goes to the fallback skill.
func (r *Router) Route(transcript string) Intent {
	lower := strings.ToLower(transcript)
	for _, rule := range r.rules {
		if rule.Matches(lower) {
			return Intent{Skill: rule.Skill, Transcript: transcript, Rule: rule.Name}
		}
	}
	return Intent{Skill: r.fallback, Transcript: transcript}
}

// Rules returns a copy of the table in priority order.
func (r *Router) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}
