package intent

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestRoute_DefaultTable(t *testing.T) {
	t.Parallel()
	r := Default()
	tests := []struct {
		transcript string
		want       Skill
	}{
		{"add two beakers to inventory", AddToInventory},
		{"Add a flask to the Inventory", AddToInventory},
		{"what is the inventory for beakers", InventoryQuery},
		{"show me the inventory", InventoryQuery},
		{"what is the cpu temperature", SystemTelemetry},
		{"who are you", Conversational},
		{"so what can you do exactly", Conversational},
		{"why is the sky blue", CloudFallback},
		{"add milk to the shopping list", CloudFallback},
		{"", CloudFallback},
	}
	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			t.Parallel()
			got := r.Route(tt.transcript)
			if got.Skill != tt.want {
				t.Errorf("Route(%q) = %s, want %s", tt.transcript, got.Skill, tt.want)
			}
			if got.Transcript != tt.transcript {
				t.Errorf("Transcript = %q, want unchanged input", got.Transcript)
			}
		})
	}
}

func TestRoute_FirstMatchWins(t *testing.T) {
	t.Parallel()
	r := Default()
	// Matches the temperature rule and the small-talk rule as well.
	got := r.Route("what can you do about the inventory temperature")
	if got.Skill != InventoryQuery || got.Rule != "inventory" {
		t.Errorf("Route() = %+v, want inventory rule", got)
	}
}

// Any transcript mentioning both "add" and "inventory" resolves to
// AddToInventory whatever else it contains.
func TestRoute_AddBeatsQuery(t *testing.T) {
	t.Parallel()
	r := Default()
	word := rapid.SampledFrom([]string{"add", "inventory", "for", "temperature", "who are you", "beakers", "the", "to", "Add", "INVENTORY"})
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOf(word).Draw(t, "words")
		s := strings.Join(words, " ")
		lower := strings.ToLower(s)
		got := r.Route(s).Skill
		hasAdd, hasInv := strings.Contains(lower, "add"), strings.Contains(lower, "inventory")
		switch {
		case hasAdd && hasInv && got != AddToInventory:
			t.Fatalf("Route(%q) = %s, want add_to_inventory", s, got)
		case !hasAdd && hasInv && got != InventoryQuery:
			t.Fatalf("Route(%q) = %s, want inventory_query", s, got)
		}
	})
}

func TestRule_Matches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		rule  Rule
		input string
		want  bool
	}{
		{"all present", Rule{AllOf: []string{"add", "inventory"}}, "add to inventory", true},
		{"one missing", Rule{AllOf: []string{"add", "inventory"}}, "show inventory", false},
		{"any hit", Rule{AnyOf: []string{"x", "who are you"}}, "hey who are you", true},
		{"any miss", Rule{AnyOf: []string{"x", "y"}}, "z", false},
		{"all and any", Rule{AllOf: []string{"a"}, AnyOf: []string{"b"}}, "a c", false},
		{"empty rule never matches", Rule{}, "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.rule.Matches(tt.input); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewRouter_Validates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		rules    []Rule
		fallback Skill
	}{
		{"no fallback", DefaultRules, ""},
		{"no skill", []Rule{{Name: "x", AllOf: []string{"a"}}}, CloudFallback},
		{"no phrases", []Rule{{Name: "x", Skill: InventoryQuery}}, CloudFallback},
		{"uppercase phrase", []Rule{{Name: "x", Skill: InventoryQuery, AllOf: []string{"Inventory"}}}, CloudFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewRouter(tt.rules, tt.fallback); err == nil {
				t.Error("NewRouter() expected error")
			}
		})
	}
}

func TestRouter_RulesIsCopy(t *testing.T) {
	t.Parallel()
	r := Default()
	rules := r.Rules()
	rules[0].Skill = CloudFallback
	if r.Route("add one flask to inventory").Skill != AddToInventory {
		t.Error("mutating Rules() must not change routing")
	}
	if len(rules) != len(DefaultRules) {
		t.Errorf("len(Rules()) = %d, want %d", len(rules), len(DefaultRules))
	}
}
