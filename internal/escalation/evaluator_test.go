package escalation

import (
	"testing"

	"github.com/deskwise/deskwise/internal/store"
)

func rules() []store.EscalationRule {
	return []store.EscalationRule{
		{ID: 1, ComplexityThreshold: 70, TeamID: 10, Priority: 1, Enabled: true},
		{ID: 2, ComplexityThreshold: 85, TeamID: 20, Priority: 5, Enabled: true},
		{ID: 3, ComplexityThreshold: 85, TeamID: 30, Priority: 5, Enabled: true},
		{ID: 4, ComplexityThreshold: 50, TeamID: 40, Priority: 9, Enabled: false},
	}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name        string
		score       int
		threshold   int
		defaultTeam int64
		rules       []store.EscalationRule
		want        Decision
	}{
		{
			name:      "score at threshold never escalates",
			score:     70,
			threshold: 70,
			rules:     rules(),
			want:      Decision{},
		},
		{
			name:      "one past threshold escalates",
			score:     71,
			threshold: 70,
			rules:     rules(),
			want:      Decision{ShouldEscalate: true, TeamID: 10, RuleID: 1},
		},
		{
			name:      "highest priority matching rule wins",
			score:     90,
			threshold: 70,
			rules:     rules(),
			want:      Decision{ShouldEscalate: true, TeamID: 20, RuleID: 2},
		},
		{
			name:      "priority tie breaks to lowest rule id",
			score:     86,
			threshold: 70,
			rules:     rules(),
			want:      Decision{ShouldEscalate: true, TeamID: 20, RuleID: 2},
		},
		{
			name:      "disabled rules are skipped",
			score:     95,
			threshold: 40,
			rules:     []store.EscalationRule{{ID: 4, ComplexityThreshold: 50, TeamID: 40, Priority: 9, Enabled: false}},
			want:      Decision{},
		},
		{
			name:      "no matching rule means no escalation",
			score:     75,
			threshold: 70,
			rules:     []store.EscalationRule{{ID: 2, ComplexityThreshold: 85, TeamID: 20, Priority: 5, Enabled: true}},
			want:      Decision{},
		},
		{
			name:      "empty rule set",
			score:     99,
			threshold: 70,
			rules:     nil,
			want:      Decision{},
		},
		{
			name:        "default team catches unmatched score",
			score:       75,
			threshold:   70,
			defaultTeam: 99,
			rules:       []store.EscalationRule{{ID: 2, ComplexityThreshold: 85, TeamID: 20, Priority: 5, Enabled: true}},
			want:        Decision{ShouldEscalate: true, TeamID: 99},
		},
		{
			name:        "matching rule beats the default team",
			score:       90,
			threshold:   70,
			defaultTeam: 99,
			rules:       rules(),
			want:        Decision{ShouldEscalate: true, TeamID: 20, RuleID: 2},
		},
		{
			name:        "default team never fires below threshold",
			score:       70,
			threshold:   70,
			defaultTeam: 99,
			rules:       rules(),
			want:        Decision{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.score, tc.threshold, tc.defaultTeam, tc.rules)
			if got != tc.want {
				t.Fatalf("Evaluate(%d, %d) = %+v, want %+v", tc.score, tc.threshold, got, tc.want)
			}
		})
	}
}

// Rule thresholds are inclusive lower bounds while the operator threshold
// is a strict gate. A rule whose threshold equals the score still matches.
func TestRuleThresholdInclusive(t *testing.T) {
	r := []store.EscalationRule{{ID: 7, ComplexityThreshold: 80, TeamID: 5, Priority: 1, Enabled: true}}
	got := Evaluate(80, 60, 0, r)
	if !got.ShouldEscalate || got.TeamID != 5 {
		t.Fatalf("rule at score boundary should match: %+v", got)
	}
}
