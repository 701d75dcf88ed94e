// Package escalation decides whether a scored ticket should be routed to a
// specialist team. The decision is a pure function of the score and the
// configured rules; persisting the resulting assignment is the caller's job.
package escalation

import "github.com/deskwise/deskwise/internal/store"

// Decision is the outcome of evaluating one complexity score.
type Decision struct {
	ShouldEscalate bool
	TeamID         int64
	RuleID         int64
}

// Evaluate routes a ticket when its complexity score strictly exceeds the
// operator threshold and an enabled rule covers the score. Among matching
// rules the highest priority wins; ties go to the lowest rule id. A score
// exactly at the threshold never escalates. When the score clears the
// threshold but no rule matches, a non-zero defaultTeamID catches the
// ticket (RuleID stays 0).
func Evaluate(score int, complexityThreshold int, defaultTeamID int64, rules []store.EscalationRule) Decision {
	if score <= complexityThreshold {
		return Decision{}
	}

	var best *store.EscalationRule
	for i := range rules {
		r := &rules[i]
		if !r.Enabled || r.ComplexityThreshold > score {
			continue
		}
		if best == nil || r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		if defaultTeamID > 0 {
			return Decision{ShouldEscalate: true, TeamID: defaultTeamID}
		}
		return Decision{}
	}
	return Decision{ShouldEscalate: true, TeamID: best.TeamID, RuleID: best.ID}
}
