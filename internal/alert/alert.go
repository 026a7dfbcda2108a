// Package alert implements the Alert State Machine (§4.4): the six alert
// states, the transition table driven by each tick's evaluation result,
// acknowledgement handling, stale-alert expiry and description
// templating.
package alert

import (
	"strings"
	"time"

	"github.com/r3e-labs/ruleengine/internal/rule"
)

// State is one of the six alert lifecycle states.
type State string

const (
	StateActive     State = "ACTIVE"
	StateAckWIP     State = "ACK-WIP"
	StateAckPause   State = "ACK-PAUSE"
	StateAckIgnore  State = "ACK-IGNORE"
	StateAckSilence State = "ACK-SILENCE"
	StateResolved   State = "RESOLVED"
)

func (s State) isAck() bool {
	switch s {
	case StateAckWIP, StateAckPause, StateAckIgnore, StateAckSilence:
		return true
	default:
		return false
	}
}

// Alert is one (rule, element) instance, identified by "<rule>@<element>".
type Alert struct {
	RuleName    string
	Element     string
	Outcome     []string
	State       State
	Severity    string
	Description string
	Actions     []string
	Ctime       time.Time
	Mtime       time.Time
	TTL         time.Duration
	Results     map[string]rule.Outcome // snapshot of the rule's Outcome map at attach time
}

// ID formats the alert identifier "<rule>@<element>".
func (a *Alert) ID() string {
	return ID(a.RuleName, a.Element)
}

// ID formats an alert identifier from its parts.
func ID(ruleName, element string) string {
	return ruleName + "@" + element
}

// SplitID parses an alert identifier back into (rule, element). Per the
// resolved open question, the split is at the first '@', with the rule
// name taking everything before it and the element everything after —
// the straightforward reading, not the off-by-one some 1-based
// substring arithmetic produces.
func SplitID(id string) (ruleName, element string, ok bool) {
	sep := strings.IndexByte(id, '@')
	if sep < 0 {
		return "", "", false
	}
	return id[:sep], id[sep+1:], true
}

// EvalResult is the Evaluator's verdict for one (rule, element) in a
// single tick: either an outcome label was produced, or none was (the
// metric was missing/inactive and the rule was skipped, or the rule
// evaluated to "ok").
type EvalResult struct {
	Outcome []string // empty/nil means resolved-by-absence
	Present bool     // true if an evaluation actually ran for this tick
}

// Status classifies an EvalResult per §4.4's status(E) definition.
func (e EvalResult) status() string {
	if !e.Present || (len(e.Outcome) > 0 && e.Outcome[0] == "ok") {
		return "RESOLVED"
	}
	return "START"
}

// Apply advances an Alert (which may be nil, meaning "absent") according
// to the transition table of §4.4, returning the resulting Alert (nil if
// it stays absent) and whether a transition should be emitted.
func Apply(existing *Alert, ruleName, element string, e EvalResult, outcomeMap map[string]rule.Outcome, ttl time.Duration, now time.Time) (result *Alert, emit bool) {
	status := e.status()

	if existing == nil {
		if status == "START" {
			a := newAlert(ruleName, element, e.Outcome, outcomeMap, ttl, now)
			return a, true
		}
		return nil, false // absent + RESOLVED: no-op
	}

	if existing.State == StateResolved {
		if status == "START" {
			a := newAlert(ruleName, element, e.Outcome, outcomeMap, ttl, now)
			a.State = StateActive
			return a, true
		}
		return existing, false // RESOLVED + RESOLVED: no-op
	}

	if status == "START" {
		updated := *existing
		updated.Outcome = e.Outcome
		applyOutcomeFields(&updated, e.Outcome, outcomeMap)
		updated.Mtime = now
		return &updated, true
	}

	// any non-RESOLVED + RESOLVED
	updated := *existing
	updated.State = StateResolved
	updated.Mtime = now
	return &updated, true
}

func newAlert(ruleName, element string, outcome []string, outcomeMap map[string]rule.Outcome, ttl time.Duration, now time.Time) *Alert {
	a := &Alert{
		RuleName: ruleName,
		Element:  element,
		Outcome:  outcome,
		State:    StateActive,
		Ctime:    now,
		Mtime:    now,
		TTL:      ttl,
		Results:  outcomeMap,
	}
	applyOutcomeFields(a, outcome, outcomeMap)
	return a
}

func applyOutcomeFields(a *Alert, outcome []string, outcomeMap map[string]rule.Outcome) {
	label := "ok"
	if len(outcome) > 0 {
		label = outcome[0]
	}
	o := outcomeMap[label]
	a.Severity = o.Severity
	a.Description = o.Description
	a.Actions = o.Actions
}

// Acknowledge applies an external ACK-* or ACTIVE state change request.
// Per §4.4: RESOLVED may never be set this way, and requests other than
// RESOLVED are rejected once the alert itself is RESOLVED.
func (a *Alert) Acknowledge(requested State) error {
	if requested == StateResolved {
		return errRejectedDirectResolve
	}
	if a.State == StateResolved {
		return errCannotAckResolved
	}
	if requested == StateActive && a.State.isAck() {
		// evaluations, not operators, clear an ACK state back to ACTIVE.
		return errCannotClearAck
	}
	a.State = requested
	return nil
}

// Expire applies stale-alert handling (§4.4 "Expiry"): if now - mtime >
// ttl, return a cleared record (severity/description emptied, state/ttl
// preserved) and whether to drop it from memory (everything except
// ACTIVE is dropped once its stale record has been emitted).
func (a *Alert) Expire(now time.Time) (stale *Alert, emitStale bool, drop bool) {
	if a.TTL <= 0 || now.Sub(a.Mtime) <= a.TTL {
		return a, false, false
	}
	cleared := *a
	cleared.Severity = ""
	cleared.Description = ""
	return &cleared, true, a.State != StateActive
}

// Retire forcibly resolves an alert because its rule was deleted, its
// asset was retired, or its rule was implicitly replaced (rename).
func (a *Alert) Retire(description string, now time.Time) *Alert {
	retired := *a
	retired.State = StateResolved
	retired.Description = description
	retired.Severity = ""
	retired.Actions = nil
	retired.Mtime = now
	return &retired
}
