// Package rule implements rule representation, validation and the
// load/serialize contract described for the rule store and factory: a rule
// names the telemetry it consumes, bounds the assets it applies to, and
// carries a small embedded expression mapping observed values to a named
// outcome.
package rule

import "fmt"

// Kind identifies which rule variant a document represents. The Factory
// dispatches on the single top-level JSON member carrying one of these
// values.
type Kind string

const (
	KindSingle    Kind = "single"
	KindPattern   Kind = "pattern"
	KindThreshold Kind = "threshold"
	KindFlexible  Kind = "flexible"
	KindGeneric   Kind = "generic"
)

func (k Kind) valid() bool {
	switch k {
	case KindSingle, KindPattern, KindThreshold, KindFlexible, KindGeneric:
		return true
	default:
		return false
	}
}

// Severity levels carried by an Outcome. The set is open-ended (operators
// may use custom severities) but these are the well-known values.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// ThresholdVariables lists the only variable names a threshold rule may
// declare (§3 kind-specific invariants).
var ThresholdVariables = map[string]bool{
	"low_critical":  true,
	"low_warning":   true,
	"high_critical": true,
	"high_warning":  true,
}

// Outcome is a named branch of a rule: the severity, description template
// and actions to take when the rule's expression returns this label.
type Outcome struct {
	Severity      string   `json:"-"`
	Description   string   `json:"-"`
	Actions       []string `json:"-"`
	ThresholdName string   `json:"-"`
}

// Rule is the immutable, parsed representation of a rule document. Rule
// values are produced exclusively by Factory.Parse and are never mutated in
// place except for variable rebinding (Rule.WithVariables), which is an
// explicit copy-and-recompile operation.
type Rule struct {
	Name         string
	Kind         Kind
	Description  string
	Class        string
	Categories   []string
	Metrics      []string
	Assets       []string
	Results      map[string]Outcome
	Variables    map[string]string
	Expression   string
	OutcomeItems int
	Source       string
	ValuesUnit   string
	Hierarchy    string
	Models       []string // flexible only
}

// FileName returns the canonical on-disk file name for the rule, per the
// persistence contract `<name>.rule`.
func (r *Rule) FileName() string {
	return r.Name + ".rule"
}

// Evaluates reports whether the rule kind runs its expression at all.
// `generic` rules are parsed but never evaluated.
func (r *Rule) Evaluates() bool {
	return r.Kind != KindGeneric
}

// SingleAsset returns the rule's sole asset for single-asset kinds
// (single/pattern), and false if the rule does not have exactly one.
func (r *Rule) SingleAsset() (string, bool) {
	if len(r.Assets) != 1 {
		return "", false
	}
	return r.Assets[0], true
}

// WithVariables returns a copy of the rule with Variables replaced.
// Per §4.1, rebinding global variables is an explicit operation that
// invalidates any compiled expression; callers must recompile after calling
// this.
func (r *Rule) WithVariables(vars map[string]string) *Rule {
	clone := *r
	clone.Variables = make(map[string]string, len(vars))
	for k, v := range vars {
		clone.Variables[k] = v
	}
	return &clone
}

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(%s, kind=%s, assets=%v, metrics=%v)", r.Name, r.Kind, r.Assets, r.Metrics)
}
