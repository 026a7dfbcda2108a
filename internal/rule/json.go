package rule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/r3e-labs/ruleengine/internal/errcode"
)

// wireOutcome is the canonical on-the-wire shape of an Outcome, matching the
// rule file format (§6): description, severity, threshold_name and an
// `action` array whose members are either bare strings (legacy) or
// `{action, asset, mode}` objects.
type wireOutcome struct {
	Severity      string          `json:"severity"`
	Description   string          `json:"description"`
	ThresholdName string          `json:"threshold_name,omitempty"`
	Action        json.RawMessage `json:"action"`
}

// wireBody holds the canonical fields shared by every rule kind (§6).
type wireBody struct {
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Class            string            `json:"class,omitempty"`
	Categories       []string          `json:"categories"`
	Metrics          json.RawMessage   `json:"metrics"`
	Assets           json.RawMessage   `json:"assets"`
	Results          []json.RawMessage `json:"results"`
	Values           []json.RawMessage `json:"values"`
	Evaluation       string            `json:"evaluation,omitempty"`
	OutcomeItemCount int               `json:"outcome_item_count,omitempty"`
	ValuesUnit       string            `json:"values_unit,omitempty"`
	Hierarchy        string            `json:"hierarchy,omitempty"`
	Source           string            `json:"source,omitempty"`
	Models           []string          `json:"models,omitempty"`
}

// Parse decodes a rule document: a single JSON object with exactly one
// member whose name is the kind. It performs both JSON-shape validation and
// the kind-specific semantic validation described in §3/§4.1, returning
// errors wrapping errcode sentinels.
func Parse(data []byte) (*Rule, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode rule document: %w", errcode.ErrJSON)
	}
	if len(root) != 1 {
		return nil, fmt.Errorf("rule document must have exactly one top-level member, got %d: %w", len(root), errcode.ErrJSON)
	}
	var kindStr string
	var body wireBody
	for k, raw := range root {
		kindStr = k
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode rule body for kind %q: %w", k, errcode.ErrJSON)
		}
	}
	kind := Kind(kindStr)
	if !kind.valid() {
		return nil, fmt.Errorf("unknown rule kind %q: %w", kindStr, errcode.ErrJSON)
	}

	metrics, err := decodeStringOrArray(body.Metrics)
	if err != nil {
		return nil, fmt.Errorf("decode metrics: %w", errcode.ErrJSON)
	}
	assets, err := decodeStringOrArray(body.Assets)
	if err != nil {
		return nil, fmt.Errorf("decode assets: %w", errcode.ErrJSON)
	}

	results := make(map[string]Outcome, len(body.Results))
	for _, raw := range body.Results {
		var member map[string]wireOutcome
		if err := json.Unmarshal(raw, &member); err != nil {
			return nil, fmt.Errorf("decode result entry: %w", errcode.ErrJSON)
		}
		for label, wo := range member {
			actions, err := decodeActions(wo.Action)
			if err != nil {
				return nil, fmt.Errorf("decode actions for outcome %q: %w", label, err)
			}
			results[label] = Outcome{
				Severity:      wo.Severity,
				Description:   wo.Description,
				ThresholdName: wo.ThresholdName,
				Actions:       actions,
			}
		}
	}

	variables := make(map[string]string, len(body.Values))
	for _, raw := range body.Values {
		var member map[string]string
		if err := json.Unmarshal(raw, &member); err != nil {
			return nil, fmt.Errorf("decode values entry: %w", errcode.ErrJSON)
		}
		for k, v := range member {
			variables[k] = v
		}
	}

	if body.OutcomeItemCount <= 0 {
		body.OutcomeItemCount = 1
	}

	r := &Rule{
		Name:         body.Name,
		Kind:         kind,
		Description:  body.Description,
		Class:        body.Class,
		Categories:   body.Categories,
		Metrics:      metrics,
		Assets:       assets,
		Results:      results,
		Variables:    variables,
		Expression:   body.Evaluation,
		OutcomeItems: body.OutcomeItemCount,
		ValuesUnit:   body.ValuesUnit,
		Hierarchy:    body.Hierarchy,
		Source:       body.Source,
		Models:       body.Models,
	}

	if err := validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

func validate(r *Rule) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required: %w", errcode.ErrSemantic)
	}
	if len(r.Assets) == 0 && r.Kind != KindGeneric {
		return fmt.Errorf("assets is required: %w", errcode.ErrSemantic)
	}

	switch r.Kind {
	case KindSingle:
		if len(r.Assets) != 1 {
			return fmt.Errorf("single rule must name exactly one asset, got %d: %w", len(r.Assets), errcode.ErrSemantic)
		}
		if strings.TrimSpace(r.Expression) == "" {
			return fmt.Errorf("single rule requires a non-empty expression: %w", errcode.ErrSemantic)
		}
	case KindPattern:
		if len(r.Assets) != 1 {
			return fmt.Errorf("pattern rule must name exactly one asset, got %d: %w", len(r.Assets), errcode.ErrSemantic)
		}
		if len(r.Metrics) != 1 {
			return fmt.Errorf("pattern rule must declare exactly one metric (a regex), got %d: %w", len(r.Metrics), errcode.ErrSemantic)
		}
		if strings.TrimSpace(r.Expression) == "" {
			return fmt.Errorf("pattern rule requires a non-empty expression: %w", errcode.ErrSemantic)
		}
	case KindThreshold:
		for name := range r.Variables {
			if !ThresholdVariables[name] {
				return fmt.Errorf("threshold rule variable %q is not one of the recognised threshold names: %w", name, errcode.ErrSemantic)
			}
		}
		if strings.TrimSpace(r.Expression) == "" {
			return fmt.Errorf("threshold rule requires a non-empty expression: %w", errcode.ErrSemantic)
		}
	case KindFlexible:
		if strings.TrimSpace(r.Expression) == "" {
			return fmt.Errorf("flexible rule requires a non-empty expression: %w", errcode.ErrSemantic)
		}
	case KindGeneric:
		// parsed only; no further invariants.
	}
	return nil
}

func decodeStringOrArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// decodeActions parses the `action` array of an Outcome, handling both the
// legacy bare-string form and the structured object form, normalizing
// GPO_INTERACTION entries to a single "GPO_INTERACTION:<asset>:<mode>"
// string (§6 "Outcome serialization").
func decodeActions(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w", errcode.ErrJSON)
	}
	actions := make([]string, 0, len(items))
	for _, item := range items {
		var legacy string
		if err := json.Unmarshal(item, &legacy); err == nil {
			actions = append(actions, legacy)
			continue
		}
		var obj struct {
			Action string `json:"action"`
			Asset  string `json:"asset"`
			Mode   string `json:"mode"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("invalid action entry: %w", errcode.ErrJSON)
		}
		switch obj.Action {
		case "GPO_INTERACTION":
			actions = append(actions, fmt.Sprintf("GPO_INTERACTION:%s:%s", obj.Asset, obj.Mode))
		case "":
			return nil, fmt.Errorf("action object missing \"action\": %w", errcode.ErrJSON)
		default:
			actions = append(actions, obj.Action)
		}
	}
	return actions, nil
}

// Serialize renders the rule back to its canonical wire format: a single
// object keyed by kind.
func Serialize(r *Rule) ([]byte, error) {
	body := wireBody{
		Name:             r.Name,
		Description:      r.Description,
		Class:            r.Class,
		Categories:       r.Categories,
		Evaluation:       r.Expression,
		OutcomeItemCount: r.OutcomeItems,
		ValuesUnit:       r.ValuesUnit,
		Hierarchy:        r.Hierarchy,
		Source:           r.Source,
		Models:           r.Models,
	}

	if raw, err := encodeStringOrArray(r.Metrics); err != nil {
		return nil, err
	} else {
		body.Metrics = raw
	}
	if raw, err := encodeStringOrArray(r.Assets); err != nil {
		return nil, err
	} else {
		body.Assets = raw
	}

	labels := make([]string, 0, len(r.Results))
	for label := range r.Results {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		o := r.Results[label]
		actionsRaw, err := encodeActions(o.Actions)
		if err != nil {
			return nil, err
		}
		wo := wireOutcome{
			Severity:      o.Severity,
			Description:   o.Description,
			ThresholdName: o.ThresholdName,
			Action:        actionsRaw,
		}
		entry, err := json.Marshal(map[string]wireOutcome{label: wo})
		if err != nil {
			return nil, err
		}
		body.Results = append(body.Results, entry)
	}

	varNames := make([]string, 0, len(r.Variables))
	for name := range r.Variables {
		varNames = append(varNames, name)
	}
	sort.Strings(varNames)
	for _, name := range varNames {
		entry, err := json.Marshal(map[string]string{name: r.Variables[name]})
		if err != nil {
			return nil, err
		}
		body.Values = append(body.Values, entry)
	}

	root := map[string]wireBody{string(r.Kind): body}
	return json.Marshal(root)
}

func encodeStringOrArray(values []string) (json.RawMessage, error) {
	if len(values) == 1 {
		return json.Marshal(values[0])
	}
	return json.Marshal(values)
}

func encodeActions(actions []string) (json.RawMessage, error) {
	type actionObj struct {
		Action string `json:"action"`
		Asset  string `json:"asset,omitempty"`
		Mode   string `json:"mode,omitempty"`
	}
	out := make([]actionObj, 0, len(actions))
	for _, a := range actions {
		if strings.HasPrefix(a, "GPO_INTERACTION:") {
			parts := strings.SplitN(a, ":", 3)
			obj := actionObj{Action: "GPO_INTERACTION"}
			if len(parts) > 1 {
				obj.Asset = parts[1]
			}
			if len(parts) > 2 {
				obj.Mode = parts[2]
			}
			out = append(out, obj)
			continue
		}
		out = append(out, actionObj{Action: a})
	}
	return json.Marshal(out)
}
