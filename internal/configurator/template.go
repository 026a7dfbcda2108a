package configurator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template is a rule document with placeholder tokens (`__name__` and
// similar) that the Configurator substitutes with a concrete asset
// identifier before submitting the result to the Rule Store (§4.5).
type Template struct {
	Family     string   `json:"family"`      // e.g. "voltage.input_1phase"
	AssetTypes []string `json:"asset_types"` // literal asset-type prefixes this template applies to, e.g. ["ups","epdu"]
	Rule       json.RawMessage `json:"rule"`
}

func (t Template) appliesToType(assetType string) bool {
	if len(t.AssetTypes) == 0 {
		return true
	}
	for _, want := range t.AssetTypes {
		if strings.EqualFold(want, assetType) {
			return true
		}
	}
	return false
}

// instantiate substitutes every `__name__` placeholder found in the raw
// template rule document with the concrete asset identifier (the
// template's own `name` field is expected to contain `__name__`, e.g.
// `"<family>@__name__"`, so substitution also produces the concrete rule
// name) and returns the resulting rule document bytes plus that name.
func (t Template) instantiate(assetName string) ([]byte, string, error) {
	substituted := strings.ReplaceAll(string(t.Rule), "__name__", assetName)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(substituted), &probe); err != nil {
		return nil, "", fmt.Errorf("template %s produced invalid JSON after substitution: %w", t.Family, err)
	}
	var ruleName string
	for _, body := range probe {
		var withName struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &withName); err == nil {
			ruleName = withName.Name
		}
	}
	if ruleName == "" {
		return nil, "", fmt.Errorf("template %s has no name field after substitution", t.Family)
	}
	return []byte(substituted), ruleName, nil
}

// LoadLibrary reads every `*.template` file in dir and returns the parsed
// Templates. Malformed templates are skipped with an error collected for
// the caller to log; loading continues.
func LoadLibrary(dir string) ([]Template, []error) {
	var templates []Template
	var errs []error

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read template directory %s: %w", dir, err)}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".template") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		var tmpl Template
		if err := json.Unmarshal(data, &tmpl); err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", path, err))
			continue
		}
		if tmpl.Family == "" {
			errs = append(errs, fmt.Errorf("%s: missing family", path))
			continue
		}
		templates = append(templates, tmpl)
	}
	return templates, errs
}
