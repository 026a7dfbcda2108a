package alert

import "strings"

// Tokens are the substitution variables a description template may
// reference (§3 Outcome.description). __rule_result__ is derived, never
// supplied directly: it is the lowercased severity.
type Tokens struct {
	Severity          string
	Name              string
	Ename             string
	LogicalAsset      string
	LogicalAssetEname string
	NormalState       string
	Port              string
}

// tokenOrder fixes the substitution order: each pattern is replaced
// everywhere, left to right, before the next pattern is considered —
// matching the original implementation's sequential find/replace loop.
// Each later pattern's pass scans the whole result, including values
// substituted by earlier passes; only within a single pattern's pass is
// substituted text not rescanned.
var tokenOrder = []string{
	"__severity__",
	"__name__",
	"__ename__",
	"__logicalasset_iname__",
	"__logicalasset__",
	"__normalstate__",
	"__port__",
	"__rule_result__",
}

// ReplaceTokens substitutes every occurrence of each token in template, in
// tokenOrder, with its corresponding value from t.
func ReplaceTokens(template string, t Tokens) string {
	replacements := []string{
		t.Severity,
		t.Name,
		t.Ename,
		t.LogicalAssetEname,
		t.LogicalAsset,
		t.NormalState,
		t.Port,
		strings.ToLower(t.Severity),
	}

	result := template
	for i, pattern := range tokenOrder {
		result = replaceAll(result, pattern, replacements[i])
	}
	return result
}

// replaceAll performs a left-to-right, position-advancing replacement
// identical in effect to strings.ReplaceAll but spelled out to mirror the
// original's explicit find/replace loop (no re-scanning of already
// substituted text, which matters when a replacement value contains
// another pattern's literal substring).
func replaceAll(s, pattern, replacement string) string {
	if pattern == "" {
		return s
	}
	var b strings.Builder
	pos := 0
	for {
		idx := strings.Index(s[pos:], pattern)
		if idx < 0 {
			b.WriteString(s[pos:])
			break
		}
		b.WriteString(s[pos : pos+idx])
		b.WriteString(replacement)
		pos += idx + len(pattern)
	}
	return b.String()
}
