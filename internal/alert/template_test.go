package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceTokensSubstitutesAllPatterns(t *testing.T) {
	result := ReplaceTokens(
		"__name__ is __rule_result__ (severity __severity__)",
		Tokens{Severity: "CRITICAL", Name: "rack-1"},
	)
	assert.Equal(t, "rack-1 is critical (severity CRITICAL)", result)
}

func TestReplaceTokensLeavesUnknownTokensAlone(t *testing.T) {
	result := ReplaceTokens("__name__ saw __unknown__", Tokens{Name: "rack-1"})
	assert.Equal(t, "rack-1 saw __unknown__", result)
}

func TestReplaceTokensHandlesRepeatedOccurrences(t *testing.T) {
	result := ReplaceTokens("__name__/__name__", Tokens{Name: "rack-1"})
	assert.Equal(t, "rack-1/rack-1", result)
}
