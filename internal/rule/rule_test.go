package rule

import (
	"testing"

	"github.com/r3e-labs/ruleengine/internal/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThresholdRule(t *testing.T) {
	doc := []byte(`{
		"threshold": {
			"name": "temperature-threshold",
			"description": "temperature out of range",
			"assets": "dc-rack-1",
			"metrics": "temperature",
			"evaluation": "if value > high_critical then return CRITICAL end",
			"values": [{"high_critical": "35"}, {"high_warning": "30"}],
			"results": [
				{"CRITICAL": {"severity": "CRITICAL", "description": "__name__ too hot", "action": ["EMAIL"]}}
			]
		}
	}`)

	r, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, KindThreshold, r.Kind)
	assert.Equal(t, "temperature-threshold", r.Name)
	assert.Equal(t, []string{"dc-rack-1"}, r.Assets)
	assert.Equal(t, "35", r.Variables["high_critical"])
	assert.Equal(t, "CRITICAL", r.Results["CRITICAL"].Severity)
	assert.Equal(t, []string{"EMAIL"}, r.Results["CRITICAL"].Actions)
}

func TestParseThresholdRuleRejectsUnknownVariable(t *testing.T) {
	doc := []byte(`{
		"threshold": {
			"name": "bad-threshold",
			"assets": "dc-rack-1",
			"metrics": "temperature",
			"evaluation": "return OK",
			"values": [{"not_a_real_variable": "1"}],
			"results": []
		}
	}`)

	_, err := Parse(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrSemantic)
}

func TestParsePatternRuleRequiresSingleAssetAndMetric(t *testing.T) {
	doc := []byte(`{
		"pattern": {
			"name": "ups-load-pattern",
			"assets": ["ups-1", "ups-2"],
			"metrics": "load.*",
			"evaluation": "return OK",
			"results": []
		}
	}`)

	_, err := Parse(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrSemantic)
}

func TestParseGenericRuleNeverRequiresExpression(t *testing.T) {
	doc := []byte(`{"generic": {"name": "maintenance-note", "assets": "dc-rack-1"}}`)

	r, err := Parse(doc)
	require.NoError(t, err)
	assert.False(t, r.Evaluates())
}

func TestParseRejectsMultipleTopLevelMembers(t *testing.T) {
	doc := []byte(`{"single": {"name": "a"}, "pattern": {"name": "b"}}`)

	_, err := Parse(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrJSON)
}

func TestOutcomeActionsLegacyAndGPOInteractionRoundTrip(t *testing.T) {
	doc := []byte(`{
		"single": {
			"name": "door-open",
			"assets": "rack-door-1",
			"evaluation": "return WARNING",
			"results": [
				{"WARNING": {
					"severity": "WARNING",
					"description": "__name__ open",
					"action": [
						"EMAIL",
						{"action": "GPO_INTERACTION", "asset": "gpo-1", "mode": "open"}
					]
				}}
			]
		}
	}`)

	r, err := Parse(doc)
	require.NoError(t, err)
	actions := r.Results["WARNING"].Actions
	require.Len(t, actions, 2)
	assert.Equal(t, "EMAIL", actions[0])
	assert.Equal(t, "GPO_INTERACTION:gpo-1:open", actions[1])

	out, err := Serialize(r)
	require.NoError(t, err)

	r2, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, r.Results["WARNING"].Actions, r2.Results["WARNING"].Actions)
}

func TestWithVariablesCopiesRatherThanMutates(t *testing.T) {
	doc := []byte(`{
		"threshold": {
			"name": "power-threshold",
			"assets": "pdu-1",
			"metrics": "power",
			"evaluation": "return OK",
			"values": [{"high_critical": "1000"}]
		}
	}`)
	r, err := Parse(doc)
	require.NoError(t, err)

	rebound := r.WithVariables(map[string]string{"high_critical": "2000"})
	assert.Equal(t, "1000", r.Variables["high_critical"])
	assert.Equal(t, "2000", rebound.Variables["high_critical"])
}

func TestFileNameMatchesRuleName(t *testing.T) {
	r := &Rule{Name: "my-rule"}
	assert.Equal(t, "my-rule.rule", r.FileName())
}
