package alert

import (
	"testing"
	"time"

	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outcomes = map[string]rule.Outcome{
	"CRITICAL": {Severity: "CRITICAL", Description: "__name__ too hot", Actions: []string{"EMAIL"}},
}

func TestApplyCreatesAlertOnStartFromAbsent(t *testing.T) {
	now := time.Now()
	result, emit := Apply(nil, "temp-rule", "rack-1", EvalResult{Outcome: []string{"CRITICAL"}, Present: true}, outcomes, time.Minute, now)
	require.True(t, emit)
	require.NotNil(t, result)
	assert.Equal(t, StateActive, result.State)
	assert.Equal(t, "CRITICAL", result.Severity)
	assert.Equal(t, now, result.Ctime)
}

func TestApplyAbsentAndResolvedIsNoop(t *testing.T) {
	result, emit := Apply(nil, "temp-rule", "rack-1", EvalResult{Present: false}, outcomes, time.Minute, time.Now())
	assert.False(t, emit)
	assert.Nil(t, result)
}

func TestApplyReactivatesFromResolved(t *testing.T) {
	existing := &Alert{RuleName: "temp-rule", Element: "rack-1", State: StateResolved}
	now := time.Now()
	result, emit := Apply(existing, "temp-rule", "rack-1", EvalResult{Outcome: []string{"CRITICAL"}, Present: true}, outcomes, time.Minute, now)
	require.True(t, emit)
	assert.Equal(t, StateActive, result.State)
	assert.Equal(t, now, result.Ctime)
}

func TestApplyUpdatesFieldsWithoutDowngradingAckState(t *testing.T) {
	existing := &Alert{RuleName: "temp-rule", Element: "rack-1", State: StateAckWIP, Severity: "WARNING"}
	result, emit := Apply(existing, "temp-rule", "rack-1", EvalResult{Outcome: []string{"CRITICAL"}, Present: true}, outcomes, time.Minute, time.Now())
	require.True(t, emit)
	assert.Equal(t, StateAckWIP, result.State)
	assert.Equal(t, "CRITICAL", result.Severity)
}

func TestApplyResolvesActiveAlertOnOK(t *testing.T) {
	existing := &Alert{RuleName: "temp-rule", Element: "rack-1", State: StateActive}
	result, emit := Apply(existing, "temp-rule", "rack-1", EvalResult{Outcome: []string{"ok"}, Present: true}, outcomes, time.Minute, time.Now())
	require.True(t, emit)
	assert.Equal(t, StateResolved, result.State)
}

func TestApplyResolvedToResolvedIsNoop(t *testing.T) {
	existing := &Alert{RuleName: "temp-rule", Element: "rack-1", State: StateResolved}
	result, emit := Apply(existing, "temp-rule", "rack-1", EvalResult{Present: false}, outcomes, time.Minute, time.Now())
	assert.False(t, emit)
	assert.Equal(t, StateResolved, result.State)
}

func TestAcknowledgeRejectsDirectResolve(t *testing.T) {
	a := &Alert{State: StateActive}
	err := a.Acknowledge(StateResolved)
	require.Error(t, err)
	assert.Equal(t, StateActive, a.State)
}

func TestAcknowledgeBlocksOnceResolved(t *testing.T) {
	a := &Alert{State: StateResolved}
	err := a.Acknowledge(StateAckWIP)
	require.Error(t, err)
}

func TestAcknowledgeSetsAckState(t *testing.T) {
	a := &Alert{State: StateActive}
	err := a.Acknowledge(StateAckPause)
	require.NoError(t, err)
	assert.Equal(t, StateAckPause, a.State)
}

func TestSplitIDRoundTrip(t *testing.T) {
	id := ID("temp-rule@ups", "rack-1@sensor")
	ruleName, element, ok := SplitID(id)
	require.True(t, ok)
	assert.Equal(t, "temp-rule@ups", ruleName)
	assert.Equal(t, "rack-1@sensor", element)
}

func TestExpireDropsNonActiveAfterTTL(t *testing.T) {
	now := time.Now()
	a := &Alert{State: StateResolved, Mtime: now.Add(-2 * time.Minute), TTL: time.Minute}
	stale, emit, drop := a.Expire(now)
	require.True(t, emit)
	require.True(t, drop)
	assert.Empty(t, stale.Severity)
	assert.Equal(t, StateResolved, stale.State)
}

func TestExpireKeepsActiveForReevaluation(t *testing.T) {
	now := time.Now()
	a := &Alert{State: StateActive, Mtime: now.Add(-2 * time.Minute), TTL: time.Minute}
	_, emit, drop := a.Expire(now)
	assert.True(t, emit)
	assert.False(t, drop)
}

func TestRetireSetsResolvedWithDescription(t *testing.T) {
	a := &Alert{State: StateActive, Severity: "CRITICAL"}
	retired := a.Retire("Rule deleted", time.Now())
	assert.Equal(t, StateResolved, retired.State)
	assert.Equal(t, "Rule deleted", retired.Description)
	assert.Empty(t, retired.Severity)
}
