package evaluator

import (
	"testing"
	"time"

	"github.com/r3e-labs/ruleengine/internal/alert"
	"github.com/r3e-labs/ruleengine/internal/asset"
	"github.com/r3e-labs/ruleengine/internal/metric"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	emitted []*alert.Alert
	failNext bool
}

func (e *recordingEmitter) Emit(a *alert.Alert) error {
	if e.failNext {
		e.failNext = false
		return assert.AnError
	}
	cp := *a
	e.emitted = append(e.emitted, &cp)
	return nil
}

func newTestStore(t *testing.T) *rulestore.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := rulestore.Open(dir, nil)
	require.NoError(t, err)
	return store
}

func TestThresholdHotPath(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Add([]byte(`{
		"threshold": {
			"name": "temp-threshold",
			"assets": "rack-1",
			"metrics": "temperature",
			"evaluation": "function main(v) { if (Number(v) > Number(high_critical)) { return ['CRITICAL']; } return ['ok']; }",
			"values": [{"high_critical": "35"}],
			"results": [{"CRITICAL": {"severity": "CRITICAL", "description": "__name__ hot", "action": ["EMAIL"]}}]
		}
	}`))
	require.NoError(t, err)

	metrics := metric.NewTable(time.Minute)
	metrics.Update(metric.Key("temperature", "rack-1"), "40")

	emitter := &recordingEmitter{}
	ev := New(store, metrics, asset.NewDatabase(), emitter, time.Hour, nil)

	ev.Tick(time.Now())

	require.Len(t, emitter.emitted, 1)
	assert.Equal(t, alert.StateActive, emitter.emitted[0].State)
	assert.Equal(t, "CRITICAL", emitter.emitted[0].Severity)
}

func TestPatternRuleIteration(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Add([]byte(`{
		"pattern": {
			"name": "load-pattern",
			"assets": "epdu-1",
			"metrics": "load\\.input\\..*",
			"evaluation": "function main(key, value) { if (Number(value) > 80) { return ['CRITICAL']; } return ['ok']; }",
			"results": [{"CRITICAL": {"severity": "CRITICAL", "description": "overload"}}]
		}
	}`))
	require.NoError(t, err)

	metrics := metric.NewTable(time.Minute)
	metrics.Update(metric.Key("load.input.L1", "epdu-1"), "90")
	metrics.Update(metric.Key("load.input.L2", "epdu-1"), "10")
	metrics.Update(metric.Key("other.metric", "epdu-1"), "999")

	emitter := &recordingEmitter{}
	ev := New(store, metrics, asset.NewDatabase(), emitter, time.Hour, nil)
	ev.Tick(time.Now())

	require.Len(t, emitter.emitted, 1)
	assert.Equal(t, "CRITICAL", emitter.emitted[0].Severity)
}

// TestPatternRuleElementIsAssetAfterAt seeds active metrics matching the
// pattern across two assets and one key with no asset at all, mirroring
// the three-key scenario used to derive the alert element: it must be
// the substring after '@' in the matched key, not the key itself.
func TestPatternRuleElementIsAssetAfterAt(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Add([]byte(`{
		"pattern": {
			"name": "pattern1",
			"assets": "epdu-1",
			"metrics": "pattern1\\.metric1@.*",
			"evaluation": "function main(key, value) { if (Number(value) > 80) { return ['CRITICAL']; } return ['ok']; }",
			"results": [{"CRITICAL": {"severity": "CRITICAL", "description": "matched"}}]
		}
	}`))
	require.NoError(t, err)

	metrics := metric.NewTable(time.Minute)
	metrics.Update(metric.Key("pattern1.metric1", "asset5"), "90")
	metrics.Update(metric.Key("pattern1.metric1", "asset6"), "91")
	metrics.Update(metric.Key("pattern1.metric1", ""), "92")

	emitter := &recordingEmitter{}
	ev := New(store, metrics, asset.NewDatabase(), emitter, time.Hour, nil)
	ev.Tick(time.Now())

	require.Len(t, emitter.emitted, 3)
	elements := make(map[string]bool, 3)
	for _, a := range emitter.emitted {
		elements[a.Element] = true
		assert.Equal(t, alert.ID("pattern1", a.Element), a.ID())
	}
	assert.Equal(t, map[string]bool{"asset5": true, "asset6": true, "": true}, elements)
}

func TestAckBlocksResolve(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Add([]byte(`{
		"threshold": {
			"name": "temp-threshold",
			"assets": "rack-1",
			"metrics": "temperature",
			"evaluation": "function main(v) { if (Number(v) > 35) { return ['CRITICAL']; } return ['ok']; }",
			"results": [{"CRITICAL": {"severity": "CRITICAL", "description": "hot"}}]
		}
	}`))
	require.NoError(t, err)

	metrics := metric.NewTable(time.Minute)
	metrics.Update(metric.Key("temperature", "rack-1"), "40")

	emitter := &recordingEmitter{}
	ev := New(store, metrics, asset.NewDatabase(), emitter, time.Hour, nil)
	ev.Tick(time.Now())
	require.Len(t, emitter.emitted, 1)

	id := alert.ID("temp-threshold", "rack-1")
	require.NoError(t, ev.Acknowledge(id, alert.StateAckWIP))
	assert.Equal(t, alert.StateAckWIP, ev.alerts[id].State)

	metrics.Update(metric.Key("temperature", "rack-1"), "10")
	ev.Tick(time.Now())
	assert.Equal(t, alert.StateResolved, ev.alerts[id].State, "an ok evaluation resolves the alert even from an ACK state")
}

func TestMissingMetricSkipsRuleWithoutProducingAlert(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Add([]byte(`{
		"single": {
			"name": "door-rule",
			"assets": "rack-door-1",
			"metrics": "door.status",
			"evaluation": "function main(v) { return [v]; }",
			"results": []
		}
	}`))
	require.NoError(t, err)

	metrics := metric.NewTable(time.Minute)
	emitter := &recordingEmitter{}
	ev := New(store, metrics, asset.NewDatabase(), emitter, time.Hour, nil)
	ev.Tick(time.Now())

	assert.Empty(t, emitter.emitted)
}

func TestEmitFailureRetriesNextTick(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Add([]byte(`{
		"single": {
			"name": "door-rule",
			"assets": "rack-door-1",
			"metrics": "door.status",
			"evaluation": "function main(v) { return ['CRITICAL']; }",
			"results": [{"CRITICAL": {"severity": "CRITICAL", "description": "open"}}]
		}
	}`))
	require.NoError(t, err)

	metrics := metric.NewTable(time.Minute)
	metrics.Update(metric.Key("door.status", "rack-door-1"), "open")

	emitter := &recordingEmitter{failNext: true}
	ev := New(store, metrics, asset.NewDatabase(), emitter, time.Hour, nil)

	ev.Tick(time.Now())
	assert.Empty(t, emitter.emitted, "failed emission should not be recorded")

	ev.Tick(time.Now())
	assert.NotEmpty(t, emitter.emitted, "pending transition should be retried next tick")
}

