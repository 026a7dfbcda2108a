package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWireSingleOutcomeOmitsCountAndIndex(t *testing.T) {
	a := &Alert{
		RuleName: "r", Element: "e", State: StateActive,
		Severity: "WARNING", Description: "d", Actions: []string{"EMAIL"},
		Outcome: []string{"high"},
		Ctime:   time.Unix(1000, 0), Mtime: time.Unix(1010, 0), TTL: 5 * time.Minute,
	}
	w := a.Wire()
	assert.Equal(t, "1000", w.Aux["ctime"])
	assert.Equal(t, "high", w.Aux["outcome"])
	assert.NotContains(t, w.Aux, "outcome_count")
	assert.Equal(t, "r", w.Rule)
	assert.Equal(t, "e", w.Element)
	assert.Equal(t, int64(300), w.TTL)
}

func TestWireMultipleOutcomesIncludeIndexedLabels(t *testing.T) {
	a := &Alert{Outcome: []string{"a", "b", "c"}, Ctime: time.Unix(1, 0)}
	w := a.Wire()
	assert.Equal(t, "3", w.Aux["outcome_count"])
	assert.Equal(t, "a", w.Aux["outcome.0"])
	assert.Equal(t, "c", w.Aux["outcome.2"])
}

func TestWireResolvedHasNoOutcome(t *testing.T) {
	a := &Alert{State: StateResolved, Ctime: time.Unix(1, 0)}
	w := a.Wire()
	assert.NotContains(t, w.Aux, "outcome")
}
