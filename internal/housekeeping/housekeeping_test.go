package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-labs/ruleengine/internal/metric"
)

func TestMetricSweeperExpiresStaleEntries(t *testing.T) {
	table := metric.NewTable(time.Millisecond)
	table.Update(metric.Key("temp", "rack-1"), "42")

	sweeper := NewMetricSweeper(table, "@every 10ms", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sweeper.Start(ctx))
	defer sweeper.Stop(context.Background())

	require.Eventually(t, func() bool {
		return table.IsInactive(metric.Key("temp", "rack-1"))
	}, time.Second, 5*time.Millisecond)
}

func TestNewMetricSweeperDefaultsSchedule(t *testing.T) {
	sweeper := NewMetricSweeper(metric.NewTable(0), "", nil)
	assert.Equal(t, DefaultMetricSweepSchedule, sweeper.schedule)
}
