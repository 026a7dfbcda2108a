// Package housekeeping runs periodic maintenance jobs that sit outside the
// Trigger/Evaluator's own tick cadence. The Metric table's move from
// active_metrics to inactive_metrics on expiry (§3 "Metric table") would
// otherwise only happen if something called metric.Table.ExpireStale;
// MetricSweeper is that caller, driven by its own cron schedule so a slow
// evaluator tick interval doesn't also slow down stale-entry eviction.
package housekeeping

import (
	"context"

	"github.com/robfig/cron/v3"

	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/metric"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// DefaultMetricSweepSchedule runs the sweep once a minute.
const DefaultMetricSweepSchedule = "@every 1m"

// MetricSweeper calls metric.Table.ExpireStale on a cron schedule,
// independent of how often the Evaluator ticks.
type MetricSweeper struct {
	cron     *cron.Cron
	table    *metric.Table
	schedule string
	log      *logger.Logger
}

// NewMetricSweeper builds a sweeper over table. schedule accepts either a
// standard five-field cron expression or cron's "@every <duration>"
// shorthand; an empty schedule falls back to DefaultMetricSweepSchedule.
func NewMetricSweeper(table *metric.Table, schedule string, log *logger.Logger) *MetricSweeper {
	if log == nil {
		log = logger.NewDefault("housekeeping.metric-sweep")
	}
	if schedule == "" {
		schedule = DefaultMetricSweepSchedule
	}
	return &MetricSweeper{cron: cron.New(), table: table, schedule: schedule, log: log}
}

// Name identifies the MetricSweeper as a lifecycle service.
func (m *MetricSweeper) Name() string { return "housekeeping.metric-sweep" }

// Start registers the sweep job and starts the cron scheduler.
func (m *MetricSweeper) Start(ctx context.Context) error {
	if _, err := m.cron.AddFunc(m.schedule, m.table.ExpireStale); err != nil {
		return err
	}
	m.cron.Start()
	m.log.WithField("schedule", m.schedule).Info("housekeeping: metric sweep scheduled")
	return nil
}

// Stop drains any in-flight run and stops the scheduler.
func (m *MetricSweeper) Stop(ctx context.Context) error {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

// Descriptor advertises the sweeper as an adapter-layer maintenance job
// over the telemetry domain.
func (m *MetricSweeper) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   m.Name(),
		Domain: "telemetry",
		Layer:  core.LayerAdapter,
	}.WithCapabilities("expire-stale")
}
