package ingest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-labs/ruleengine/internal/asset"
	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/configurator"
	"github.com/r3e-labs/ruleengine/internal/metric"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/r3e-labs/ruleengine/internal/transport"
)

func TestMetricIngestUpdatesActiveTable(t *testing.T) {
	bus := transport.NewBus()
	table := metric.NewTable(0)
	svc := NewMetricIngest(bus, "metrics", table, nil)
	require.NoError(t, svc.Start(context.Background()))

	msg, err := json.Marshal(MetricMessage{Metric: "temp", Asset: "rack-1", Value: "42"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "metrics", msg))

	v, ok := table.Get(metric.Key("temp", "rack-1"))
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestMetricIngestUnavailableMarksInactive(t *testing.T) {
	bus := transport.NewBus()
	table := metric.NewTable(0)
	table.Update(metric.Key("temp", "rack-1"), "42")
	svc := NewMetricIngest(bus, "metrics", table, nil)
	require.NoError(t, svc.Start(context.Background()))

	msg, err := json.Marshal(MetricMessage{Metric: "temp", Asset: "rack-1", Unavailable: true})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "metrics", msg))

	assert.True(t, table.IsInactive(metric.Key("temp", "rack-1")))
	_, ok := table.Get(metric.Key("temp", "rack-1"))
	assert.False(t, ok)
}

func TestMetricIngestDropsMalformedPayload(t *testing.T) {
	bus := transport.NewBus()
	table := metric.NewTable(0)
	svc := NewMetricIngest(bus, "metrics", table, nil)
	require.NoError(t, svc.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), "metrics", []byte("not json")))
	_, ok := table.Get(metric.Key("temp", "rack-1"))
	assert.False(t, ok)
}

func TestAssetIngestDispatchesToConfigurator(t *testing.T) {
	bus := transport.NewBus()
	store, err := rulestore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	db := asset.NewDatabase()
	cfg := configurator.New(nil, db, store, nil, nil)
	svc := NewAssetIngest(bus, "assets", cfg, nil)
	require.NoError(t, svc.Start(context.Background()))

	msg, err := json.Marshal(AssetMessage{Type: asset.EventCreate, Name: "rack-1", Status: "active", AssetType: "rack"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "assets", msg))

	_, ok := db.Basic("rack-1")
	assert.True(t, ok)
}

func TestDescriptorsReportAdapterLayer(t *testing.T) {
	bus := transport.NewBus()
	m := NewMetricIngest(bus, "metrics", metric.NewTable(0), nil)
	a := NewAssetIngest(bus, "assets", configurator.New(nil, asset.NewDatabase(), nil, nil, nil), nil)

	assert.Equal(t, core.LayerAdapter, m.Descriptor().Layer)
	assert.Equal(t, core.LayerAdapter, a.Descriptor().Layer)
}
