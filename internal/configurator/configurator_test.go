package configurator

import (
	"encoding/json"
	"testing"

	"github.com/r3e-labs/ruleengine/internal/asset"
	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// retireObserver mirrors cmd/ruleengined/serve.go's evaluatorObserver: it
// retires a deleted rule's alerts with "Rule deleted" whenever the Store
// notifies it, independent of whatever triggered the delete.
type retireObserver struct {
	onRetire func(ruleName, description string)
}

func (o retireObserver) OnCreate(r *rule.Rule) {}
func (o retireObserver) OnUpdate(old, updated *rule.Rule) {}
func (o retireObserver) OnDelete(old *rule.Rule) {
	o.onRetire(old.Name, "Rule deleted")
}

func voltageTemplate(family string, types ...string) Template {
	rule := map[string]any{
		"threshold": map[string]any{
			"name":       family + "@__name__",
			"assets":     "__name__",
			"metrics":    "voltage.input.L1",
			"evaluation": "function main(v) { return ['ok']; }",
			"results":    []any{},
		},
	}
	data, _ := json.Marshal(rule)
	return Template{Family: family, AssetTypes: types, Rule: data}
}

func newTestConfigurator(t *testing.T, templates []Template) (*Configurator, *rulestore.Store, *asset.Database, map[string]string) {
	t.Helper()
	store, err := rulestore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	db := asset.NewDatabase()
	retired := make(map[string]string)
	cfg := New(templates, db, store, func(name, desc string) { retired[name] = desc }, nil)
	return cfg, store, db, retired
}

func TestVoltageSuitabilityRejectsOnL2(t *testing.T) {
	templates := []Template{voltageTemplate("voltage.input_1phase", "ups")}
	cfg, store, _, _ := newTestConfigurator(t, templates)

	cfg.Handle(asset.Event{
		Type:      asset.EventCreate,
		Name:      "ups-1",
		Status:    "active",
		AssetType: "ups",
		Attributes: map[string]string{
			"voltage.input.L2": "230",
		},
	})

	_, ok := store.Get("voltage.input_1phase@ups-1")
	assert.False(t, ok, "1phase template must be rejected when the device reports L2")
}

func TestVoltageSuitabilityAcceptsWithoutL2L3(t *testing.T) {
	templates := []Template{voltageTemplate("voltage.input_1phase", "ups")}
	cfg, store, _, _ := newTestConfigurator(t, templates)

	cfg.Handle(asset.Event{
		Type:      asset.EventCreate,
		Name:      "ups-1",
		Status:    "active",
		AssetType: "ups",
	})

	_, ok := store.Get("voltage.input_1phase@ups-1")
	assert.True(t, ok)
}

func TestAssetDeleteResolvesAlerts(t *testing.T) {
	templates := []Template{voltageTemplate("voltage.input_1phase", "ups")}
	cfg, store, _, retired := newTestConfigurator(t, templates)

	cfg.Handle(asset.Event{Type: asset.EventCreate, Name: "ups-1", Status: "active", AssetType: "ups"})
	_, ok := store.Get("voltage.input_1phase@ups-1")
	require.True(t, ok)

	cfg.Handle(asset.Event{Type: asset.EventDelete, Name: "ups-1"})

	_, ok = store.Get("voltage.input_1phase@ups-1")
	assert.False(t, ok)
	assert.Equal(t, "Rule deleted", retired["voltage.input_1phase@ups-1"])
}

func TestUpdateReplacesAttachedRules(t *testing.T) {
	templates := []Template{voltageTemplate("voltage.input_1phase", "ups")}
	cfg, store, _, retired := newTestConfigurator(t, templates)

	cfg.Handle(asset.Event{Type: asset.EventCreate, Name: "ups-1", Status: "active", AssetType: "ups"})
	cfg.Handle(asset.Event{Type: asset.EventUpdate, Name: "ups-1", Status: "active", AssetType: "ups"})

	assert.Equal(t, "Rule was changed implicitly", retired["voltage.input_1phase@ups-1"])
	_, ok := store.Get("voltage.input_1phase@ups-1")
	assert.True(t, ok, "update should reinstantiate the rule after retraction")
}

func TestAssetDeleteRetiresExactlyOnceWithObserverRegistered(t *testing.T) {
	templates := []Template{voltageTemplate("voltage.input_1phase", "ups")}
	store, err := rulestore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	db := asset.NewDatabase()

	var calls []string
	onRetire := func(name, desc string) { calls = append(calls, desc) }
	cfg := New(templates, db, store, onRetire, nil)
	store.AddObserver(retireObserver{onRetire: onRetire})

	cfg.Handle(asset.Event{Type: asset.EventCreate, Name: "ups-1", Status: "active", AssetType: "ups"})
	_, ok := store.Get("voltage.input_1phase@ups-1")
	require.True(t, ok)

	cfg.Handle(asset.Event{Type: asset.EventDelete, Name: "ups-1"})

	require.Len(t, calls, 1, "asset-triggered retraction must retire each rule exactly once even with a store observer registered")
	assert.Equal(t, "Rule deleted", calls[0])
}

func TestHumidityDefaultTemplateNeverInstantiatedDirectly(t *testing.T) {
	templates := []Template{voltageTemplate("humidity.default", "sensor")}
	cfg, store, _, _ := newTestConfigurator(t, templates)

	cfg.Handle(asset.Event{Type: asset.EventCreate, Name: "sensor-1", Status: "active", AssetType: "sensor"})

	_, ok := store.Get("humidity.default@sensor-1")
	assert.False(t, ok)
}
