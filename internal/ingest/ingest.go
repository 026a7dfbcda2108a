// Package ingest adapts the Message transport's stream pub/sub surface
// (§1, §3 "Message transport", "Asset inventory feed") into the two
// writers §5's shared-resource policy names: the Metric table (written by
// the Trigger-Stream actor only) and the Configurator's asset lifecycle
// handling. Both subscribers register with transport.Subscriber at Start
// and are otherwise passive; they carry no polling loop of their own.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/r3e-labs/ruleengine/internal/asset"
	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/configurator"
	"github.com/r3e-labs/ruleengine/internal/metric"
	"github.com/r3e-labs/ruleengine/internal/transport"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// MetricMessage is one metric arrival or unavailability announcement
// carried on the metrics stream (§4.3 "Stream tick": "new metric
// messages... unavailability messages").
type MetricMessage struct {
	Metric      string `json:"metric"`
	Asset       string `json:"asset"`
	Value       string `json:"value"`
	Unavailable bool   `json:"unavailable"`
	TTLSeconds  int    `json:"ttl_seconds,omitempty"`
}

// MetricIngest subscribes to a metric stream and applies every message to
// a metric.Table, the only writer §5 allows for that table.
type MetricIngest struct {
	sub    transport.Subscriber
	stream string
	table  *metric.Table
	log    *logger.Logger
}

// NewMetricIngest constructs a MetricIngest reading stream from sub and
// writing into table.
func NewMetricIngest(sub transport.Subscriber, stream string, table *metric.Table, log *logger.Logger) *MetricIngest {
	if log == nil {
		log = logger.NewDefault("ingest.metric")
	}
	return &MetricIngest{sub: sub, stream: stream, table: table, log: log}
}

// Name identifies the MetricIngest as a lifecycle service.
func (m *MetricIngest) Name() string { return "trigger-stream.metric-ingest" }

// Descriptor advertises the MetricIngest as the adapter feeding the shared
// metric table the Evaluator reads each tick.
func (m *MetricIngest) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   m.Name(),
		Domain: "telemetry",
		Layer:  core.LayerAdapter,
	}.WithCapabilities("subscribe:" + m.stream)
}

// Start subscribes to the configured stream. The handler runs
// synchronously on the publisher's goroutine, matching the in-memory
// Bus's delivery model.
func (m *MetricIngest) Start(ctx context.Context) error {
	return m.sub.Subscribe(ctx, m.stream, m.handle)
}

// Stop is a no-op; the subscription ends when ctx passed to Start is
// cancelled by the caller.
func (m *MetricIngest) Stop(ctx context.Context) error { return nil }

func (m *MetricIngest) handle(payload []byte) {
	var msg MetricMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		m.log.WithField("error", err).Warn("ingest: malformed metric message, dropped")
		return
	}
	key := metric.Key(msg.Metric, msg.Asset)
	if msg.Unavailable {
		m.table.MarkUnavailable(key)
		return
	}
	if msg.TTLSeconds > 0 {
		m.table.UpdateWithTTL(key, msg.Value, time.Duration(msg.TTLSeconds)*time.Second)
		return
	}
	m.table.Update(key, msg.Value)
}

// AssetMessage is one asset inventory feed event, carried verbatim as
// asset.Event plus its discriminant.
type AssetMessage struct {
	Type        asset.EventType   `json:"type"`
	Name        string            `json:"name"`
	Status      string            `json:"status"`
	AssetType   string            `json:"asset_type"`
	Subtype     string            `json:"subtype"`
	ParentName1 string            `json:"parent_name1"`
	Priority    string            `json:"priority"`
	Attributes  map[string]string `json:"attributes"`
}

func (m AssetMessage) toEvent() asset.Event {
	return asset.Event{
		Type:        m.Type,
		Name:        m.Name,
		Status:      m.Status,
		AssetType:   m.AssetType,
		Subtype:     m.Subtype,
		ParentName1: m.ParentName1,
		Priority:    m.Priority,
		Attributes:  m.Attributes,
	}
}

// AssetIngest subscribes to the asset inventory stream and hands every
// event to the Configurator (§4.5), the single actor §5 assigns to
// asset-driven rule instantiation.
type AssetIngest struct {
	sub    transport.Subscriber
	stream string
	cfg    *configurator.Configurator
	log    *logger.Logger
}

// NewAssetIngest constructs an AssetIngest reading stream from sub and
// dispatching to cfg.
func NewAssetIngest(sub transport.Subscriber, stream string, cfg *configurator.Configurator, log *logger.Logger) *AssetIngest {
	if log == nil {
		log = logger.NewDefault("ingest.asset")
	}
	return &AssetIngest{sub: sub, stream: stream, cfg: cfg, log: log}
}

// Name identifies the AssetIngest as a lifecycle service.
func (a *AssetIngest) Name() string { return "configurator.asset-ingest" }

// Descriptor advertises the AssetIngest as the adapter feeding inventory
// events to the Configurator.
func (a *AssetIngest) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   a.Name(),
		Domain: "assets",
		Layer:  core.LayerAdapter,
	}.WithCapabilities("subscribe:" + a.stream)
}

// Start subscribes to the configured stream.
func (a *AssetIngest) Start(ctx context.Context) error {
	return a.sub.Subscribe(ctx, a.stream, a.handle)
}

// Stop is a no-op; the subscription ends when ctx passed to Start is
// cancelled by the caller.
func (a *AssetIngest) Stop(ctx context.Context) error { return nil }

func (a *AssetIngest) handle(payload []byte) {
	var msg AssetMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.log.WithField("error", err).Warn("ingest: malformed asset event, dropped")
		return
	}
	a.cfg.Handle(msg.toEvent())
}
