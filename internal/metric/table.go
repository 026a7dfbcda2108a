// Package metric implements the shared last-value metric table the
// Evaluator reads on every tick: a live map of the most recent value per
// "<metric>@<asset>" key, and a set of keys known to have gone stale.
package metric

import (
	"strings"
	"sync"
	"time"
)

// Key formats the table key for a metric observed on an asset.
func Key(metricName, asset string) string {
	return metricName + "@" + asset
}

// SplitAsset recovers the asset name from a table key, i.e. everything
// after the first '@'. A key with no '@' at all (never produced by Key,
// but possible for a hand-authored pattern metric) returns itself
// unchanged, matching how pattern rules resolve their element.
func SplitAsset(key string) string {
	if i := strings.IndexByte(key, '@'); i != -1 {
		return key[i+1:]
	}
	return key
}

type entry struct {
	value   string
	expires time.Time
}

// Table is the Metric table of §3: two derived collections, active_metrics
// and inactive_metrics, guarded by one mutex per §5's shared-resource
// policy (writable by the Trigger-Stream actor only; read through a
// consistent snapshot by other actors).
type Table struct {
	mu       sync.RWMutex
	active   map[string]entry
	inactive map[string]struct{}
	ttl      time.Duration
}

// NewTable returns an empty Table. ttl is the default active-entry expiry;
// UpdateWithTTL may override it per-call.
func NewTable(ttl time.Duration) *Table {
	return &Table{
		active:   make(map[string]entry),
		inactive: make(map[string]struct{}),
		ttl:      ttl,
	}
}

// Update records a new value for key, marking it active and resetting its
// expiry. Ingest of a metric always clears any prior inactive marker.
func (t *Table) Update(key, value string) {
	t.UpdateWithTTL(key, value, t.ttl)
}

// UpdateWithTTL is Update with an explicit per-call TTL (a metric's
// announced validity window can vary message to message).
func (t *Table) UpdateWithTTL(key, value string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inactive, key)
	t.active[key] = entry{value: value, expires: time.Now().Add(ttl)}
}

// MarkUnavailable moves key directly to inactive_metrics, as MetricIngest
// does on an unavailability announcement (§4.3).
func (t *Table) MarkUnavailable(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, key)
	t.inactive[key] = struct{}{}
}

// Get returns the active value for key, or ("", false) if the key is
// absent or has expired (expiry is applied lazily here, and is also swept
// by ExpireStale so inactive_metrics reflects reality between reads).
func (t *Table) Get(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.active[key]
	if !ok || time.Now().After(e.expires) {
		return "", false
	}
	return e.value, true
}

// IsInactive reports whether key is a known-unavailable metric.
func (t *Table) IsInactive(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.inactive[key]
	return ok
}

// Snapshot returns a consistent copy of both maps for a single Evaluator
// tick: rules read this snapshot rather than the live table so that
// metrics arriving mid-tick don't produce partial evaluation within the
// same tick (§4.3 "lock-coalesced").
type Snapshot struct {
	Active   map[string]string
	Inactive map[string]struct{}
}

// Snapshot expires stale entries first, then copies both maps.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()

	active := make(map[string]string, len(t.active))
	for k, e := range t.active {
		active[k] = e.value
	}
	inactive := make(map[string]struct{}, len(t.inactive))
	for k := range t.inactive {
		inactive[k] = struct{}{}
	}
	return Snapshot{Active: active, Inactive: inactive}
}

// ExpireStale migrates any active entry past its expiry into
// inactive_metrics. Safe to call on a timer independent of Snapshot.
func (t *Table) ExpireStale() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()
}

func (t *Table) expireLocked() {
	now := time.Now()
	for k, e := range t.active {
		if now.After(e.expires) {
			delete(t.active, k)
			t.inactive[k] = struct{}{}
		}
	}
}
