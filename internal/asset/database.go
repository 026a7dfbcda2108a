package asset

import (
	"sync"
)

// Database is the Asset Database of §3: one map of asset records shared by
// three read-shaped accessor methods (Basic/Extended/Full). It is written
// exclusively by the Configurator and read by the Evaluator, per §5's
// shared-resource policy.
type Database struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{records: make(map[string]Record)}
}

// Apply folds an inventory event into the Database. CREATE/UPDATE events
// (re)write the record; DELETE/RETIRE remove it; INVENTORY is a no-op
// (§4.5). Callers still need Apply's return value to know whether the
// record existed before, since the Configurator's instantiate/retract
// decision depends on it.
func (d *Database) Apply(e Event) (existed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, existed = d.records[e.Name]
	switch e.Type {
	case EventCreate, EventUpdate:
		d.records[e.Name] = Record{
			Name:        e.Name,
			AssetType:   e.AssetType,
			Subtype:     e.Subtype,
			ParentName1: e.ParentName1,
			Priority:    e.Priority,
			Status:      e.Status,
			Attributes:  copyAttrs(e.Attributes),
		}
	case EventDelete, EventRetire:
		delete(d.records, e.Name)
	case EventInventory:
		// no-op
	}
	return existed
}

func copyAttrs(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Basic returns the coarsest view of an asset; yields a result even for
// asset names a more specific view cannot resolve further attributes for.
func (d *Database) Basic(name string) (Basic, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[name]
	if !ok {
		return Basic{}, false
	}
	return r.toBasic(), true
}

// Extended returns the hierarchy/priority-augmented view.
func (d *Database) Extended(name string) (Extended, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[name]
	if !ok {
		return Extended{}, false
	}
	return r.toExtended(), true
}

// Full returns every attribute known about an asset.
func (d *Database) Full(name string) (Full, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[name]
	if !ok {
		return Full{}, false
	}
	return r.toFull(), true
}

// HasMetric reports whether the asset's attributes contain the given key,
// used by the suitability predicates to test for e.g. "voltage.input.L2".
func (d *Database) HasMetric(name, attr string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[name]
	if !ok {
		return false
	}
	_, ok = r.Attributes[attr]
	return ok
}

// Names returns every currently-known asset name.
func (d *Database) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.records))
	for name := range d.records {
		out = append(out, name)
	}
	return out
}
