// Package asset implements the Asset Database: a single map of asset
// records exposed through three layered views (Basic/Extended/Full), and
// the asset inventory event type the Configurator consumes.
package asset

// EventType is the asset lifecycle action carried by an inventory event.
type EventType string

const (
	EventCreate    EventType = "CREATE"
	EventUpdate    EventType = "UPDATE"
	EventDelete    EventType = "DELETE"
	EventRetire    EventType = "RETIRE"
	EventInventory EventType = "INVENTORY"
)

// Event is one message from the asset inventory feed (§3 "Asset inventory
// feed").
type Event struct {
	Type        EventType
	Name        string
	Status      string // "active" when the asset is usable; anything else is treated as inactive
	AssetType   string
	Subtype     string
	ParentName1 string
	Priority    string
	Attributes  map[string]string // remaining auxiliary key/value attributes, verbatim
}

// Active reports whether the event's status is the active status token.
func (e Event) Active() bool {
	return e.Status == "active"
}

// Record is the stored representation of an asset, built up from the
// latest CREATE/UPDATE event seen for it.
type Record struct {
	Name        string
	AssetType   string
	Subtype     string
	ParentName1 string
	Priority    string
	Status      string
	Attributes  map[string]string
}

// Basic is the coarsest view: identity and type only.
type Basic struct {
	Name      string
	AssetType string
	Subtype   string
}

// Extended adds hierarchy and priority on top of Basic.
type Extended struct {
	Basic
	ParentName1 string
	Priority    string
}

// Full is the most specific view: every attribute known about the asset.
type Full struct {
	Extended
	Status     string
	Attributes map[string]string
}

func (r Record) toBasic() Basic {
	return Basic{Name: r.Name, AssetType: r.AssetType, Subtype: r.Subtype}
}

func (r Record) toExtended() Extended {
	return Extended{Basic: r.toBasic(), ParentName1: r.ParentName1, Priority: r.Priority}
}

func (r Record) toFull() Full {
	attrs := make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	return Full{Extended: r.toExtended(), Status: r.Status, Attributes: attrs}
}
