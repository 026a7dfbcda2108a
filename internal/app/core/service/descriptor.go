// Package service holds small, dependency-free types shared by every
// lifecycle-managed component: the layer a component sits at, its
// capability advertisement, and generic helpers (pagination clamping,
// observation hooks, retry policy) that don't belong to any one actor.
package service

// Layer classifies where a component sits in the processing pipeline, for
// ordering and for operator-facing introspection.
type Layer int

const (
	LayerIngress Layer = iota
	LayerAdapter
	LayerEngine
	LayerData
	LayerSecurity
)

// Descriptor advertises a component's identity and capabilities to the
// system manager and to operator tooling.
type Descriptor struct {
	Name         string
	Domain       string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of d with Capabilities replaced.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	d.Capabilities = caps
	return d
}
