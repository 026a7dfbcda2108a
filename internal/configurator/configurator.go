// Package configurator implements the Configurator (§4.5): it watches the
// asset inventory feed and, on lifecycle events, instantiates or retracts
// per-asset rules from the template library, subject to the suitability
// predicates.
package configurator

import (
	"errors"
	"sync"

	"github.com/r3e-labs/ruleengine/internal/asset"
	"github.com/r3e-labs/ruleengine/internal/errcode"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// Configurator ties the template library to the Rule Store and the Asset
// Database. It is the single writer of asset-derived rules; the
// request/reply surface's ADD/UPDATE/DELETE commands operate on
// operator-authored rules independently.
type Configurator struct {
	mu        sync.Mutex
	templates []Template
	assets    *asset.Database
	store     *rulestore.Store
	log       *logger.Logger

	attached map[string][]string // asset name -> rule names instantiated for it
	onRetire func(ruleName, description string)
}

// New constructs a Configurator. onRetire is called once per rule removed
// by a DELETE/RETIRE/UPDATE-triggered retraction, with the description the
// Evaluator should resolve the rule's alerts with.
func New(templates []Template, assets *asset.Database, store *rulestore.Store, onRetire func(ruleName, description string), log *logger.Logger) *Configurator {
	if log == nil {
		log = logger.NewDefault("configurator")
	}
	return &Configurator{
		templates: templates,
		assets:    assets,
		store:     store,
		onRetire:  onRetire,
		attached:  make(map[string][]string),
		log:       log,
	}
}

// Handle processes one asset inventory event (§4.5).
func (c *Configurator) Handle(e asset.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case asset.EventInventory:
		c.assets.Apply(e)
		return
	case asset.EventDelete, asset.EventRetire:
		c.assets.Apply(e)
		c.retractLocked(e.Name, "Rule deleted")
		return
	}

	c.assets.Apply(e)

	if !e.Active() {
		c.retractLocked(e.Name, "Asset no longer active")
		return
	}

	switch e.Type {
	case asset.EventCreate:
		c.instantiateLocked(e)
	case asset.EventUpdate:
		c.retractLocked(e.Name, "Rule was changed implicitly")
		c.instantiateLocked(e)
	}
}

func (c *Configurator) instantiateLocked(e asset.Event) {
	var attached []string
	for _, tmpl := range c.templates {
		if !tmpl.appliesToType(e.AssetType) {
			continue
		}
		if !suitable(tmpl.Family, e.Name, c.assets) {
			continue
		}
		doc, ruleName, err := tmpl.instantiate(e.Name)
		if err != nil {
			c.log.WithField("template", tmpl.Family).WithField("error", err).Warn("configurator: template instantiation failed")
			continue
		}
		if _, err := c.store.Add(doc); err != nil {
			if !isDuplicate(err) {
				c.log.WithField("rule", ruleName).WithField("error", err).Warn("configurator: could not submit instantiated rule")
			}
			continue
		}
		attached = append(attached, ruleName)
	}
	if len(attached) > 0 {
		c.attached[e.Name] = append(c.attached[e.Name], attached...)
	}
}

// retractLocked deletes each rule the Configurator instantiated for
// assetName and retires it with the given contextual description. It uses
// DeleteQuiet rather than Delete: the Configurator already knows the right
// description and calls onRetire itself, so routing through the store's
// observer notification too would retire the same alert a second time
// with the generic "Rule deleted" wording.
func (c *Configurator) retractLocked(assetName, description string) {
	names := c.attached[assetName]
	delete(c.attached, assetName)
	for _, name := range names {
		if _, err := c.store.DeleteQuiet(name); err != nil && !isNotFound(err) {
			c.log.WithField("rule", name).WithField("error", err).Warn("configurator: could not retract rule")
			continue
		}
		if c.onRetire != nil {
			c.onRetire(name, description)
		}
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, errcode.ErrDuplicate)
}

func isNotFound(err error) bool {
	return errors.Is(err, errcode.ErrNotFound)
}
