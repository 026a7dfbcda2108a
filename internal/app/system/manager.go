package system

import (
	"context"
	"fmt"
	"sync"

	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// Manager owns the lifecycle of every registered Service: the three
// cooperative actors (Trigger-Stream, Trigger-Mailbox, Configurator) plus
// the metrics and websocket taps, all registered the same way (§5).
// Start brings services up in registration order; Stop tears them down in
// reverse order so a later service's dependency on an earlier one survives
// shutdown for as long as possible.
type Manager struct {
	mu       sync.Mutex
	log      *logger.Logger
	services []Service
	started  []Service
}

// NewManager returns an empty Manager.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register adds a service. Must be called before Start.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
}

// Start starts every registered service in registration order. If a
// service fails to start, Start stops everything already started (in
// reverse order) and returns the error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			m.stopLocked(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.started = append(m.started, svc)
		m.log.WithField("service", svc.Name()).Info("service started")
	}
	return nil
}

// Stop stops every started service in reverse order, collecting and
// returning the first error encountered while continuing to stop the rest
// (a graceful drain must not abandon other services because one failed).
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var first error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		if err := svc.Stop(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithField("error", err).Warn("service stop failed")
			if first == nil {
				first = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
			continue
		}
		m.log.WithField("service", svc.Name()).Info("service stopped")
	}
	m.started = nil
	return first
}

// Descriptors collects descriptors from every registered service that also
// implements DescriptorProvider.
func (m *Manager) Descriptors() []core.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	var providers []DescriptorProvider
	for _, svc := range m.services {
		if p, ok := svc.(DescriptorProvider); ok {
			providers = append(providers, p)
		}
	}
	return CollectDescriptors(providers)
}

// NoopService is a Service that does nothing; useful for tests and for
// optional components disabled by configuration.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                    { return n.ServiceName }
func (n NoopService) Start(ctx context.Context) error { return nil }
func (n NoopService) Stop(ctx context.Context) error  { return nil }
