package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mattjoyce/gridlink/internal/log"
)

// CapabilityFunc builds the capability handed to one plugin at Init.
type CapabilityFunc func(p Plugin) (Capability, error)

// Manager owns a plugin set and its resolved order. Every Add or Remove
// recomputes the order before returning, so Order never exposes a stale or
// invalid ordering.
type Manager struct {
	plugins     []Plugin // registration order
	order       []Plugin // resolved order
	started     bool
	capFor      CapabilityFunc
	initialized map[string]bool
	logger      *slog.Logger
}

// NewManager creates an empty manager. A nil logger uses the global one.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = log.WithComponent("plugin")
	}
	return &Manager{
		initialized: make(map[string]bool),
		logger:      logger,
	}
}

// Add registers ps as one batch, so plugins may depend on each other in any
// registration order. The set is re-resolved; on a configuration error nothing
// changes. If the manager is already started, the new plugins are initialized
// in resolved order.
func (m *Manager) Add(ps ...Plugin) error {
	before := m.plugins
	candidate := append(slices.Clone(m.plugins), ps...)
	order, err := Resolve(candidate)
	if err != nil {
		return err
	}
	prevOrder := m.order
	m.plugins = candidate
	m.order = order
	for _, p := range ps {
		m.logger.Debug("plugin registered", "plugin", p.Name(), "version", p.Version())
	}

	if !m.started {
		return nil
	}
	var fresh []Plugin
	for _, p := range order {
		if !m.initialized[p.Name()] {
			fresh = append(fresh, p)
		}
	}
	for i, p := range fresh {
		if err := m.initOne(p); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.destroyOne(fresh[j])
			}
			m.plugins = before
			m.order = prevOrder
			return err
		}
	}
	return nil
}

// Remove unregisters the named plugin. Removing a plugin others depend on
// is refused.
func (m *Manager) Remove(name string) error {
	idx := slices.IndexFunc(m.plugins, func(p Plugin) bool { return p.Name() == name })
	if idx < 0 {
		return fmt.Errorf("plugin %q not registered", name)
	}
	candidate := slices.Delete(slices.Clone(m.plugins), idx, idx+1)
	order, err := Resolve(candidate)
	if err != nil {
		return fmt.Errorf("remove %q: %w", name, err)
	}
	removed := m.plugins[idx]
	m.plugins = candidate
	m.order = order
	if m.initialized[name] {
		m.destroyOne(removed)
	}
	return nil
}

// Order returns a snapshot of the resolved order.
func (m *Manager) Order() []Plugin {
	return slices.Clone(m.order)
}

// Get returns the plugin registered under name.
func (m *Manager) Get(name string) (Plugin, bool) {
	for _, p := range m.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Names returns plugin names in resolved order.
func (m *Manager) Names() []string {
	return Names(m.order)
}

// Len returns the number of registered plugins.
func (m *Manager) Len() int { return len(m.plugins) }

// Start initializes plugins in resolved order. If one fails, the plugins
// already initialized are destroyed in reverse and the error is returned.
func (m *Manager) Start(capFor CapabilityFunc) error {
	if m.started {
		return fmt.Errorf("plugin manager already started")
	}
	m.capFor = capFor
	for i, p := range m.order {
		if err := m.initOne(p); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.destroyOne(m.order[j])
			}
			return err
		}
	}
	m.started = true
	return nil
}

// Stop destroys plugins in reverse resolved order and joins their errors.
func (m *Manager) Stop() error {
	var errs []error
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.order[i]
		if !m.initialized[p.Name()] {
			continue
		}
		if err := m.destroyOne(p); err != nil {
			errs = append(errs, err)
		}
	}
	m.started = false
	return errors.Join(errs...)
}

func (m *Manager) initOne(p Plugin) error {
	name := p.Name()
	if init, ok := p.(Initializer); ok {
		if m.capFor == nil {
			return fmt.Errorf("init plugin %q: no capability source", name)
		}
		c, err := m.capFor(p)
		if err != nil {
			return fmt.Errorf("init plugin %q: %w", name, err)
		}
		if err := init.Init(c); err != nil {
			return fmt.Errorf("init plugin %q: %w", name, err)
		}
	}
	m.initialized[name] = true
	m.logger.Info("plugin initialized", "plugin", name, "version", p.Version())
	return nil
}

func (m *Manager) destroyOne(p Plugin) error {
	name := p.Name()
	delete(m.initialized, name)
	d, ok := p.(Destroyer)
	if !ok {
		return nil
	}
	if err := d.Destroy(); err != nil {
		m.logger.Error("plugin destroy failed", "plugin", name, "error", err)
		return fmt.Errorf("destroy plugin %q: %w", name, err)
	}
	m.logger.Info("plugin destroyed", "plugin", name)
	return nil
}
