package platform

import (
	"fmt"

	"go.uber.org/zap"
)

// Manager is the registry of configured platform adapters. The platform set
// is closed; asking for an unregistered platform is a wiring error and
// fails fast.
type Manager struct {
	adapters map[string]Adapter
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

func (m *Manager) Register(adapter Adapter) error {
	name := adapter.Name()
	if _, exists := m.adapters[name]; exists {
		return fmt.Errorf("adapter for platform %s already registered", name)
	}

	m.adapters[name] = adapter
	m.logger.Info("Platform adapter registered", zap.String("platform", name))
	return nil
}

func (m *Manager) Get(name string) (Adapter, error) {
	adapter, exists := m.adapters[name]
	if !exists {
		return nil, fmt.Errorf("adapter for platform %s not found", name)
	}
	return adapter, nil
}

// Publisher returns the adapter for name, requiring publish capability.
func (m *Manager) Publisher(name string) (Publisher, error) {
	adapter, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	pub, ok := adapter.(Publisher)
	if !ok {
		return nil, fmt.Errorf("platform %s does not support publishing", name)
	}
	return pub, nil
}

// Searcher returns the adapter for name, requiring search/reply capability.
func (m *Manager) Searcher(name string) (Searcher, error) {
	adapter, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	s, ok := adapter.(Searcher)
	if !ok {
		return nil, fmt.Errorf("platform %s does not support search", name)
	}
	return s, nil
}

func (m *Manager) Names() []string {
	var names []string
	for name := range m.adapters {
		names = append(names, name)
	}
	return names
}
