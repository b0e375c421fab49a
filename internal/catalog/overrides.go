package catalog

import (
	"context"
	"sync"

	"ai_orchestrator/internal/models"
)

// OverrideStore is the dynamic configuration tier consulted before the static tables.
// Both methods return nil without error when nothing is configured.
type OverrideStore interface {
	ActiveOverride(ctx context.Context, taskType string) (*models.RoutingOverride, error)
	ModelParams(ctx context.Context, model string) (map[string]any, error)
}

// MemoryOverrides is an in-process OverrideStore
type MemoryOverrides struct {
	mu          sync.RWMutex
	overrides   map[string][]models.RoutingOverride
	modelParams map[string]map[string]any
}

// NewMemoryOverrides creates an empty store
func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{
		overrides:   make(map[string][]models.RoutingOverride),
		modelParams: make(map[string]map[string]any),
	}
}

// Set adds or replaces the override keyed by (task type, priority)
func (m *MemoryOverrides) Set(o models.RoutingOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.overrides[o.TaskType]
	for i := range list {
		if list[i].Priority == o.Priority {
			list[i] = o
			return
		}
	}
	m.overrides[o.TaskType] = append(list, o)
}

// SetEnabled toggles the override keyed by (task type, priority)
func (m *MemoryOverrides) SetEnabled(taskType string, priority int, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.overrides[taskType]
	for i := range list {
		if list[i].Priority == priority {
			list[i].Enabled = enabled
			return true
		}
	}
	return false
}

// SetModelParams stores dynamic parameters for a model. nil removes them.
func (m *MemoryOverrides) SetModelParams(model string, params map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params == nil {
		delete(m.modelParams, model)
		return
	}
	m.modelParams[model] = params
}

// ActiveOverride returns the enabled override with the highest priority
func (m *MemoryOverrides) ActiveOverride(ctx context.Context, taskType string) (*models.RoutingOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.RoutingOverride
	for i := range m.overrides[taskType] {
		o := m.overrides[taskType][i]
		if !o.Enabled {
			continue
		}
		if best == nil || o.Priority > best.Priority {
			best = &o
		}
	}
	return best, nil
}

// ModelParams returns the dynamic parameters of a model
func (m *MemoryOverrides) ModelParams(ctx context.Context, model string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return models.JSONB(m.modelParams[model]).Clone(), nil
}
