package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// Catalog is the two-tier configuration lookup: the override store first,
// then the static tables. It is safe for concurrent use and its tables can
// be swapped at runtime.
type Catalog struct {
	mu           sync.RWMutex
	tables       Tables
	nonCacheable map[string]struct{}

	overrides OverrideStore
	logger    *utils.Logger
}

// New creates a catalog over tables. overrides may be nil.
func New(tables Tables, overrides OverrideStore) (*Catalog, error) {
	c := &Catalog{
		overrides: overrides,
		logger:    utils.NewLogger("catalog"),
	}
	if err := c.Replace(tables); err != nil {
		return nil, err
	}
	return c, nil
}

// MustDefault returns a catalog over the compiled-in tables
func MustDefault() *Catalog {
	c, err := New(Defaults(), nil)
	if err != nil {
		panic(err)
	}
	return c
}

// Replace validates tables and swaps them in atomically
func (c *Catalog) Replace(tables Tables) error {
	tables = tables.clone()
	tables.normalize()
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTables, err)
	}

	nonCacheable := make(map[string]struct{}, len(tables.NonCacheable))
	for _, taskType := range tables.NonCacheable {
		nonCacheable[taskType] = struct{}{}
	}

	c.mu.Lock()
	c.tables = tables
	c.nonCacheable = nonCacheable
	c.mu.Unlock()
	return nil
}

// Route resolves the routing entry of a task type. An enabled dynamic
// override wins over the static table; override store errors fall back to
// the static table.
func (c *Catalog) Route(ctx context.Context, taskType string) (models.RouteEntry, error) {
	c.mu.RLock()
	static, hasStatic := c.tables.Routes[taskType]
	c.mu.RUnlock()

	if c.overrides != nil {
		o, err := c.overrides.ActiveOverride(ctx, taskType)
		if err != nil {
			c.logger.Warn("Override lookup failed, using static route", "task_type", taskType, "error", err)
		} else if o != nil {
			entry := o.Apply(static)
			if !hasStatic {
				entry.TaskType = taskType
			}
			if _, priced := c.Pricing(entry.PrimaryModel); !priced {
				c.logger.Warn("Override routes to unpriced model", "task_type", taskType, "model", entry.PrimaryModel)
			}
			return entry, nil
		}
	}

	if !hasStatic {
		return models.RouteEntry{}, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	static.DefaultParams = models.JSONB(static.DefaultParams).Clone()
	return static, nil
}

// ModelParams returns static per-model parameters overlaid with dynamic ones
func (c *Catalog) ModelParams(ctx context.Context, model string) map[string]any {
	c.mu.RLock()
	params := models.JSONB(c.tables.ModelParams[model]).Clone()
	c.mu.RUnlock()

	if c.overrides == nil {
		return params
	}
	dynamic, err := c.overrides.ModelParams(ctx, model)
	if err != nil {
		c.logger.Warn("Model params lookup failed", "model", model, "error", err)
		return params
	}
	if len(dynamic) == 0 {
		return params
	}
	return params.Merge(dynamic)
}

// TTL returns the cache TTL of a task type, DefaultTTL when not configured
func (c *Catalog) TTL(taskType string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ttl, ok := c.tables.TTLs[taskType]; ok {
		return ttl
	}
	return DefaultTTL
}

// IsCacheable reports whether responses of a task type may be cached at all
func (c *Catalog) IsCacheable(taskType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, blocked := c.nonCacheable[taskType]
	return !blocked
}

// Pricing returns the pricing entry of a model
func (c *Catalog) Pricing(model string) (models.ModelPricing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.tables.Pricing[model]
	return p, ok
}

// Prompt returns the prompt templates of a task type
func (c *Catalog) Prompt(taskType string) (PromptTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.tables.Prompts[taskType]
	return p, ok
}

// TaskTypes lists the statically routed task types
func (c *Catalog) TaskTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables.Routes))
	for name := range c.tables.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the current static tables
func (c *Catalog) Snapshot() Tables {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tables.clone()
}
