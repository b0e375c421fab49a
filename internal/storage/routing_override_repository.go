package storage

import (
	"context"
	"database/sql"
	"fmt"

	"ai_orchestrator/internal/models"
)

const overrideColumns = `
	id, task_type, priority, primary_model, fallback_model, rate_limit_per_minute,
	params, enabled, created_at, updated_at`

// negative lookups are cached too so a task without overrides does not hit the database
type absentEntry struct{}

// RoutingOverrideRepository serves the dynamic routing configuration tier
type RoutingOverrideRepository struct {
	db *DB
}

// NewRoutingOverrideRepository creates a new routing override repository
func NewRoutingOverrideRepository(db *DB) *RoutingOverrideRepository {
	return &RoutingOverrideRepository{db: db}
}

// ActiveOverride returns the enabled override with the highest priority for
// taskType, or nil when there is none
func (r *RoutingOverrideRepository) ActiveOverride(ctx context.Context, taskType string) (*models.RoutingOverride, error) {
	cacheKey := "override:" + taskType
	if cached, ok := r.db.overrideCache.Get(cacheKey); ok {
		if o, ok := cached.(*models.RoutingOverride); ok {
			return o, nil
		}
		return nil, nil
	}

	var o models.RoutingOverride
	query := `
		SELECT ` + overrideColumns + `
		FROM routing_overrides
		WHERE task_type = $1 AND enabled = TRUE
		ORDER BY priority DESC
		LIMIT 1
	`

	err := r.db.conn.GetContext(ctx, &o, query, taskType)
	if err != nil {
		if err == sql.ErrNoRows {
			r.db.overrideCache.Set(cacheKey, absentEntry{})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get routing override: %w", err)
	}

	r.db.overrideCache.Set(cacheKey, &o)
	return &o, nil
}

// ModelParams returns the enabled dynamic parameters of a model, or nil
func (r *RoutingOverrideRepository) ModelParams(ctx context.Context, model string) (map[string]any, error) {
	cacheKey := "params:" + model
	if cached, ok := r.db.overrideCache.Get(cacheKey); ok {
		if p, ok := cached.(models.JSONB); ok {
			return p, nil
		}
		return nil, nil
	}

	var mp models.ModelParams
	query := `SELECT model, params, enabled, updated_at FROM model_params WHERE model = $1 AND enabled = TRUE`

	err := r.db.conn.GetContext(ctx, &mp, query, model)
	if err != nil {
		if err == sql.ErrNoRows {
			r.db.overrideCache.Set(cacheKey, absentEntry{})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model params: %w", err)
	}

	r.db.overrideCache.Set(cacheKey, mp.Params)
	return mp.Params, nil
}

// List returns all overrides, enabled or not
func (r *RoutingOverrideRepository) List(ctx context.Context) ([]*models.RoutingOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM routing_overrides ORDER BY task_type, priority DESC`

	var overrides []*models.RoutingOverride
	if err := r.db.conn.SelectContext(ctx, &overrides, query); err != nil {
		return nil, fmt.Errorf("failed to list routing overrides: %w", err)
	}
	return overrides, nil
}

// Upsert inserts or replaces the override keyed by (task_type, priority)
func (r *RoutingOverrideRepository) Upsert(ctx context.Context, o *models.RoutingOverride) error {
	query := `
		INSERT INTO routing_overrides
			(task_type, priority, primary_model, fallback_model, rate_limit_per_minute, params, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_type, priority) DO UPDATE SET
			primary_model = EXCLUDED.primary_model,
			fallback_model = EXCLUDED.fallback_model,
			rate_limit_per_minute = EXCLUDED.rate_limit_per_minute,
			params = EXCLUDED.params,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		o.TaskType, o.Priority, o.PrimaryModel, o.FallbackModel, o.RateLimitPerMinute, o.Params, o.Enabled,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert routing override: %w", err)
	}

	r.db.overrideCache.Delete("override:" + o.TaskType)
	return nil
}

// SetEnabled toggles an override
func (r *RoutingOverrideRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	var taskType string
	query := `UPDATE routing_overrides SET enabled = $2, updated_at = NOW() WHERE id = $1 RETURNING task_type`

	err := r.db.conn.GetContext(ctx, &taskType, query, id, enabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrRoutingOverrideNotFound
		}
		return fmt.Errorf("failed to update routing override: %w", err)
	}

	r.db.overrideCache.Delete("override:" + taskType)
	return nil
}

// UpsertModelParams stores dynamic parameters for a model
func (r *RoutingOverrideRepository) UpsertModelParams(ctx context.Context, model string, params models.JSONB, enabled bool) error {
	query := `
		INSERT INTO model_params (model, params, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (model) DO UPDATE SET params = EXCLUDED.params, enabled = EXCLUDED.enabled, updated_at = NOW()
	`
	if _, err := r.db.conn.ExecContext(ctx, query, model, params, enabled); err != nil {
		return fmt.Errorf("failed to upsert model params: %w", err)
	}

	r.db.overrideCache.Delete("params:" + model)
	return nil
}
