package models

import "time"

// RouteEntry is a static routing table entry for one task type
type RouteEntry struct {
	TaskType           string         `yaml:"-" json:"task_type"`
	PrimaryModel       string         `yaml:"primary" json:"primary_model"`
	FallbackModel      string         `yaml:"fallback,omitempty" json:"fallback_model,omitempty"`
	RateLimitPerMinute int            `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	DefaultParams      map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// HasFallback reports whether a fallback model is configured
func (e RouteEntry) HasFallback() bool {
	return e.FallbackModel != "" && e.FallbackModel != e.PrimaryModel
}

// RoutingOverride is a dynamic routing row (routing_overrides table).
// The enabled row with the highest priority wins for a task type.
type RoutingOverride struct {
	ID                 int64     `db:"id" json:"id"`
	TaskType           string    `db:"task_type" json:"task_type"`
	Priority           int       `db:"priority" json:"priority"`
	PrimaryModel       string    `db:"primary_model" json:"primary_model"`
	FallbackModel      *string   `db:"fallback_model" json:"fallback_model,omitempty"`
	RateLimitPerMinute *int      `db:"rate_limit_per_minute" json:"rate_limit_per_minute,omitempty"`
	Params             JSONB     `db:"params" json:"params,omitempty"`
	Enabled            bool      `db:"enabled" json:"enabled"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Apply overlays the override on a base entry. Unset override fields keep the base values.
func (o *RoutingOverride) Apply(base RouteEntry) RouteEntry {
	entry := base
	entry.TaskType = o.TaskType
	entry.PrimaryModel = o.PrimaryModel
	if o.FallbackModel != nil {
		entry.FallbackModel = *o.FallbackModel
	}
	if o.RateLimitPerMinute != nil {
		entry.RateLimitPerMinute = *o.RateLimitPerMinute
	}
	if len(o.Params) > 0 {
		entry.DefaultParams = JSONB(base.DefaultParams).Merge(o.Params)
	}
	return entry
}

// ModelParams is a dynamic per-model parameter row (model_params table)
type ModelParams struct {
	Model     string    `db:"model" json:"model"`
	Params    JSONB     `db:"params" json:"params"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
