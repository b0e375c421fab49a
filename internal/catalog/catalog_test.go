package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/models"
)

func TestDefaults_Valid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestDefaults_EveryRoutedModelIsPriced(t *testing.T) {
	c := MustDefault()
	ctx := context.Background()

	for _, taskType := range c.TaskTypes() {
		route, err := c.Route(ctx, taskType)
		require.NoError(t, err)

		_, ok := c.Pricing(route.PrimaryModel)
		assert.True(t, ok, "primary %s of %s is not priced", route.PrimaryModel, taskType)
		if route.HasFallback() {
			_, ok := c.Pricing(route.FallbackModel)
			assert.True(t, ok, "fallback %s of %s is not priced", route.FallbackModel, taskType)
		}
	}
}

func TestCatalog_QuickGradingRoute(t *testing.T) {
	route, err := MustDefault().Route(context.Background(), "quick_grading")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5.1-codex-mini", route.PrimaryModel)
	assert.Equal(t, "gpt-5.2", route.FallbackModel)
	assert.Equal(t, "quick_grading", route.TaskType)
}

func TestCatalog_UnknownTaskType(t *testing.T) {
	_, err := MustDefault().Route(context.Background(), "poetry")
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestCatalog_OverrideWins(t *testing.T) {
	overrides := NewMemoryOverrides()
	c, err := New(Defaults(), overrides)
	require.NoError(t, err)
	ctx := context.Background()

	fallback := "gpt-5.1-codex-mini"
	overrides.Set(models.RoutingOverride{TaskType: "quick_grading", Priority: 1, PrimaryModel: "gpt-5.2", FallbackModel: &fallback, Enabled: true})
	overrides.Set(models.RoutingOverride{TaskType: "quick_grading", Priority: 5, PrimaryModel: "claude-sonnet-4.5", Enabled: false})

	route, err := c.Route(ctx, "quick_grading")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5.2", route.PrimaryModel)
	assert.Equal(t, "gpt-5.1-codex-mini", route.FallbackModel)
	assert.Equal(t, 60, route.RateLimitPerMinute, "unset override fields keep static values")

	overrides.SetEnabled("quick_grading", 5, true)
	route, err = c.Route(ctx, "quick_grading")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4.5", route.PrimaryModel)

	overrides.SetEnabled("quick_grading", 5, false)
	overrides.SetEnabled("quick_grading", 1, false)
	route, err = c.Route(ctx, "quick_grading")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5.1-codex-mini", route.PrimaryModel)
}

func TestCatalog_OverrideOnlyTaskType(t *testing.T) {
	overrides := NewMemoryOverrides()
	c, err := New(Defaults(), overrides)
	require.NoError(t, err)

	overrides.Set(models.RoutingOverride{TaskType: "flashcards", PrimaryModel: "gemini-2.5-flash", Enabled: true})

	route, err := c.Route(context.Background(), "flashcards")
	require.NoError(t, err)
	assert.Equal(t, "flashcards", route.TaskType)
	assert.Equal(t, "gemini-2.5-flash", route.PrimaryModel)
	assert.False(t, route.HasFallback())
}

type failingOverrides struct{}

func (failingOverrides) ActiveOverride(ctx context.Context, taskType string) (*models.RoutingOverride, error) {
	return nil, errors.New("database unavailable")
}

func (failingOverrides) ModelParams(ctx context.Context, model string) (map[string]any, error) {
	return nil, errors.New("database unavailable")
}

func TestCatalog_OverrideErrorsFallBackToStatic(t *testing.T) {
	c, err := New(Defaults(), failingOverrides{})
	require.NoError(t, err)

	route, err := c.Route(context.Background(), "summarization")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", route.PrimaryModel)

	params := c.ModelParams(context.Background(), "gpt-5.2")
	assert.Equal(t, "medium", params["reasoning_effort"])
}

func TestCatalog_ModelParams(t *testing.T) {
	overrides := NewMemoryOverrides()
	c, err := New(Defaults(), overrides)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "medium", c.ModelParams(ctx, "gpt-5.2")["reasoning_effort"])
	assert.Empty(t, c.ModelParams(ctx, "claude-sonnet-4.5"))

	overrides.SetModelParams("gpt-5.2", map[string]any{"reasoning_effort": "high", "seed": 7})
	params := c.ModelParams(ctx, "gpt-5.2")
	assert.Equal(t, "high", params["reasoning_effort"])
	assert.Equal(t, 7, params["seed"])
}

func TestCatalog_TTLAndCacheability(t *testing.T) {
	c := MustDefault()

	assert.Equal(t, 24*time.Hour, c.TTL("route_generation"))
	assert.Equal(t, time.Duration(0), c.TTL("chat_assist"))
	assert.Equal(t, DefaultTTL, c.TTL("never_configured"))

	assert.False(t, c.IsCacheable("quick_grading"))
	assert.False(t, c.IsCacheable("deep_grading"))
	assert.False(t, c.IsCacheable("gap_analysis"))
	assert.True(t, c.IsCacheable("summarization"))
	assert.True(t, c.IsCacheable("never_configured"))
}

func TestCatalog_ReplaceRejectsInvalid(t *testing.T) {
	c := MustDefault()

	bad := Defaults()
	bad.Routes["summarization"] = models.RouteEntry{PrimaryModel: "unpriced-model"}

	err := c.Replace(bad)
	assert.ErrorIs(t, err, ErrInvalidTables)

	route, err := c.Route(context.Background(), "summarization")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", route.PrimaryModel)
}

func TestCatalog_RouteReturnsCopies(t *testing.T) {
	c := MustDefault()
	route, err := c.Route(context.Background(), "summarization")
	require.NoError(t, err)
	route.DefaultParams["temperature"] = 2.0

	again, err := c.Route(context.Background(), "summarization")
	require.NoError(t, err)
	assert.Equal(t, 0.3, again.DefaultParams["temperature"])
}

func TestTables_Validate(t *testing.T) {
	tables := Defaults()
	tables.Pricing["gpt-image-1"] = models.ModelPricing{Model: "gpt-image-1", Unit: "video"}
	tables.TTLs["summarization"] = -time.Second
	tables.Prompts["summarization"] = PromptTemplate{User: "x", Format: "xml"}

	err := tables.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
	assert.Contains(t, err.Error(), "negative duration")
	assert.Contains(t, err.Error(), "unknown format")
}
