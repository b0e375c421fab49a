package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"ai_orchestrator/internal/models"
)

// PromptTemplate holds the text/template sources for one task type and the
// response format its output is parsed as
type PromptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
	Format string `yaml:"format"`
}

// Tables is the static configuration surface: routing, cache TTLs, pricing and prompts
type Tables struct {
	Routes       map[string]models.RouteEntry   `yaml:"routes"`
	TTLs         map[string]time.Duration       `yaml:"ttls"`
	NonCacheable []string                       `yaml:"non_cacheable"`
	Pricing      map[string]models.ModelPricing `yaml:"pricing"`
	Prompts      map[string]PromptTemplate      `yaml:"prompts"`
	ModelParams  map[string]map[string]any      `yaml:"model_params"`
}

// normalize copies map keys into the entries that carry their own name
func (t *Tables) normalize() {
	for name, route := range t.Routes {
		route.TaskType = name
		t.Routes[name] = route
	}
	for name, pricing := range t.Pricing {
		pricing.Model = name
		if pricing.Unit == "" {
			pricing.Unit = models.PricingUnitToken
		}
		t.Pricing[name] = pricing
	}
}

// clone returns a deep enough copy for the catalog to own
func (t Tables) clone() Tables {
	c := Tables{
		Routes:       make(map[string]models.RouteEntry, len(t.Routes)),
		TTLs:         make(map[string]time.Duration, len(t.TTLs)),
		NonCacheable: append([]string(nil), t.NonCacheable...),
		Pricing:      make(map[string]models.ModelPricing, len(t.Pricing)),
		Prompts:      make(map[string]PromptTemplate, len(t.Prompts)),
		ModelParams:  make(map[string]map[string]any, len(t.ModelParams)),
	}
	for k, v := range t.Routes {
		v.DefaultParams = models.JSONB(v.DefaultParams).Clone()
		c.Routes[k] = v
	}
	for k, v := range t.TTLs {
		c.TTLs[k] = v
	}
	for k, v := range t.Pricing {
		c.Pricing[k] = v
	}
	for k, v := range t.Prompts {
		c.Prompts[k] = v
	}
	for k, v := range t.ModelParams {
		c.ModelParams[k] = models.JSONB(v).Clone()
	}
	return c
}

// mergeOver layers t over base. Entries in t win key by key; a non-nil
// NonCacheable list in t replaces the base list.
func (t Tables) mergeOver(base Tables) Tables {
	merged := base.clone()
	for k, v := range t.Routes {
		merged.Routes[k] = v
	}
	for k, v := range t.TTLs {
		merged.TTLs[k] = v
	}
	if t.NonCacheable != nil {
		merged.NonCacheable = append([]string(nil), t.NonCacheable...)
	}
	for k, v := range t.Pricing {
		merged.Pricing[k] = v
	}
	for k, v := range t.Prompts {
		merged.Prompts[k] = v
	}
	for k, v := range t.ModelParams {
		merged.ModelParams[k] = v
	}
	merged.normalize()
	return merged
}

// Validate checks that every routed model is priced and that values are in range
func (t Tables) Validate() error {
	var errs []error

	for _, name := range sortedKeys(t.Routes) {
		route := t.Routes[name]
		if route.PrimaryModel == "" {
			errs = append(errs, fmt.Errorf("route %q: primary model is required", name))
			continue
		}
		if route.RateLimitPerMinute < 0 {
			errs = append(errs, fmt.Errorf("route %q: negative rate limit", name))
		}
		for _, model := range []string{route.PrimaryModel, route.FallbackModel} {
			if model == "" {
				continue
			}
			if _, ok := t.Pricing[model]; !ok {
				errs = append(errs, fmt.Errorf("route %q: model %q has no pricing entry", name, model))
			}
		}
	}

	for _, name := range sortedKeys(t.Pricing) {
		p := t.Pricing[name]
		switch p.Unit {
		case models.PricingUnitToken, models.PricingUnitImage, models.PricingUnitAudio, "":
		default:
			errs = append(errs, fmt.Errorf("pricing %q: unknown unit %q", name, p.Unit))
		}
		if p.InputRate < 0 || p.OutputRate < 0 || p.FlatRate < 0 {
			errs = append(errs, fmt.Errorf("pricing %q: negative rate", name))
		}
	}

	for _, name := range sortedKeys(t.TTLs) {
		if t.TTLs[name] < 0 {
			errs = append(errs, fmt.Errorf("ttl %q: negative duration", name))
		}
	}

	for _, name := range sortedKeys(t.Prompts) {
		switch t.Prompts[name].Format {
		case "", "json", "text", "markdown":
		default:
			errs = append(errs, fmt.Errorf("prompt %q: unknown format %q", name, t.Prompts[name].Format))
		}
	}

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
