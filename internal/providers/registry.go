package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ai_orchestrator/internal/config"
)

type prefixRoute struct {
	prefix   string
	provider Provider
}

// Registry selects a provider by model-name prefix. The longest matching prefix wins.
type Registry struct {
	mu     sync.RWMutex
	routes []prefixRoute
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// NewRegistryFromConfig builds one provider per configured endpoint
func NewRegistryFromConfig(cfg config.ProviderConfig) (*Registry, error) {
	r := NewRegistry()
	for _, ep := range cfg.Endpoints {
		pc := OpenAIConfig{Name: ep.Name, BaseURL: ep.BaseURL, APIKey: ep.APIKey, Timeout: cfg.RequestTimeout}

		var (
			p   Provider
			err error
		)
		if ep.Name == "elevenlabs" {
			p, err = NewElevenLabsProvider(pc)
		} else {
			p, err = NewOpenAIProvider(pc)
		}
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to create provider %s: %w", ep.Name, err)
		}

		for _, prefix := range ep.Prefixes {
			r.Register(prefix, p)
		}
	}
	return r, nil
}

// Register maps a model prefix to a provider, replacing any previous mapping
func (r *Registry) Register(prefix string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.routes {
		if r.routes[i].prefix == prefix {
			r.routes[i].provider = p
			return
		}
	}
	r.routes = append(r.routes, prefixRoute{prefix: prefix, provider: p})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].prefix) > len(r.routes[j].prefix)
	})
}

// Resolve returns the provider serving a model
func (r *Registry) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if strings.HasPrefix(model, route.prefix) {
			return route.provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProvider, model)
}

// Name returns the registry name
func (r *Registry) Name() string {
	return "registry"
}

// Chat forwards the request to the provider serving req.Model. A model without
// a provider is reported as a RequestError so the router can fall back.
func (r *Registry) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p, err := r.Resolve(req.Model)
	if err != nil {
		return nil, &RequestError{Model: req.Model, Message: err.Error(), Err: err}
	}
	return p.Chat(ctx, req)
}

// Close closes every distinct registered provider
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Provider]bool)
	var errs []error
	for _, route := range r.routes {
		if seen[route.provider] {
			continue
		}
		seen[route.provider] = true
		if err := route.provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prefixes lists the registered prefixes, longest first
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.routes))
	for i, route := range r.routes {
		out[i] = route.prefix
	}
	return out
}

var _ Provider = (*Registry)(nil)
var _ Provider = (*OpenAIProvider)(nil)
var _ Provider = (*ElevenLabsProvider)(nil)
