package gateway

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/llm"
)

// attempt is a resolved step of a route's failover chain.
type attempt struct {
	provider llm.Provider
	cfg      config.AttemptConfig
}

// registry holds the registered providers and the resolved route table.
// It is thread-safe.
type registry struct {
	mu        sync.RWMutex
	providers map[string]llm.Provider
	routes    map[string][]attempt
	validate  *validator.Validate
}

func newRegistry() *registry {
	return &registry{
		providers: make(map[string]llm.Provider),
		routes:    make(map[string][]attempt),
		validate:  validator.New(),
	}
}

func (r *registry) addProvider(p llm.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *registry) provider(id string) (llm.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// setRoutes resolves every route against the registered providers and swaps
// the table in only if all of them are valid.
func (r *registry) setRoutes(routes map[string]config.RouteConfig) error {
	resolved := make(map[string][]attempt, len(routes))

	r.mu.RLock()
	providers := make(map[string]llm.Provider, len(r.providers))
	for id, p := range r.providers {
		providers[id] = p
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rc := routes[name]
		if err := r.validate.Struct(rc); err != nil {
			return fmt.Errorf("route %q: %w", name, err)
		}
		if name == RouteImage && len(rc.Attempts) != 1 {
			return fmt.Errorf("route %q: image generation takes exactly one provider, got %d", name, len(rc.Attempts))
		}

		chain := make([]attempt, 0, len(rc.Attempts))
		for i, ac := range rc.Attempts {
			p, ok := providers[ac.Provider]
			if !ok {
				return fmt.Errorf("route %q attempt %d: %w: %s", name, i+1, ErrProviderNotFound, ac.Provider)
			}
			if name == RouteImage {
				if _, ok := p.(llm.ImageGenerator); !ok {
					return fmt.Errorf("route %q: provider %s (%s) cannot generate images", name, p.Name(), p.Type())
				}
			} else if _, ok := p.(llm.Completer); !ok {
				return fmt.Errorf("route %q attempt %d: provider %s (%s) cannot complete text", name, i+1, p.Name(), p.Type())
			}
			if ac.Timeout <= 0 {
				ac.Timeout = config.DefaultAttemptTimeout
			}
			chain = append(chain, attempt{provider: p, cfg: ac})
		}
		resolved[name] = chain
	}

	r.mu.Lock()
	r.routes = resolved
	r.mu.Unlock()

	return nil
}

func (r *registry) route(name string) ([]attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, ok := r.routes[name]
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	return chain, nil
}
