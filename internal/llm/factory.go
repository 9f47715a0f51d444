package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nulzo/content-gateway/internal/config"
)

// ErrUnknownType is returned for a provider type no adapter registered.
var ErrUnknownType = errors.New("unknown provider type")

// Factory builds an adapter from its provider configuration.
type Factory func(cfg config.ProviderConfig) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register is called from adapter init functions. Registering a type twice panics.
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("llm: adapter type %q registered twice", providerType))
	}
	factories[providerType] = f
}

func Get(providerType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, providerType)
	}
	return f, nil
}

// Types lists the registered provider types.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Capabilities names what a provider can serve: "text", "image" or both.
func Capabilities(p Provider) []string {
	var caps []string
	if _, ok := p.(Completer); ok {
		caps = append(caps, "text")
	}
	if _, ok := p.(ImageGenerator); ok {
		caps = append(caps, "image")
	}
	return caps
}

// ProviderFactory turns provider configuration into adapters usable by a route.
type ProviderFactory struct{}

func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{}
}

// CreateProvider builds the adapter for cfg.Type and rejects adapters that
// can neither complete text nor generate images.
func (f *ProviderFactory) CreateProvider(cfg config.ProviderConfig) (Provider, error) {
	build, err := Get(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.ID, err)
	}

	p, err := build(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.ID, err)
	}
	if len(Capabilities(p)) == 0 {
		return nil, fmt.Errorf("provider %s: type %q serves no generation capability", cfg.ID, cfg.Type)
	}
	return p, nil
}
