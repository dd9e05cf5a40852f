package llm

import (
	"fmt"

	"github.com/vectorleaf/ragserve/internal/config"
)

// Registry holds the configured providers keyed by name. Provider
// selection happens here, once, instead of branching on provider names
// inside business logic.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(cfg config.LLMConfig) *Registry {
	r := &Registry{providers: make(map[string]Provider)}

	if cfg.OpenAIKey != "" {
		r.Register(NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		r.Register(NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		r.Register(NewOllamaProvider(cfg.OllamaURL))
	}

	return r
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}
