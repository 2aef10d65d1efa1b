package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Spotfunnel/voiceOS-sub001/internal/resilience"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/llm"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/llm/anyllm"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/llm/openai"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLLM] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to LLM constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// NewDefaultRegistry returns a [Registry] with the built-in backends: the
// official OpenAI client under "openai" and any-llm-go for the rest of
// [ValidProviderNames].
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterLLM("openai", func(e ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})
	for _, name := range anyllm.Supported() {
		if name == "openai" {
			continue
		}
		r.RegisterLLM(name, func(e ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(name, e.Model, opts...)
		})
	}
	return r
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for name := range r.llm {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// BuildLLM creates every entry and, when there is more than one, wraps them
// in a [resilience.LLMFallback] in the order given. Backends are labelled
// "name/model".
func (r *Registry) BuildLLM(entries []ProviderEntry, cb CircuitBreakerConfig) (llm.Provider, error) {
	if len(entries) == 0 {
		return nil, errors.New("config: no llm providers configured")
	}
	var (
		fb    *resilience.LLMFallback
		first llm.Provider
	)
	for i, e := range entries {
		p, err := r.CreateLLM(e)
		if err != nil {
			return nil, fmt.Errorf("config: validator.providers[%d]: %w", i, err)
		}
		label := e.Name + "/" + e.Model
		switch {
		case i == 0:
			first = p
			if len(entries) > 1 {
				fb = resilience.NewLLMFallback(p, label, resilience.FallbackConfig{CircuitBreaker: cb.Resilience()})
			}
		default:
			fb.AddFallback(label, p)
		}
	}
	if fb != nil {
		return fb, nil
	}
	return first, nil
}
