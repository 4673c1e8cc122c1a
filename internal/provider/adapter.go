package provider

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/everstacklabs/brandscope/internal/httpclient"
	"github.com/everstacklabs/brandscope/internal/pricing"
	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/question"
)

// Adapter calls one provider API and normalizes its response.
type Adapter interface {
	// Kind returns the adapter kind this implementation serves.
	Kind() Kind
	// Call never returns an error: every failure is captured in
	// Result.Status and Result.ErrorMessage.
	Call(ctx context.Context, q question.Question, p prompt.Prompt, cfg Config, creds Credentials) Result
}

// Deps are the shared collaborators handed to adapter factories.
type Deps struct {
	HTTP    *httpclient.Client
	Pricing *pricing.Table
}

// Factory builds an Adapter from shared deps.
type Factory func(Deps) Adapter

var (
	mu        sync.RWMutex
	factories = make(map[Kind]Factory)
)

// Register adds an adapter factory to the global registry.
func Register(kind Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds the adapter registered for kind.
func New(kind Kind, deps Deps) (Adapter, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[kind]
	if !ok {
		return nil, eris.Errorf("provider: no adapter registered for kind %q", kind)
	}
	return f(deps), nil
}

// Kinds returns all registered adapter kinds.
func Kinds() []Kind {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	return kinds
}
