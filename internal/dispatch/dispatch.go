// Package dispatch fans one question out to every active provider and
// collects exactly one result per provider.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/question"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultSpacing = 500 * time.Millisecond
)

// AdapterFunc resolves the adapter serving a provider kind.
type AdapterFunc func(provider.Kind) (provider.Adapter, error)

// Observer is notified of every counted call result. Warm-up calls and calls
// abandoned by a cancelled run are not reported.
type Observer func(q question.Question, r provider.Result)

// Dispatcher issues concurrent provider calls with a per-call timeout and a
// minimum spacing between consecutive calls to the same provider. Once a
// provider answers provider_not_found it is skipped for the rest of the run.
type Dispatcher struct {
	adapters AdapterFunc
	timeout  time.Duration
	spacing  time.Duration
	prompt   prompt.Options
	observer Observer

	mu       sync.Mutex
	limiters map[provider.Name]*rate.Limiter
	skipped  map[provider.Name]bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.timeout = d
		}
	}
}

// WithSpacing sets the minimum delay between calls to the same provider. A
// zero value disables spacing.
func WithSpacing(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d >= 0 {
			ds.spacing = d
		}
	}
}

// WithPromptOptions tunes prompt construction.
func WithPromptOptions(o prompt.Options) Option {
	return func(ds *Dispatcher) { ds.prompt = o }
}

// WithObserver registers a callback invoked after each call resolves.
func WithObserver(o Observer) Option {
	return func(ds *Dispatcher) { ds.observer = o }
}

// New creates a Dispatcher.
func New(adapters AdapterFunc, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		adapters: adapters,
		timeout:  DefaultTimeout,
		spacing:  DefaultSpacing,
		limiters: make(map[provider.Name]*rate.Limiter),
		skipped:  make(map[provider.Name]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch calls every provider concurrently and returns one result per
// provider in declared order. Failures never cancel sibling calls.
func (d *Dispatcher) Dispatch(ctx context.Context, q question.Question, providers []provider.Config) []provider.Result {
	return d.dispatch(ctx, q, providers, true)
}

func (d *Dispatcher) dispatch(ctx context.Context, q question.Question, providers []provider.Config, observe bool) []provider.Result {
	p := prompt.Build(q, d.prompt)
	results := make([]provider.Result, len(providers))

	var g errgroup.Group
	for i, cfg := range providers {
		g.Go(func() error {
			results[i] = d.call(ctx, q, p, cfg)
			return nil
		})
	}
	_ = g.Wait()

	observe = observe && d.observer != nil && ctx.Err() == nil
	for _, r := range results {
		if r.Status == provider.StatusProviderNotFound {
			d.Skip(r.Provider)
		}
		if observe {
			d.observer(q, r)
		}
	}
	return results
}

// Warmup makes one discardable call per active provider. Providers that
// answer provider_not_found are skipped.
func (d *Dispatcher) Warmup(ctx context.Context, q question.Question, providers []provider.Config) []provider.Result {
	results := d.dispatch(ctx, q, d.Active(providers), false)
	for _, r := range results {
		if r.Status == provider.StatusProviderNotFound {
			zap.L().Warn("dispatch: provider not found during warm-up, skipping",
				zap.String("provider", string(r.Provider)),
				zap.String("model", r.Model),
				zap.String("error", r.ErrorMessage),
			)
		}
	}
	return results
}

// Skip marks a provider as skipped for the rest of the run.
func (d *Dispatcher) Skip(name provider.Name) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipped[name] = true
}

// Skipped reports whether a provider has been skipped.
func (d *Dispatcher) Skipped(name provider.Name) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.skipped[name]
}

// Active returns the providers that have not been skipped, in order.
func (d *Dispatcher) Active(providers []provider.Config) []provider.Config {
	out := make([]provider.Config, 0, len(providers))
	for _, cfg := range providers {
		if !d.Skipped(cfg.Name) {
			out = append(out, cfg)
		}
	}
	return out
}

func (d *Dispatcher) limiter(name provider.Name) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Inf, 1)
		if d.spacing > 0 {
			l = rate.NewLimiter(rate.Every(d.spacing), 1)
		}
		d.limiters[name] = l
	}
	return l
}

func (d *Dispatcher) call(ctx context.Context, q question.Question, p prompt.Prompt, cfg provider.Config) provider.Result {
	if d.Skipped(cfg.Name) {
		return provider.FailedWith(cfg, provider.StatusProviderNotFound, eris.Errorf("dispatch: %s is skipped", cfg.Name), 0)
	}

	adapter, err := d.adapters(cfg.Kind)
	if err != nil {
		return provider.FailedWith(cfg, provider.StatusUnknownError, err, 0)
	}

	if err := d.limiter(cfg.Name).Wait(ctx); err != nil {
		return provider.Failed(cfg, eris.Wrap(err, "dispatch: spacing wait"), 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan provider.Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- provider.FailedWith(cfg, provider.StatusUnknownError,
					eris.Errorf("dispatch: adapter panic: %v", rec), time.Since(start).Milliseconds())
			}
		}()
		done <- adapter.Call(callCtx, q, p, cfg, cfg.Credentials())
	}()

	var r provider.Result
	select {
	case r = <-done:
	case <-callCtx.Done():
		if ctx.Err() != nil {
			r = provider.FailedWith(cfg, provider.StatusUnknownError,
				eris.Wrapf(ctx.Err(), "dispatch: %s call abandoned", cfg.Name),
				time.Since(start).Milliseconds())
			break
		}
		r = provider.FailedWith(cfg, provider.StatusTimeout,
			eris.Wrapf(callCtx.Err(), "dispatch: %s did not answer within %s", cfg.Name, d.timeout),
			time.Since(start).Milliseconds())
	}

	r.Provider = cfg.Name
	r.Model = cfg.Model
	r = r.Normalize()

	zap.L().Debug("dispatch: call resolved",
		zap.String("question", q.ID),
		zap.String("provider", string(cfg.Name)),
		zap.String("status", string(r.Status)),
		zap.Int64("latency_ms", r.LatencyMs),
	)
	return r
}
