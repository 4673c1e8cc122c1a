package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/everstacklabs/brandscope/internal/cache"
	"github.com/everstacklabs/brandscope/internal/config"
	"github.com/everstacklabs/brandscope/internal/dispatch"
	"github.com/everstacklabs/brandscope/internal/httpclient"
	"github.com/everstacklabs/brandscope/internal/metrics"
	"github.com/everstacklabs/brandscope/internal/pricing"
	"github.com/everstacklabs/brandscope/internal/prompt"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/publish"
	"github.com/everstacklabs/brandscope/internal/resolve"
	"github.com/everstacklabs/brandscope/internal/store"
)

// newAdapters builds one adapter per registered kind over a shared HTTP
// client and price table.
func newAdapters(cfg *config.Config) (dispatch.AdapterFunc, error) {
	prices := pricing.Default()
	if cfg.PricingFile != "" {
		t, err := pricing.Load(cfg.PricingFile)
		if err != nil {
			return nil, err
		}
		prices = t
	}

	var opts []httpclient.Option
	if cfg.Cache.Enabled {
		fc, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL)
		if err != nil {
			zap.L().Warn("brandscope: cache unavailable, continuing without", zap.Error(err))
		} else {
			opts = append(opts, httpclient.WithCache(fc))
		}
	}
	if cfg.HTTP.MaxRPS > 0 {
		opts = append(opts, httpclient.WithRateLimit(cfg.HTTP.MaxRPS))
	}
	deps := provider.Deps{HTTP: httpclient.New(opts...), Pricing: prices}

	adapters := make(map[provider.Kind]provider.Adapter)
	for _, kind := range provider.Kinds() {
		a, err := provider.New(kind, deps)
		if err != nil {
			return nil, err
		}
		adapters[kind] = a
	}

	return func(kind provider.Kind) (provider.Adapter, error) {
		a, ok := adapters[kind]
		if !ok {
			return nil, eris.Errorf("brandscope: no adapter for kind %q", kind)
		}
		return a, nil
	}, nil
}

func newDispatcher(cfg *config.Config, adapters dispatch.AdapterFunc, rec *metrics.Recorder) *dispatch.Dispatcher {
	return dispatch.New(adapters,
		dispatch.WithTimeout(cfg.PerCallTimeout),
		dispatch.WithSpacing(cfg.InterCallDelay),
		dispatch.WithPromptOptions(prompt.Options{
			Language:   cfg.Prompt.Language,
			MaxSources: cfg.Prompt.MaxSources,
		}),
		dispatch.WithObserver(rec.ObserveCall),
	)
}

func newResolver(cfg *config.Config) *resolve.Resolver {
	return resolve.New(&http.Client{Timeout: cfg.Sources.ResolveTimeout}, cfg.Sources.ResolveConcurrency)
}

// openStore opens and migrates the run store.
func openStore(ctx context.Context, cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newPublisher(ctx context.Context, cfg *config.Config) *publish.Publisher {
	pc := publish.Config{
		RepoDir:     cfg.GitHub.RepoDir,
		ReportsPath: cfg.GitHub.ReportsPath,
		Token:       cfg.GitHub.Token,
		Owner:       cfg.GitHub.Owner,
		Repo:        cfg.GitHub.Repo,
		BaseBranch:  cfg.GitHub.BaseBranch,
	}
	var prs publish.PullRequests
	if pc.Token != "" {
		prs = publish.NewGitHub(ctx, pc.Token)
	}
	return publish.New(pc, prs)
}
