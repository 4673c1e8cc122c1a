// Package bench drives a batch run: warm-up, the ordered question loop,
// validation, source merging, aggregation, export and persistence.
package bench

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/export"
	"github.com/everstacklabs/brandscope/internal/metrics"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/quality"
	"github.com/everstacklabs/brandscope/internal/question"
	"github.com/everstacklabs/brandscope/internal/sources"
	"github.com/everstacklabs/brandscope/internal/store"
)

// RunIDLayout formats run identifiers from the start time.
const RunIDLayout = "20060102-150405"

// Dispatcher is the fan-out surface the runner needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, q question.Question, providers []provider.Config) []provider.Result
	Warmup(ctx context.Context, q question.Question, providers []provider.Config) []provider.Result
	Active(providers []provider.Config) []provider.Config
	Skipped(name provider.Name) bool
}

// Resolver rewrites citations before merging.
type Resolver interface {
	Results(ctx context.Context, results []provider.Result) []provider.Result
}

// Settings are the batch parameters of a run.
type Settings struct {
	Providers      []provider.Config
	Types          []question.AnalysisType
	WarmupRuns     int
	TestRuns       int
	PerCallTimeout time.Duration
	InterCallDelay time.Duration
	QuestionDelay  time.Duration
	OutputDir      string
}

// Runner executes batch runs.
type Runner struct {
	settings   Settings
	dispatcher Dispatcher
	validator  *quality.Validator
	resolver   Resolver
	store      store.Store
	metrics    *metrics.Recorder
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithResolver enables citation resolution before merging.
func WithResolver(r Resolver) Option {
	return func(rn *Runner) { rn.resolver = r }
}

// WithStore persists runs, results and merged sources.
func WithStore(s store.Store) Option {
	return func(rn *Runner) { rn.store = s }
}

// WithMetrics records quality scores and run lifecycle.
func WithMetrics(m *metrics.Recorder) Option {
	return func(rn *Runner) { rn.metrics = m }
}

// WithClock overrides the time source used for run IDs.
func WithClock(now func() time.Time) Option {
	return func(rn *Runner) { rn.now = now }
}

// New creates a Runner.
func New(settings Settings, d Dispatcher, v *quality.Validator, opts ...Option) *Runner {
	if settings.TestRuns < 1 {
		settings.TestRuns = 1
	}
	rn := &Runner{
		settings:   settings,
		dispatcher: d,
		validator:  v,
		now:        time.Now,
	}
	for _, o := range opts {
		o(rn)
	}
	return rn
}

// Outcome is the result of a completed run.
type Outcome struct {
	RunID           string
	Report          aggregate.Report
	Recommendations aggregate.Recommendations
	Sources         []export.QuestionSources
	Artifacts       export.Artifacts
}

// Run executes the batch over questions. Provider failures are recorded and
// never abort the run. A cancelled context stops the loop between questions;
// the partial aggregate is still exported and the error is returned.
func (rn *Runner) Run(ctx context.Context, questions []question.Question) (*Outcome, error) {
	qs := question.Filter(questions, rn.settings.Types)
	if len(qs) == 0 {
		return nil, eris.New("bench: no questions match the selected types")
	}

	started := rn.now().UTC()
	runCfg := rn.runConfig(started.Format(RunIDLayout), len(qs))
	if rn.store != nil {
		run, err := rn.store.CreateRun(ctx, runCfg)
		if err != nil {
			return nil, eris.Wrap(err, "bench: create run")
		}
		runCfg.RunID = run.ID
	}
	if rn.metrics != nil {
		rn.metrics.RunStarted()
	}

	log := zap.L().With(zap.String("run_id", runCfg.RunID))
	log.Info("bench: run started",
		zap.Int("questions", len(qs)),
		zap.Int("providers", len(rn.settings.Providers)),
		zap.Int("warmup_runs", rn.settings.WarmupRuns),
		zap.Int("test_runs", rn.settings.TestRuns),
	)

	batch := aggregate.NewBatch(rn.settings.Providers)
	rn.warmup(ctx, qs[0], batch)

	var merged []export.QuestionSources
	loopErr := rn.loop(ctx, runCfg.RunID, qs, batch, &merged)

	report := aggregate.Finalize(batch)
	out := &Outcome{
		RunID:           runCfg.RunID,
		Report:          report,
		Recommendations: aggregate.Recommend(report.Providers),
		Sources:         merged,
	}

	artifacts, err := export.WriteDir(filepath.Join(rn.settings.OutputDir, runCfg.RunID), export.Bundle{
		ExportedAt:      rn.now().UTC(),
		Config:          runCfg,
		Report:          out.Report,
		Recommendations: out.Recommendations,
		Sources:         merged,
	})
	if err != nil {
		rn.finish(ctx, out, store.RunStatusFailed, err)
		return nil, eris.Wrap(err, "bench: export")
	}
	out.Artifacts = artifacts

	if loopErr != nil {
		rn.finish(ctx, out, store.RunStatusFailed, loopErr)
		return out, loopErr
	}
	rn.finish(ctx, out, store.RunStatusComplete, nil)

	log.Info("bench: run complete",
		zap.Float64("success_rate", report.Overall.SuccessRate),
		zap.Float64("total_cost", report.Overall.TotalCost),
		zap.String("artifacts", artifacts.Dir),
	)
	return out, nil
}

func (rn *Runner) warmup(ctx context.Context, q question.Question, batch *aggregate.Batch) {
	for i := 0; i < rn.settings.WarmupRuns; i++ {
		zap.L().Debug("bench: warm-up", zap.Int("pass", i+1), zap.String("question_id", q.ID))
		rn.dispatcher.Warmup(ctx, q, rn.settings.Providers)
	}
	rn.markSkipped(batch)
}

func (rn *Runner) loop(ctx context.Context, runID string, qs []question.Question, batch *aggregate.Batch, merged *[]export.QuestionSources) error {
	for run := 1; run <= rn.settings.TestRuns; run++ {
		for i, q := range qs {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "bench: run interrupted")
			}
			entry, ok := rn.question(ctx, runID, run, q, batch)
			if !ok {
				return eris.Wrap(ctx.Err(), "bench: run interrupted")
			}
			*merged = append(*merged, entry)

			last := run == rn.settings.TestRuns && i == len(qs)-1
			if !last && rn.settings.QuestionDelay > 0 {
				select {
				case <-ctx.Done():
					return eris.Wrap(ctx.Err(), "bench: run interrupted")
				case <-time.After(rn.settings.QuestionDelay):
				}
			}
		}
	}
	return nil
}

// question dispatches q to every active provider and folds the results into
// the batch in declared provider order. It reports false, recording nothing,
// when the run was cancelled while the question was in flight.
func (rn *Runner) question(ctx context.Context, runID string, run int, q question.Question, batch *aggregate.Batch) (export.QuestionSources, bool) {
	results := rn.dispatcher.Dispatch(ctx, q, rn.dispatcher.Active(rn.settings.Providers))
	if ctx.Err() != nil {
		zap.L().Info("bench: question interrupted, results dropped", zap.String("question_id", q.ID))
		return export.QuestionSources{}, false
	}
	if rn.resolver != nil {
		results = rn.resolver.Results(ctx, results)
	}

	qctx := quality.ContextFor(q)
	for _, r := range results {
		var v *quality.Result
		if r.OK() {
			res := rn.validator.Validate(r.Answer, q.Type, qctx)
			v = &res
			if rn.metrics != nil {
				rn.metrics.ObserveQuality(q, r.Provider, res)
			}
		}
		batch.Record(q, r, v)

		if rn.store != nil {
			if err := rn.store.SaveResult(ctx, runID, run, q, r, v); err != nil {
				zap.L().Warn("bench: persist result failed", zap.String("question_id", q.ID), zap.Error(err))
			}
		}
	}

	ms := sources.Merge(results)
	entry := export.QuestionSources{
		QuestionID: q.ID,
		Type:       q.Type,
		Text:       q.Text,
		Run:        run,
		Sources:    ms,
		Summary:    sources.Summarize(ms),
	}
	if rn.store != nil {
		if err := rn.store.SaveSources(ctx, runID, entry); err != nil {
			zap.L().Warn("bench: persist sources failed", zap.String("question_id", q.ID), zap.Error(err))
		}
	}
	return entry, true
}

func (rn *Runner) markSkipped(batch *aggregate.Batch) {
	for _, p := range rn.settings.Providers {
		if rn.dispatcher.Skipped(p.Name) {
			batch.MarkSkipped(p.Name)
		}
	}
}

func (rn *Runner) finish(ctx context.Context, out *Outcome, status store.RunStatus, runErr error) {
	if rn.metrics != nil {
		rn.metrics.RunFinished(string(status))
	}
	if rn.store == nil {
		return
	}
	fin := store.Finish{
		Status:          status,
		Report:          &out.Report,
		Recommendations: &out.Recommendations,
		ArtifactsDir:    out.Artifacts.Dir,
	}
	if runErr != nil {
		fin.Error = runErr.Error()
	}
	// The run record is finalized even when the batch context was cancelled.
	if err := rn.store.FinishRun(context.WithoutCancel(ctx), out.RunID, fin); err != nil {
		zap.L().Warn("bench: finish run failed", zap.String("run_id", out.RunID), zap.Error(err))
	}
}

func (rn *Runner) runConfig(runID string, questions int) export.RunConfig {
	cfg := export.RunConfig{
		RunID:            runID,
		Questions:        questions,
		WarmupRuns:       rn.settings.WarmupRuns,
		TestRuns:         rn.settings.TestRuns,
		PerCallTimeoutMs: rn.settings.PerCallTimeout.Milliseconds(),
		InterCallDelayMs: rn.settings.InterCallDelay.Milliseconds(),
		QuestionTypes:    []string{},
	}
	for _, p := range rn.settings.Providers {
		cfg.Providers = append(cfg.Providers, export.ProviderInfo{Name: string(p.Name), Kind: string(p.Kind), Model: p.Model})
	}
	for _, t := range rn.settings.Types {
		cfg.QuestionTypes = append(cfg.QuestionTypes, string(t))
	}
	return cfg
}
