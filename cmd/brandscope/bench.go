package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/everstacklabs/brandscope/internal/bench"
	"github.com/everstacklabs/brandscope/internal/metrics"
	"github.com/everstacklabs/brandscope/internal/publish"
	"github.com/everstacklabs/brandscope/internal/quality"
	"github.com/everstacklabs/brandscope/internal/question"
)

func benchCmd() *cobra.Command {
	var (
		quick     bool
		model     string
		typ       string
		doPublish bool
		questions string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the question batch against every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if quick {
				cfg.Quick()
			}
			if model != "" {
				if err := cfg.Restrict(model); err != nil {
					return err
				}
			}
			if typ != "" {
				t, err := question.ParseType(typ)
				if err != nil {
					return err
				}
				cfg.QuestionTypes = []string{string(t)}
			}
			if questions != "" {
				cfg.QuestionsFile = questions
			}

			if missing := cfg.MissingCredentials(); len(missing) > 0 {
				names := make([]string, len(missing))
				for i, n := range missing {
					names[i] = string(n)
				}
				return eris.Errorf("brandscope: missing API key for %s", strings.Join(names, ", "))
			}

			if _, err := os.Stat(cfg.QuestionsFile); err != nil {
				return eris.Wrapf(err, "brandscope: question file %s", cfg.QuestionsFile)
			}
			qs, err := question.Load(cfg.QuestionsFile)
			if err != nil {
				return err
			}
			types, err := cfg.AnalysisTypes()
			if err != nil {
				return err
			}

			adapters, err := newAdapters(cfg)
			if err != nil {
				return err
			}
			rec := metrics.Default
			d := newDispatcher(cfg, adapters, rec)

			opts := []bench.Option{bench.WithMetrics(rec)}
			if cfg.Sources.Resolve {
				opts = append(opts, bench.WithResolver(newResolver(cfg)))
			}
			if cfg.Store.Enabled {
				st, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				opts = append(opts, bench.WithStore(st))
			}

			runner := bench.New(bench.Settings{
				Providers:      cfg.Providers,
				Types:          types,
				WarmupRuns:     cfg.WarmupRuns,
				TestRuns:       cfg.TestRuns,
				PerCallTimeout: cfg.PerCallTimeout,
				InterCallDelay: cfg.InterCallDelay,
				QuestionDelay:  cfg.QuestionDelay,
				OutputDir:      cfg.OutputDir,
			}, d, quality.New(cfg.Validation.PassThreshold), opts...)

			out, err := runner.Run(ctx, qs)
			if err != nil {
				return err
			}

			printOutcome(cmd, out)

			if doPublish {
				res, err := newPublisher(ctx, cfg).Publish(ctx, publish.Report{
					RunID:     out.RunID,
					Artifacts: out.Artifacts.Paths(),
					Summary:   publish.RenderSummary(out.RunID, out.Report, out.Recommendations, out.Sources),
					Draft:     publish.Draft(out.Report),
				})
				if err != nil {
					return err
				}
				zap.L().Info("brandscope: published", zap.String("branch", res.Branch), zap.Int("pr", res.PRNumber))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&quick, "quick", false, "skip warm-up and run a single test pass")
	cmd.Flags().StringVar(&model, "model", "", "restrict the run to one provider (name or model id)")
	cmd.Flags().StringVar(&typ, "type", "", "restrict questions to one analysis type")
	cmd.Flags().BoolVar(&doPublish, "publish", false, "commit the artifacts to the reports repository")
	cmd.Flags().StringVar(&questions, "questions", "", "question file (default: from config)")

	return cmd
}

func printOutcome(cmd *cobra.Command, out *bench.Outcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s\n\n", out.RunID)
	fmt.Fprintf(w, "%-16s %-28s %8s %8s %8s %10s %10s\n", "PROVIDER", "MODEL", "CALLS", "SUCCESS", "VALID", "LATENCY", "COST")
	for _, p := range out.Report.Providers {
		name := string(p.Provider)
		if p.Skipped {
			name += "*"
		}
		fmt.Fprintf(w, "%-16s %-28s %8d %7.1f%% %7.1f%% %8.0fms %10.6f\n",
			name, p.Model, p.Questions, p.SuccessRate*100, p.ValidRate*100, p.AvgLatencyMs, p.TotalCost)
	}

	rec := out.Recommendations
	fmt.Fprintln(w)
	if rec.BestQuality != nil {
		fmt.Fprintf(w, "best quality: %s (%.2f)\n", rec.BestQuality.Provider, rec.BestQuality.Value)
	}
	if rec.BestCost != nil {
		fmt.Fprintf(w, "best cost:    %s ($%.6f)\n", rec.BestCost.Provider, rec.BestCost.Value)
	}
	if rec.Fastest != nil {
		fmt.Fprintf(w, "fastest:      %s (%.0fms)\n", rec.Fastest.Provider, rec.Fastest.Value)
	}
	fmt.Fprintf(w, "\nartifacts: %s\n", out.Artifacts.Dir)
}
