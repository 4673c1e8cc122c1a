package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/export"
	"github.com/everstacklabs/brandscope/internal/publish"
)

func publishCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a stored run's artifacts to the reports repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			run, err := st.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			if run.Report == nil || run.ArtifactsDir == "" {
				return eris.Errorf("brandscope: run %s has no exported artifacts", runID)
			}
			qs, err := st.ListSources(ctx, runID)
			if err != nil {
				return err
			}

			var artifacts []string
			for _, name := range []string{export.CSVFile, export.JSONFile, export.XLSXFile, export.SourcesFile} {
				path := filepath.Join(run.ArtifactsDir, name)
				if _, err := os.Stat(path); err == nil {
					artifacts = append(artifacts, path)
				}
			}

			var rec aggregate.Recommendations
			if run.Recommendations != nil {
				rec = *run.Recommendations
			}

			res, err := newPublisher(ctx, cfg).Publish(ctx, publish.Report{
				RunID:     run.ID,
				Artifacts: artifacts,
				Summary:   publish.RenderSummary(run.ID, *run.Report, rec, qs),
				Draft:     publish.Draft(*run.Report),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed %s on %s\n", res.Commit, res.Branch)
			if res.PRURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "pull request: %s\n", res.PRURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "stored run id")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
