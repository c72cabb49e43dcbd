package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/llm"
	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/research"
	"github.com/ppiankov/dealdesk/internal/store"
	"github.com/ppiankov/dealdesk/internal/web"
)

var researchSchedule string

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Enrich newly created records from the web",
	Long: `Entities created from a web candidate are queued for research. Research
looks the entity up again and fills blank website, headquarters and
description fields. Failed jobs are retried up to three times.`,
}

var researchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain the research queue once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearchRunner(cmd.Context(), func(runner *research.Runner, _ *model.Config) error {
			summary, err := runner.Drain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d job(s): %d done, %d retrying, %d failed\n",
				summary.Processed, summary.Done, summary.Retrying, summary.Failed)
			return nil
		})
	},
}

var researchWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Drain the research queue on a schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearchRunner(cmd.Context(), func(runner *research.Runner, cfg *model.Config) error {
			schedule := cfg.Research.Schedule
			if researchSchedule != "" {
				schedule = researchSchedule
			}
			zap.L().Info("research: watching queue", zap.String("schedule", schedule))
			return runner.Watch(cmd.Context(), schedule)
		})
	},
}

func init() {
	rootCmd.AddCommand(researchCmd)
	researchCmd.AddCommand(researchRunCmd)
	researchCmd.AddCommand(researchWatchCmd)

	researchWatchCmd.Flags().StringVar(&researchSchedule, "schedule", "", "cron spec or @every duration (default from config)")
}

func withResearchRunner(ctx context.Context, fn func(*research.Runner, *model.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return fmt.Errorf("research needs an LLM provider: %w", err)
		}
		return err
	}

	s, err := openStore(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func(s store.Store) { _ = s.Close(context.Background()) }(s)

	fetcher := web.NewFetcherFromConfig(cfg, provider)
	runner := research.NewRunner(s, fetcher, cfg.Concurrency.ResearchWorkers, cfg.Research.BatchSize)
	return fn(runner, cfg)
}
