package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/pipeline"
)

var (
	execJSON    string
	execMD      string
	execForce   bool
	execTimeout time.Duration
)

// executeCmd represents the execute command
var executeCmd = &cobra.Command{
	Use:   "execute <plan.json>",
	Short: "Execute a reviewed plan against the store",
	Long: `Execute runs the included actions of a plan in dependency order and
writes an execution report. Edit the plan JSON first to exclude actions,
pick web candidates or point a create at an existing record.

Plans still waiting for clarification are refused unless --force is set.

Example:
  dealdesk execute plan.json
  dealdesk execute plan.json --json report.json --md report.md`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringVar(&execJSON, "json", "report.json", "output JSON path (\"-\" for stdout)")
	executeCmd.Flags().StringVar(&execMD, "md", "", "output Markdown path (optional)")
	executeCmd.Flags().BoolVar(&execForce, "force", false, "execute a plan that still has open questions")
	executeCmd.Flags().DurationVar(&execTimeout, "timeout", 2*time.Minute, "overall execution timeout")
}

func runExecute(cmd *cobra.Command, args []string) error {
	narrativePlan, err := readPlan(args[0])
	if err != nil {
		return err
	}
	if !execForce {
		if err := pipeline.CheckExecutable(narrativePlan); err != nil {
			return fmt.Errorf("%w (answer the questions and re-plan, or pass --force)", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), execTimeout)
	defer cancel()

	s, err := openStore(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()

	report := pipeline.NewPipeline(cfg, s).ExecuteNarrativePlan(ctx, narrativePlan)

	r := pipeline.NewRenderer(cmd.OutOrStdout())
	if execJSON != "" {
		if err := r.WriteJSON(report, execJSON); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if execMD != "" {
		if err := r.WriteMarkdown(pipeline.ReportMarkdown(report), execMD); err != nil {
			return fmt.Errorf("write report markdown: %w", err)
		}
	}
	if execJSON != "-" && execMD != "-" {
		r.PrintReportSummary(report)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d action(s) failed", report.Failed)
	}
	return nil
}

func readPlan(path string) (model.NarrativePlan, error) {
	var narrativePlan model.NarrativePlan
	data, err := os.ReadFile(path)
	if err != nil {
		return narrativePlan, fmt.Errorf("read plan: %w", err)
	}
	if err := json.Unmarshal(data, &narrativePlan); err != nil {
		return narrativePlan, fmt.Errorf("decode plan %s: %w", path, err)
	}
	return narrativePlan, nil
}
