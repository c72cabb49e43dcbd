package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dealdesk/internal/pipeline"
)

var (
	planFile    string
	planJSON    string
	planMD      string
	planTimeout time.Duration
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan [narrative]",
	Short: "Build a reviewable action plan from narrative notes",
	Long: `Plan extracts entities, contacts and relationships from free-form notes,
matches them against the store, and writes a plan for review.

A plan either lists actions ready to execute (PLAN) or the questions that
must be answered first (CLARIFICATION). Include a phrase such as
"proceed with the plan" to skip open questions.

Example:
  dealdesk plan "Mercy General introduced us to CarePilot."
  dealdesk plan --file notes.txt --json plan.json --md plan.md
  cat notes.txt | dealdesk plan --file -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planFile, "file", "f", "", "read the narrative from a file (\"-\" for stdin)")
	planCmd.Flags().StringVar(&planJSON, "json", "plan.json", "output JSON path (\"-\" for stdout)")
	planCmd.Flags().StringVar(&planMD, "md", "", "output Markdown path (optional)")
	planCmd.Flags().DurationVar(&planTimeout, "timeout", 3*time.Minute, "overall planning timeout")
}

func runPlan(cmd *cobra.Command, args []string) error {
	narrative, err := readNarrative(args, planFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), planTimeout)
	defer cancel()

	s, err := openStore(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()

	p := pipeline.NewPipeline(cfg, s)
	narrativePlan := p.BuildNarrativePlan(ctx, narrative)

	r := pipeline.NewRenderer(cmd.OutOrStdout())
	if planJSON != "" {
		if err := r.WriteJSON(narrativePlan, planJSON); err != nil {
			return fmt.Errorf("write plan: %w", err)
		}
	}
	if planMD != "" {
		if err := r.WriteMarkdown(pipeline.PlanMarkdown(narrativePlan), planMD); err != nil {
			return fmt.Errorf("write plan markdown: %w", err)
		}
	}
	if planJSON != "-" && planMD != "-" {
		r.PrintPlanSummary(narrativePlan)
	}
	return nil
}

// readNarrative takes the narrative from the positional argument or from
// file ("-" reads stdin). Exactly one source must be given.
func readNarrative(args []string, file string, stdin io.Reader) (string, error) {
	var narrative string
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass the narrative as an argument or with --file, not both")
	case len(args) == 1:
		narrative = args[0]
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		narrative = string(data)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read narrative: %w", err)
		}
		narrative = string(data)
	default:
		return "", fmt.Errorf("a narrative is required")
	}

	if strings.TrimSpace(narrative) == "" {
		return "", fmt.Errorf("narrative is empty")
	}
	return narrative, nil
}
