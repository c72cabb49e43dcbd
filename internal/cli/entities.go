package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/model"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Inspect records in the entity store",
}

var entitiesSearchCmd = &cobra.Command{
	Use:   "search <type> <name>",
	Short: "Show the existing records a name would match",
	Long: `Search runs the same matcher the planner uses and prints candidates with
their confidence. Matches at or above 80% are used without asking.

Types: health_system, company, co_investor

Example:
  dealdesk entities search company "a startup called CarePilot"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := parseEntityType(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context(), cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close(context.Background()) }()

		matches, err := match.NewMatcher(s).FetchEntityMatches(cmd.Context(), entityType, args[1])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching records.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCONFIDENCE\tREASON\tAUTO")
		for _, m := range matches {
			auto := ""
			if match.IsAutoMatch(m.Confidence) {
				auto = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n", m.ID, m.Name, m.Confidence*100, m.Reason, auto)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
	entitiesCmd.AddCommand(entitiesSearchCmd)
}

func parseEntityType(raw string) (model.EntityType, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	switch normalized {
	case "HS", "HEALTHSYSTEM":
		normalized = string(model.EntityHealthSystem)
	case "COINVESTOR", "INVESTOR":
		normalized = string(model.EntityCoInvestor)
	}
	entityType := model.EntityType(normalized)
	if !entityType.Valid() {
		return "", fmt.Errorf("unknown entity type %q (expected health_system, company or co_investor)", raw)
	}
	return entityType, nil
}
