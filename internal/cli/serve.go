package cli

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/dealdesk/internal/match"
	"github.com/ppiankov/dealdesk/internal/mcp"
	"github.com/ppiankov/dealdesk/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planner as MCP tools over stdio",
	Long: `Serve starts an MCP server on stdin/stdout exposing build_narrative_plan,
execute_narrative_plan and search_entities to an MCP client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openStore(ctx, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close(context.Background()) }()

		server := mcp.NewServer(pipeline.NewPipeline(cfg, s), match.NewMatcher(s), Version)
		zap.L().Info("mcp: serving on stdio", zap.String("store", cfg.Store.DSN))
		return server.Run(ctx, &sdk.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
