package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/dealdesk/internal/model"
)

// Version is stamped at build time with -ldflags "-X .../cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	dsn     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dealdesk",
	Short: "Dealdesk - turn deal-flow notes into reviewable CRM actions",
	Long: `Dealdesk reads free-form analyst notes about health systems, startups
and co-investors and turns them into a plan of CRM actions.

Every plan is reviewable before anything is written. Names are matched
against existing records, ambiguous references become clarification
questions, and an approved plan executes in dependency order.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// ExecuteContext runs the root command with a context that subcommands
// observe for cancellation
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of dealdesk.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dealdesk %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.dealdesk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "entity store DSN (sqlite://path or postgres://...)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.dealdesk")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// DEALDESK_LLM_PROVIDER, DEALDESK_STORE_DSN, ...
	viper.SetEnvPrefix("DEALDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// envKeys are nested keys viper cannot discover from AutomaticEnv alone
var envKeys = []string{
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.base_url",
	"store.dsn",
	"search.enabled",
	"search.http_proxy",
	"search.https_proxy",
	"search.no_proxy",
	"research.schedule",
}

// loadConfig layers the config file, DEALDESK_* variables and flags over
// the defaults, then fills provider credentials from their usual variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	applyProviderEnv(cfg, os.Getenv)
	return cfg, nil
}

func applyProviderEnv(cfg *model.Config, getenv func(string) string) {
	if cfg.LLM.Provider == "" {
		switch {
		case getenv("OPENAI_API_KEY") != "":
			cfg.LLM.Provider = "openai"
		case getenv("ANTHROPIC_API_KEY") != "":
			cfg.LLM.Provider = "anthropic"
		case getenv("OLLAMA_BASE_URL") != "":
			cfg.LLM.Provider = "ollama"
		}
	}

	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
}

// setupLogger installs the global zap logger. Logs go to stderr so plan
// and report output on stdout stays machine readable.
func setupLogger(debug bool) error {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}
