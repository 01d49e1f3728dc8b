// Package cli holds the sbifx cobra commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chinyancb/sbifx/internal/config"
	"github.com/chinyancb/sbifx/internal/logging"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// loadConfig reads --config (defaults when empty) with env overrides applied.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format).With().Str("version", Version).Logger()
}

func NewRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sbifx",
		Short: "Stochastic and MACD signal arbitration",
		Long: `sbifx watches the stochastic and MACD indicator tables deposited by the
scraper, judges each stream for crossovers and commits a position marker
when both judges agree within the allowed skew.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&ro.ConfigPath, "config", "", "Path to config file (YAML or JSON, optional)")
	cmd.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "", "Log level override: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&ro.LogFormat, "log-format", "", "Log format override: json|console")

	cmd.AddCommand(
		newRunCmd(ro),
		newFeedCmd(ro),
		newPositionsCmd(ro),
		newJournalCmd(ro),
		newConfigCmd(),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sbifx %s\n", Version)
		},
	})

	return cmd
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
