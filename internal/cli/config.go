package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chinyancb/sbifx/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage sbifx configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  sbifx config init -o sbifx.yaml
  sbifx config validate -f sbifx.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  sbifx run --config %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "sbifx.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Store: %s (retention %d)\n", cfg.Store.Backend, cfg.Store.Retention)
			fmt.Fprintf(out, "  Stoch: row %.0f / high %.0f\n", cfg.Stoch.RowThresh, cfg.Stoch.HighThresh)
			fmt.Fprintf(out, "  MACD: hist_zero %.0f\n", cfg.MACD.HistZero)
			fmt.Fprintf(out, "  Arbiter: skew %s, positions %s\n", cfg.Arbiter.Skew(), cfg.Arbiter.PositionsDir)
			fmt.Fprintf(out, "  Notify: %s\n", cfg.Notify.Kind)
			fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
