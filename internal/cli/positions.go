package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chinyancb/sbifx/internal/position"
)

func newPositionsCmd(ro *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List committed position markers in commit order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := ro.loadConfig()
				if err != nil {
					return err
				}
				dir = cfg.Arbiter.PositionsDir
			}

			markers, err := position.NewMarkers(dir).List()
			if err != nil {
				return fmt.Errorf("list markers: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(markers) == 0 {
				fmt.Fprintf(out, "No positions committed in %s\n", dir)
				return nil
			}
			for _, m := range markers {
				fmt.Fprintf(out, "%-10s  %s  %s\n", m.Direction, m.At.Format(time.RFC3339), m.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "positions directory (default: arbiter.positions_dir)")
	return cmd
}
