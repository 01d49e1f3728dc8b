package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chinyancb/sbifx/internal/journal"
)

type journalOptions struct {
	DBPath string
}

// open resolves --db, falling back to journal.db_path from the config.
func (jo *journalOptions) open(ro *rootOptions) (*journal.SQLite, error) {
	path := jo.DBPath
	if path == "" {
		cfg, err := ro.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database: pass --db or set journal.db_path")
	}

	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func newJournalCmd(ro *rootOptions) *cobra.Command {
	jo := &journalOptions{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the call and decision journal",
		Long: `Query and display journaled calls and decisions from the SQLite journal.

Subcommands:
  decisions - List the most recent committed decisions
  decision  - Show one decision by ID
  calls     - List judge calls emitted on a day

Examples:
  sbifx journal decisions --limit 10
  sbifx journal decision 01HV3K8...
  sbifx journal calls 2024-01-15`,
	}

	cmd.PersistentFlags().StringVarP(&jo.DBPath, "db", "d", "", "path to SQLite journal DB (default: journal.db_path)")

	var limit int
	decisions := &cobra.Command{
		Use:   "decisions",
		Short: "List the most recent committed decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := jo.open(ro)
			if err != nil {
				return err
			}
			defer j.Close()

			ds, err := j.ListDecisions(limit)
			if err != nil {
				return fmt.Errorf("query decisions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatDecisionsOrg(ds))
			return nil
		},
	}
	decisions.Flags().IntVarP(&limit, "limit", "n", 20, "number of decisions (0 = all)")

	decision := &cobra.Command{
		Use:   "decision <id>",
		Short: "Show one decision by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := jo.open(ro)
			if err != nil {
				return err
			}
			defer j.Close()

			d, err := j.GetDecision(args[0])
			if err != nil {
				return fmt.Errorf("get decision: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatDecisionOrg(d))
			return nil
		},
	}

	calls := &cobra.Command{
		Use:   "calls [YYYY-MM-DD]",
		Short: "List judge calls emitted on a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.Local
			day := time.Now().In(loc).Format("2006-01-02")
			if len(args) == 1 {
				day = args[0]
			}
			start, end, err := dayBounds(loc, day)
			if err != nil {
				return fmt.Errorf("date: %w", err)
			}

			j, err := jo.open(ro)
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListCallsBetween(start, end)
			if err != nil {
				return fmt.Errorf("query calls: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), journal.FormatCallsOrg(recs))
			return nil
		},
	}

	cmd.AddCommand(decisions, decision, calls)
	return cmd
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
