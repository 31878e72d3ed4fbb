package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
	"github.com/abdul-hamid-achik/hookline/packages/extensions/history"
	"github.com/abdul-hamid-achik/hookline/packages/output"
)

var (
	historyLimitFlag int
	historyClearFlag bool
	historyDBFlag    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show calls recorded by the history extension",
	Long: `Show the most recent calls stored by the history extension, newest first.

The database is taken from extensions.history.path in the config file
unless --db is given.

Examples:
  hookline history
  hookline history -n 50 -v
  hookline history --clear`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", getEnvInt("HOOKLINE_HISTORY_LIMIT", 20), "Number of calls to show, 0 for all (env: HOOKLINE_HISTORY_LIMIT)")
	historyCmd.Flags().BoolVar(&historyClearFlag, "clear", false, "Delete every recorded call")
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("HOOKLINE_HISTORY_DB", ""), "History database path (env: HOOKLINE_HISTORY_DB)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyDBFlag
	if path == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Extensions.History == nil {
			return errs.Validation("history is not enabled (set extensions.history.path or pass --db)")
		}
		path = cfg.Extensions.History.Path
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if historyClearFlag {
		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d calls\n", n)
		return nil
	}

	entries, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	output.NewConsoleFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithVerbose(verboseFlag > 0),
		output.WithNoColor(noColorFlag),
	).FormatHistory(entries)
	return nil
}
