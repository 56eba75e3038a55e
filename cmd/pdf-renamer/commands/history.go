package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r, _, err := openRenamer(ctx, true, nil, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	runs, err := r.History(ctx, historyLimit)
	if err != nil {
		return err
	}

	if jsonOut {
		return ui.JSON(runs)
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		state := "done"
		switch {
		case run.UndoneAt != nil:
			state = "undone"
		case run.FinishedAt == nil:
			state = "interrupted"
		case run.DryRun:
			state = "dry run"
		}
		rows = append(rows, []string{
			run.ID,
			ui.FormatTime(&run.StartedAt),
			ui.Truncate(run.Location, 40),
			run.Provider,
			fmt.Sprintf("%d/%d", run.Completed, run.Completed+run.Failed),
			fmt.Sprintf("%d", run.Renames),
			state,
		})
	}
	ui.Table([]string{"Run", "Started", "Location", "Provider", "Completed", "Renames", "State"}, rows)
	return nil
}
