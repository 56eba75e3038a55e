package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/ui"
)

var undoCmd = &cobra.Command{
	Use:   "undo [run-id]",
	Short: "Revert the renames of a run",
	Long: `Move every file renamed by a run back to its original name, newest
rename first. Without a run ID the latest run that renamed anything and was
not already undone is reverted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

func init() {
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r, _, err := openRenamer(ctx, true, nil, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	var runID string
	if len(args) == 1 {
		runID = args[0]
	}

	spinner := ui.NewSpinner("Restoring original names...")
	spinner.Start()
	result, err := r.Undo(ctx, runID)
	spinner.Stop()
	if err != nil {
		return err
	}

	if jsonOut {
		return ui.JSON(result)
	}

	ui.Success("Run %s: %d restored, %d already restored", result.RunID, result.Restored, result.Skipped)
	if len(result.Failures) == 0 {
		return nil
	}

	ui.Section("Not restored")
	rows := make([][]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		rows = append(rows, []string{f.Entry.NewName, f.Entry.OldName, f.Error})
	}
	ui.Table([]string{"Current", "Original", "Reason"}, rows)
	return fmt.Errorf("%d renames could not be reverted", len(result.Failures))
}
