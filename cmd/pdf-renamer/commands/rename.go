package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/ui"
	"github.com/JR-coderli/SmartPdfRename/internal/config"
	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/pkg/renamer"
)

var (
	renameTemplate   string
	renameProvider   string
	renameNoSanitize bool
	renameDryRun     bool
	renameExportDir  string
	renameRefresh    bool
)

var renameCmd = &cobra.Command{
	Use:   "rename <directory | s3://bucket/prefix | gs://bucket/prefix | file.pdf...>",
	Short: "Rename the invoice PDFs in a directory",
	Long: `Rename every PDF directly inside a directory, renaming in place.

Individual files may be given instead; their renamed copies are written to the
export directory and the originals are left untouched.

Placeholders: {date} {merchant} {invoice} {month} {amount} {currency}`,
	Example: `  pdf-renamer rename ./invoices
  pdf-renamer rename ./invoices -t "{month}_{merchant}_{amount}{currency}" --dry-run
  pdf-renamer rename s3://accounting/inbox -p gemini
  pdf-renamer rename scan1.pdf scan2.pdf --export-dir ./out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRename,
}

func init() {
	renameCmd.Flags().StringVarP(&renameTemplate, "template", "t", "", "file name template (default from config)")
	renameCmd.Flags().StringVarP(&renameProvider, "provider", "p", "", "extraction provider: openai, openrouter or gemini")
	renameCmd.Flags().BoolVar(&renameNoSanitize, "no-sanitize", false, "keep characters that are invalid in file names")
	renameCmd.Flags().BoolVar(&renameDryRun, "dry-run", false, "show the new names without renaming anything")
	renameCmd.Flags().StringVar(&renameExportDir, "export-dir", "", "where renamed copies of individual files are written")
	renameCmd.Flags().BoolVar(&renameRefresh, "refresh", false, "ignore cached extractions and ask the provider again")
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	progress := newRunProgress()
	r, cfg, err := openRenamer(ctx, true, progress.handle, func(cfg *config.Config) {
		if renameExportDir != "" {
			cfg.Export.Dir = renameExportDir
		}
	})
	if err != nil {
		return err
	}
	defer r.Close()

	runCfg, err := renameConfig(cfg.Rename)
	if err != nil {
		return err
	}

	if renameRefresh {
		if err := r.PurgeCache(ctx); err != nil {
			return err
		}
	}

	spinner := ui.NewSpinner("Reading files...")
	spinner.Start()
	views, err := ingest(ctx, r, args)
	spinner.Stop()
	if err != nil {
		return err
	}
	if len(views) == 0 {
		ui.Warning("No PDF files found")
		return nil
	}

	ui.Info("Provider: %s  Template: %s", runCfg.Provider, runCfg.Template)
	if runCfg.DryRun {
		ui.Warning("Dry run: nothing will be renamed")
	}

	summary, runErr := r.Run(ctx, runCfg)
	progress.finish()

	files := r.Files()
	if jsonOut {
		if err := ui.JSON(map[string]any{"summary": summary, "files": files}); err != nil {
			return err
		}
	} else {
		printFiles(files)
		printSummary(summary, r.ExportDir())
	}

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("interrupted, %d files left pending", summary.Total-summary.Skipped-summary.Attempted)
	}
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Attempted)
	}
	return nil
}

// renameConfig applies command-line overrides to the configured defaults.
func renameConfig(defaults domain.RenameConfig) (domain.RenameConfig, error) {
	cfg := defaults
	if renameTemplate != "" {
		cfg.Template = renameTemplate
	}
	if renameProvider != "" {
		kind, err := domain.ParseProviderKind(renameProvider)
		if err != nil {
			return cfg, err
		}
		cfg.Provider = kind
	}
	if renameNoSanitize {
		cfg.SanitizeEnabled = false
	}
	cfg.DryRun = renameDryRun

	if strings.TrimSpace(cfg.Template) == "" {
		return cfg, domain.ValidationError("template is empty", nil)
	}
	return cfg, nil
}

// ingest treats a single directory or bucket argument as a location and
// anything else as a list of files.
func ingest(ctx context.Context, r *renamer.Renamer, args []string) ([]domain.FileView, error) {
	if len(args) == 1 && isLocation(args[0]) {
		return r.IngestLocation(ctx, args[0])
	}
	return r.IngestFiles(ctx, args)
}

func isLocation(arg string) bool {
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "s3://") || strings.HasPrefix(lower, "gs://") || strings.HasPrefix(lower, "file://") {
		return true
	}
	info, err := os.Stat(arg)
	return err == nil && info.IsDir()
}

func printFiles(files []domain.FileView) {
	ui.Section("Files")

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		newName := f.NewName
		if f.Status != domain.StatusCompleted {
			newName = "-"
		}
		detail := f.Error
		switch {
		case f.DryRun:
			detail = "dry run"
		case f.ExportedTo != "":
			detail = "exported"
		}
		rows = append(rows, []string{
			ui.Truncate(f.OriginalName, 40),
			ui.Truncate(newName, 48),
			ui.StatusColor(string(f.Status)),
			ui.Truncate(detail, 60),
		})
	}
	ui.Table([]string{"Original", "New Name", "Status", "Detail"}, rows)
}

func printSummary(s renamer.Summary, exportDir string) {
	ui.Newline()
	switch {
	case s.Failed > 0:
		ui.Warning("%d completed, %d failed, %d skipped in %s", s.Completed, s.Failed, s.Skipped, ui.FormatDuration(s.Duration))
	default:
		ui.Success("%d completed, %d skipped in %s", s.Completed, s.Skipped, ui.FormatDuration(s.Duration))
	}
	if s.Exported > 0 {
		ui.Info("%d renamed copies written to %s", s.Exported, exportDir)
	}
	if committed := s.Completed - s.DryRun - s.Exported; committed > 0 {
		ui.Info("Run %s can be reverted with: pdf-renamer undo %s", s.RunID, s.RunID)
	}
}
