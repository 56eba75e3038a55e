package commands

import (
	"github.com/spf13/cobra"

	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/ui"
)

// Version is set by main.
var Version = "dev"

var (
	cfgFile  string
	logLevel string
	verbose  bool
	noColor  bool
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf-renamer",
	Short: "Rename invoice PDFs from the fields a vision model reads off page one",
	Long: `pdf-renamer renders the first page of each invoice PDF, asks a vision
model for the date, merchant, amount and related fields, and renames the file
from a template such as "{date}_{merchant}_{amount}".

Renames are journaled so a run can be listed with "history" and reverted
with "undo".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitUI(noColor, verbose, jsonOut)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
