// Package ui provides terminal output for the pdf-renamer CLI.
package ui

import (
	"os"

	"github.com/fatih/color"
)

var (
	quietFlag   bool
	verboseFlag bool
)

// InitUI applies color and verbosity settings. quiet suppresses everything
// except errors and machine-readable output.
func InitUI(noColor, verbose, quiet bool) {
	verboseFlag = verbose
	quietFlag = quiet

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

// Quiet reports whether human output is suppressed.
func Quiet() bool {
	return quietFlag
}
