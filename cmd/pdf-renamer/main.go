package main

import (
	"os"

	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/commands"
	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/ui"
)

var version = "0.1.0"

func main() {
	commands.Version = version
	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
