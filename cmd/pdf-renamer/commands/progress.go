package commands

import (
	"github.com/JR-coderli/SmartPdfRename/cmd/pdf-renamer/ui"
	"github.com/JR-coderli/SmartPdfRename/pkg/renamer"
)

// runProgress drives a progress bar from controller events. Events arrive
// on the run goroutine, one at a time.
type runProgress struct {
	bar *ui.ProgressBar
}

func newRunProgress() *runProgress {
	return &runProgress{}
}

func (p *runProgress) handle(e renamer.Event) {
	switch e.Type {
	case renamer.EventBatchStart:
		p.bar = ui.NewProgressBar(e.Total, "Renaming")
	case renamer.EventFileStart:
		if p.bar != nil {
			p.bar.Describe(ui.Truncate(e.File.OriginalName, 30))
		}
	case renamer.EventFileDone:
		if p.bar != nil {
			p.bar.Add(1)
		}
	case renamer.EventBatchDone:
		p.finish()
	}
}

func (p *runProgress) finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
