package pipeline

import (
	"time"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// EventType names a point in a batch run
type EventType string

const (
	EventBatchStart EventType = "batch_start"
	EventFileStart  EventType = "file_start"
	EventFileDone   EventType = "file_done"
	EventBatchDone  EventType = "batch_done"
)

// Event reports progress to an optional sink. File is a copy and may be
// retained by the receiver.
type Event struct {
	Type    EventType       `json:"type"`
	RunID   string          `json:"run_id"`
	Index   int             `json:"index"` // position in the ingestion order, -1 for batch events
	Total   int             `json:"total"`
	File    domain.FileView `json:"file"`
	Summary *Summary        `json:"summary,omitempty"`
}

// EventSink receives events synchronously on the run goroutine
type EventSink func(Event)

// Summary aggregates the outcome of one Run
type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Attempted int           `json:"attempted"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`  // already completed before the run
	DryRun    int           `json:"dry_run"`  // completed without touching storage
	Exported  int           `json:"exported"` // written to the export directory
	Duration  time.Duration `json:"duration"`
}
