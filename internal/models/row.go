package models

import "time"

// Status values for the tracking row's Status column. Stable strings; they are
// written to the sheet verbatim.
const (
	StatusProcessing = "PROCESSING"
	StatusDone       = "DONE"
	StatusError      = "ERROR"
)

// Done Flag values. The empty string means the render stage never reached a
// terminal outcome for this row.
const (
	FlagDone  = "DONE"
	FlagError = "ERROR"
)

// TrackingRow is the persisted processing state for one document, one sheet
// row per document ID.
type TrackingRow struct {
	ID          string
	Name        string
	URL         string
	Status      string
	JSONInfo    string
	ErrorInfo   string
	ProcessedAt time.Time
	DoneFlag    string
	SlideURL    string
}

// HasPendingRender reports whether the row holds an extracted record that has
// not been fully rendered. A render failure leaves the flag at ERROR, and a
// sweep retries those too. These are the rows a sweep picks up.
func (r *TrackingRow) HasPendingRender() bool {
	return r.JSONInfo != "" && r.DoneFlag != FlagDone
}
