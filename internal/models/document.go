package models

import "time"

// DocumentHandle identifies one source PDF in the Drive folder. It carries
// identity and display metadata only, never content.
type DocumentHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RunRecord is the summary document written to Firestore after each batch or
// sweep run. One record per invocation, keyed by a fresh run ID.
type RunRecord struct {
	RunID      string    `firestore:"runId,omitempty"`
	Kind       string    `firestore:"kind,omitempty"` // "batch" or "sweep"
	Quota      int       `firestore:"quota,omitempty"`
	Attempted  int       `firestore:"attempted"`
	Processed  int       `firestore:"processed"`
	Errors     int       `firestore:"errors"`
	StartedAt  time.Time `firestore:"startedAt,omitempty"`
	FinishedAt time.Time `firestore:"finishedAt,omitempty"`
}
