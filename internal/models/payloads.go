package models

// These structs define the JSON payloads for the HTTP entry points.

// BatchRunRequest is the input for the batch-runner function. A zero or
// missing quota falls back to the configured default.
type BatchRunRequest struct {
	Quota int `json:"quota,omitempty"`
}

// BatchRunResponse reports aggregate counts for one batch run.
type BatchRunResponse struct {
	Attempted int `json:"attempted"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// ReplayRequest is the input for the deck-replayer function.
type ReplayRequest struct {
	DocumentID string `json:"documentId"`
}

// ReplayResponse is the output of the deck-replayer function.
type ReplayResponse struct {
	Status   string `json:"status"`
	SlideURL string `json:"slideUrl"`
}

// SweepRequest is the input for the pending-sweeper function.
type SweepRequest struct {
	Quota int `json:"quota,omitempty"`
}

// SweepEntry is the per-row result of one sweep item.
type SweepEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SlideURL string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SweepResponse aggregates the results of one sweep run.
type SweepResponse struct {
	Processed int          `json:"processed"`
	Errors    int          `json:"errors"`
	Entries   []SweepEntry `json:"entries"`
}
