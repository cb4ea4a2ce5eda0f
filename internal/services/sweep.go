package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/models"
)

// SweepFunction scans the tracking store for rows that hold an extracted
// record but no terminal render outcome, and drives each through the replay
// path. It never touches the source folder or the extractor.
type SweepFunction struct {
	cfg    *config.Config
	store  TrackingStore
	replay *ReplayFunction
	runLog RunRecorder // nil when run history is unavailable
	now    func() time.Time
}

// NewSweep creates a SweepFunction wired to the real collaborators.
func NewSweep(ctx context.Context) (*SweepFunction, error) {
	cfg := config.Load()

	replay, err := NewReplay(ctx)
	if err != nil {
		return nil, err
	}

	return &SweepFunction{
		cfg:    cfg,
		store:  replay.store,
		replay: replay,
		runLog: newRunLog(ctx, cfg),
		now:    time.Now,
	}, nil
}

// Sweep retries rendering for up to quota pending rows. A per-row failure is
// recorded on that row and does not stop the sweep.
func (f *SweepFunction) Sweep(ctx context.Context, quota int) (*models.SweepResponse, error) {
	if err := f.cfg.ValidateTracking(); err != nil {
		return nil, err
	}
	if quota <= 0 {
		quota = f.cfg.DefaultQuota
	}

	runID := uuid.NewString()
	logCtx := slog.With("runId", runID, "quota", quota)
	startedAt := f.now()
	logCtx.Info("Starting pending sweep.")

	rows, err := f.store.LoadAll(ctx)
	if err != nil {
		logCtx.Error("Could not read tracking store; nothing to sweep.", "error", err)
		rows = nil
	}

	resp := &models.SweepResponse{}
	attempted := 0
	for _, row := range rows {
		if !row.HasPendingRender() {
			continue
		}
		if attempted >= quota {
			logCtx.Info("Sweep quota reached; remaining rows left for a future sweep.")
			break
		}
		attempted++

		entry := models.SweepEntry{ID: row.ID, Name: row.Name}
		deckURL, err := f.replay.Replay(ctx, row.ID)
		if err != nil {
			logCtx.Error("Sweep item failed.", "documentId", row.ID, "error", err)
			entry.Error = err.Error()
			resp.Errors++
		} else {
			entry.SlideURL = deckURL
			resp.Processed++
		}
		resp.Entries = append(resp.Entries, entry)
	}

	logCtx.Info("Sweep finished.",
		"attempted", attempted, "processed", resp.Processed, "errors", resp.Errors)
	if f.runLog != nil {
		rec := models.RunRecord{
			RunID:      runID,
			Kind:       "sweep",
			Quota:      quota,
			Attempted:  attempted,
			Processed:  resp.Processed,
			Errors:     resp.Errors,
			StartedAt:  startedAt,
			FinishedAt: f.now(),
		}
		if err := f.runLog.Record(ctx, rec); err != nil {
			logCtx.Warn("Failed to record run history.", "error", err)
		}
	}
	return resp, nil
}
