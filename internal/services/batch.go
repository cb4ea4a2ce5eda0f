package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/aokilab/paperdeck/internal/archive"
	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/deck"
	"github.com/aokilab/paperdeck/internal/extract"
	"github.com/aokilab/paperdeck/internal/folder"
	"github.com/aokilab/paperdeck/internal/gcp"
	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/tracking"
)

// BatchFunction holds the dependencies for one batch run. It is the
// failure-absorbing boundary of the pipeline: per-document failures are
// recorded and counted, never propagated; only missing configuration aborts.
type BatchFunction struct {
	cfg       *config.Config
	folder    Folder
	extractor Extractor
	renderer  Renderer
	store     TrackingStore
	archiver  Archiver    // nil when archiving is disabled
	runLog    RunRecorder // nil when run history is unavailable
	now       func() time.Time
}

// NewBatch creates a BatchFunction wired to the real collaborators. The
// extraction credential is the only identifier required at construction;
// folder and store identifiers are checked per run.
func NewBatch(ctx context.Context) (*BatchFunction, error) {
	cfg := config.Load()
	if err := cfg.ValidateExtraction(); err != nil {
		return nil, err
	}

	driveSvc, err := gcp.NewDriveService(ctx)
	if err != nil {
		return nil, err
	}
	sheetsSvc, err := gcp.NewSheetsService(ctx)
	if err != nil {
		return nil, err
	}
	slidesSvc, err := gcp.NewSlidesService(ctx)
	if err != nil {
		return nil, err
	}
	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	f := &BatchFunction{
		cfg:       cfg,
		folder:    folderAdapter{f: folder.NewDriveFolder(driveSvc, cfg.SourceFolderID)},
		extractor: extract.NewGeminiExtractor(driveSvc, vertexClient),
		renderer:  deck.NewSlidesRenderer(slidesSvc, driveSvc, cfg.TemplateID, cfg.OutputFolderID),
		store:     tracking.NewStore(tracking.NewSheetValues(sheetsSvc, cfg.SpreadsheetID, cfg.SheetName)),
		runLog:    newRunLog(ctx, cfg),
		now:       time.Now,
	}

	if cfg.ArchiveBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		f.archiver = archive.NewArchiver(storageClient, cfg.ArchiveBucket)
	}

	slog.Info("Batch runner initialized.", "model", cfg.GeminiModel)
	return f, nil
}

// Run processes up to quota documents from the source folder. Documents whose
// row already had status DONE when the run started are skipped without
// invoking any collaborator. Returns aggregate counts; the counts are valid
// even when every document failed.
func (f *BatchFunction) Run(ctx context.Context, quota int) (*models.BatchRunResponse, error) {
	if err := f.cfg.ValidateBatch(); err != nil {
		return nil, err
	}
	if quota <= 0 {
		quota = f.cfg.DefaultQuota
	}

	runID := uuid.NewString()
	logCtx := slog.With("runId", runID, "quota", quota)
	startedAt := f.now()
	logCtx.Info("Starting batch run.")

	// One snapshot per run. A concurrent run finishing a document after this
	// point may cause redundant reprocessing; single-run invocation is assumed.
	rows, err := f.store.LoadAll(ctx)
	if err != nil {
		logCtx.Error("Could not read tracking store; treating as empty.", "error", err)
		rows = nil
	}
	alreadyDone := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Status == models.StatusDone {
			alreadyDone[row.ID] = true
		}
	}
	f.retireStaleRows(ctx, logCtx, rows)

	resp := &models.BatchRunResponse{}
	it := f.folder.Documents(ctx)
	for resp.Attempted < quota {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logCtx.Error("Folder enumeration failed; ending run early.", "error", err)
			break
		}
		if alreadyDone[doc.ID] {
			continue
		}
		resp.Attempted++
		f.processDocument(ctx, logCtx, doc, resp)
	}

	logCtx.Info("Batch run finished.",
		"attempted", resp.Attempted, "processed", resp.Processed, "errors", resp.Errors)
	f.recordRun(ctx, logCtx, models.RunRecord{
		RunID:      runID,
		Kind:       "batch",
		Quota:      quota,
		Attempted:  resp.Attempted,
		Processed:  resp.Processed,
		Errors:     resp.Errors,
		StartedAt:  startedAt,
		FinishedAt: f.now(),
	})
	return resp, nil
}

// processDocument drives one document through extraction and rendering and
// records every transition. Failures increment the error count and never
// abort the run.
func (f *BatchFunction) processDocument(ctx context.Context, logCtx *slog.Logger, doc models.DocumentHandle, resp *models.BatchRunResponse) {
	docLog := logCtx.With("documentId", doc.ID, "name", doc.Name)
	docLog.Info("Processing document.")

	f.upsert(ctx, docLog, doc, tracking.Started{})

	record, err := f.extractor.Extract(ctx, doc)
	if err != nil {
		docLog.Error("Extraction failed.", "error", err)
		f.upsert(ctx, docLog, doc, tracking.ExtractFailed{Err: err})
		resp.Errors++
		return
	}

	// Snapshot the record while the deck renders; neither write depends on
	// the other, and the snapshot never affects row state.
	eg, gctx := errgroup.WithContext(ctx)
	if f.archiver != nil {
		eg.Go(func() error {
			return f.archiver.SaveRecord(gctx, doc.ID, record)
		})
	}
	deckURL, renderErr := f.renderer.Render(ctx, doc.ID, doc.Name, record)
	if err := eg.Wait(); err != nil {
		docLog.Warn("Record snapshot failed.", "error", err)
	}

	if renderErr != nil {
		docLog.Error("Render failed; extraction result is kept for a later sweep.", "error", renderErr)
		f.upsert(ctx, docLog, doc, tracking.RenderFailed{Record: record, Err: renderErr})
		resp.Errors++
		return
	}

	f.upsert(ctx, docLog, doc, tracking.Completed{Record: record, URL: deckURL})
	resp.Processed++
	docLog.Info("Document complete.", "slideUrl", deckURL)
}

// retireStaleRows marks rows stuck in PROCESSING beyond the configured
// threshold as failed, so an aborted run's leftovers surface as errors
// instead of lingering. Disabled unless PROCESSING_STALE_AFTER is set.
func (f *BatchFunction) retireStaleRows(ctx context.Context, logCtx *slog.Logger, rows []models.TrackingRow) {
	if f.cfg.StaleProcessingAfter <= 0 {
		return
	}
	cutoff := f.now().Add(-f.cfg.StaleProcessingAfter)
	for _, row := range rows {
		if row.Status != models.StatusProcessing || row.ProcessedAt.IsZero() || !row.ProcessedAt.Before(cutoff) {
			continue
		}
		logCtx.Warn("Retiring stale PROCESSING row.", "documentId", row.ID, "processedAt", row.ProcessedAt)
		doc := models.DocumentHandle{ID: row.ID, Name: row.Name, URL: row.URL}
		staleErr := fmt.Errorf("no terminal outcome since %s; run presumed aborted", row.ProcessedAt.Format(time.RFC3339))
		f.upsert(ctx, logCtx, doc, tracking.ExtractFailed{Err: staleErr})
	}
}

// upsert applies the reducer and writes the result. Store failures are
// logged, never propagated.
func (f *BatchFunction) upsert(ctx context.Context, logCtx *slog.Logger, doc models.DocumentHandle, outcome tracking.Outcome) {
	upd, err := tracking.Reduce(outcome)
	if err != nil {
		logCtx.Error("Could not reduce attempt outcome.", "documentId", doc.ID, "error", err)
		return
	}
	if err := f.store.Upsert(ctx, doc, upd); err != nil {
		logCtx.Error("Failed to update tracking row.", "documentId", doc.ID, "error", err)
	}
}

func (f *BatchFunction) recordRun(ctx context.Context, logCtx *slog.Logger, rec models.RunRecord) {
	if f.runLog == nil {
		return
	}
	if err := f.runLog.Record(ctx, rec); err != nil {
		logCtx.Warn("Failed to record run history.", "error", err)
	}
}
