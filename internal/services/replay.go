package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/deck"
	"github.com/aokilab/paperdeck/internal/gcp"
	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/tracking"
)

// Entry-point-local errors. Unlike the batch driver, the single-item replay
// path surfaces failures to its caller.
var (
	ErrRowNotFound   = errors.New("tracking row not found")
	ErrMissingRecord = errors.New("tracking row has no structured record")
)

// ReplayFunction re-renders a deck from a previously stored structured record
// without repeating extraction.
type ReplayFunction struct {
	cfg      *config.Config
	store    TrackingStore
	renderer Renderer
}

// NewReplay creates a ReplayFunction wired to the real collaborators. No
// extractor is constructed, so the extraction credential is not required.
func NewReplay(ctx context.Context) (*ReplayFunction, error) {
	cfg := config.Load()

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

	return &ReplayFunction{
		cfg:      cfg,
		store:    tracking.NewStore(tracking.NewSheetValues(sheetsSvc, cfg.SpreadsheetID, cfg.SheetName)),
		renderer: deck.NewSlidesRenderer(slidesSvc, driveSvc, cfg.TemplateID, cfg.OutputFolderID),
	}, nil
}

// Replay renders the deck for one document from its stored record and
// returns the deck URL. The render outcome is persisted on the row either
// way; a render failure is returned to the caller after being recorded.
func (f *ReplayFunction) Replay(ctx context.Context, docID string) (string, error) {
	if err := f.cfg.ValidateTracking(); err != nil {
		return "", err
	}
	logCtx := slog.With("documentId", docID)

	row, ok, err := f.store.Get(ctx, docID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRowNotFound, docID)
	}
	if row.JSONInfo == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRecord, docID)
	}
	record, err := models.DecodeRecord(row.JSONInfo)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMissingRecord, docID, err)
	}

	doc := models.DocumentHandle{ID: row.ID, Name: row.Name, URL: row.URL}
	deckURL, renderErr := f.renderer.Render(ctx, row.ID, row.Name, record)
	if renderErr != nil {
		logCtx.Error("Replay render failed.", "error", renderErr)
		f.upsert(ctx, logCtx, doc, tracking.RenderFailed{Record: record, Err: renderErr})
		return "", renderErr
	}

	f.upsert(ctx, logCtx, doc, tracking.Completed{Record: record, URL: deckURL})
	logCtx.Info("Replay complete.", "slideUrl", deckURL)
	return deckURL, nil
}

func (f *ReplayFunction) upsert(ctx context.Context, logCtx *slog.Logger, doc models.DocumentHandle, outcome tracking.Outcome) {
	upd, err := tracking.Reduce(outcome)
	if err != nil {
		logCtx.Error("Could not reduce attempt outcome.", "error", err)
		return
	}
	if err := f.store.Upsert(ctx, doc, upd); err != nil {
		logCtx.Error("Failed to update tracking row.", "error", err)
	}
}
