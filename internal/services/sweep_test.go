package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/models"
)

func trackingConfig() *config.Config {
	return &config.Config{SpreadsheetID: "sheet-1", DefaultQuota: 10}
}

func newTestSweep(store *memStore, renderer Renderer) *SweepFunction {
	cfg := trackingConfig()
	return &SweepFunction{
		cfg:    cfg,
		store:  store,
		replay: &ReplayFunction{cfg: cfg, store: store, renderer: renderer},
		now:    fixedNow,
	}
}

func pendingRow(id string) models.TrackingRow {
	return models.TrackingRow{
		ID: id, Name: id + ".pdf", URL: "https://drive.example/" + id,
		Status: models.StatusDone, JSONInfo: `{"Title":"Paper ` + id + `"}`,
	}
}

func TestSweepRendersPendingRowsWithoutExtraction(t *testing.T) {
	renderFailed := pendingRow("doc-2")
	renderFailed.DoneFlag = models.FlagError
	renderFailed.ErrorInfo = "slides copy failed"
	store := newMemStore(
		pendingRow("doc-1"),
		renderFailed,
		models.TrackingRow{ID: "doc-3", Status: models.StatusDone,
			JSONInfo: `{"Title":"done"}`, DoneFlag: models.FlagDone},
		models.TrackingRow{ID: "doc-4", Status: models.StatusError,
			ErrorInfo: "extraction failed", DoneFlag: models.FlagError},
	)
	renderer := &fakeRenderer{}
	f := newTestSweep(store, renderer)

	resp, err := f.Sweep(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Processed)
	assert.Zero(t, resp.Errors)
	assert.Equal(t, []string{"doc-1", "doc-2"}, renderer.calls)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "https://slides.example/doc-1", resp.Entries[0].SlideURL)

	// The previously failed render reaches a clean terminal state.
	row := store.row(t, "doc-2")
	assert.Equal(t, models.FlagDone, row.DoneFlag)
	assert.Equal(t, "https://slides.example/doc-2", row.SlideURL)
	assert.Empty(t, row.ErrorInfo)
}

func TestSweepQuotaBound(t *testing.T) {
	store := newMemStore(pendingRow("doc-1"), pendingRow("doc-2"), pendingRow("doc-3"))
	renderer := &fakeRenderer{}
	f := newTestSweep(store, renderer)

	resp, err := f.Sweep(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Processed)
	assert.Len(t, renderer.calls, 2)
	assert.Empty(t, store.row(t, "doc-3").DoneFlag)
}

func TestSweepContinuesPastItemFailures(t *testing.T) {
	store := newMemStore(pendingRow("doc-1"), pendingRow("doc-2"))
	renderer := &fakeRenderer{fail: map[string]bool{"doc-1": true}}
	f := newTestSweep(store, renderer)

	resp, err := f.Sweep(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Errors)
	require.Len(t, resp.Entries, 2)
	assert.NotEmpty(t, resp.Entries[0].Error)
	assert.Empty(t, resp.Entries[0].SlideURL)
	assert.Equal(t, "https://slides.example/doc-2", resp.Entries[1].SlideURL)

	failed := store.row(t, "doc-1")
	assert.Equal(t, models.FlagError, failed.DoneFlag)
	assert.NotEmpty(t, failed.ErrorInfo)
}

func TestSweepMissingConfigurationFailsFast(t *testing.T) {
	f := newTestSweep(newMemStore(), &fakeRenderer{})
	f.cfg = &config.Config{}

	_, err := f.Sweep(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingConfiguration)
}

func TestReplaySuccess(t *testing.T) {
	store := newMemStore(pendingRow("doc-1"))
	f := &ReplayFunction{cfg: trackingConfig(), store: store, renderer: &fakeRenderer{}}

	url, err := f.Replay(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://slides.example/doc-1", url)

	row := store.row(t, "doc-1")
	assert.Equal(t, models.FlagDone, row.DoneFlag)
	assert.Equal(t, url, row.SlideURL)
}

func TestReplayRowNotFound(t *testing.T) {
	f := &ReplayFunction{cfg: trackingConfig(), store: newMemStore(), renderer: &fakeRenderer{}}

	_, err := f.Replay(context.Background(), "doc-404")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestReplayMissingRecord(t *testing.T) {
	store := newMemStore(models.TrackingRow{ID: "doc-1", Status: models.StatusError})
	f := &ReplayFunction{cfg: trackingConfig(), store: store, renderer: &fakeRenderer{}}

	_, err := f.Replay(context.Background(), "doc-1")
	assert.ErrorIs(t, err, ErrMissingRecord)
}

func TestReplayMalformedRecord(t *testing.T) {
	store := newMemStore(models.TrackingRow{ID: "doc-1", JSONInfo: `{"Title": "truncated`})
	f := &ReplayFunction{cfg: trackingConfig(), store: store, renderer: &fakeRenderer{}}

	_, err := f.Replay(context.Background(), "doc-1")
	assert.ErrorIs(t, err, ErrMissingRecord)
}

func TestReplayRecordsRenderFailureBeforeSurfacingIt(t *testing.T) {
	store := newMemStore(pendingRow("doc-1"))
	renderer := &fakeRenderer{fail: map[string]bool{"doc-1": true}}
	f := &ReplayFunction{cfg: trackingConfig(), store: store, renderer: renderer}

	_, err := f.Replay(context.Background(), "doc-1")
	require.Error(t, err)

	row := store.row(t, "doc-1")
	assert.Equal(t, models.FlagError, row.DoneFlag)
	assert.NotEmpty(t, row.ErrorInfo)
	assert.NotEmpty(t, row.JSONInfo, "the stored record must survive a failed replay")
}
