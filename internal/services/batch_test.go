package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/tracking"
)

// fakeFolder yields a fixed document list.
type fakeFolder struct {
	docs  []models.DocumentHandle
	calls int
}

func (f *fakeFolder) Documents(ctx context.Context) DocumentIterator {
	f.calls++
	return &fakeIterator{docs: f.docs}
}

type fakeIterator struct {
	docs []models.DocumentHandle
	pos  int
}

func (it *fakeIterator) Next() (models.DocumentHandle, error) {
	if it.pos >= len(it.docs) {
		return models.DocumentHandle{}, iterator.Done
	}
	doc := it.docs[it.pos]
	it.pos++
	return doc, nil
}

// fakeExtractor succeeds with a per-document record unless the ID is listed
// in fail.
type fakeExtractor struct {
	fail  map[string]bool
	calls []string
}

func (e *fakeExtractor) Extract(ctx context.Context, doc models.DocumentHandle) (*models.StructuredRecord, error) {
	e.calls = append(e.calls, doc.ID)
	if e.fail[doc.ID] {
		return nil, fmt.Errorf("model returned malformed output for %s", doc.ID)
	}
	return &models.StructuredRecord{Title: "Paper " + doc.ID, Journal: "BMJ"}, nil
}

// fakeRenderer returns a deterministic URL unless the ID is listed in fail.
type fakeRenderer struct {
	fail  map[string]bool
	calls []string
}

func (r *fakeRenderer) Render(ctx context.Context, docID, docName string, record *models.StructuredRecord) (string, error) {
	r.calls = append(r.calls, docID)
	if r.fail[docID] {
		return "", fmt.Errorf("slides copy failed for %s", docID)
	}
	return "https://slides.example/" + docID, nil
}

// memStore is an in-memory TrackingStore with the same merge semantics as the
// sheet-backed store: Status always written, pointer fields only when set,
// Processed At stamped on every write.
type memStore struct {
	rows    []models.TrackingRow
	index   map[string]int
	loadErr error
	upserts int
	now     time.Time
}

func newMemStore(rows ...models.TrackingRow) *memStore {
	s := &memStore{index: map[string]int{}, now: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	for _, row := range rows {
		s.rows = append(s.rows, row)
		s.index[row.ID] = len(s.rows) - 1
	}
	return s
}

func (s *memStore) LoadAll(ctx context.Context) ([]models.TrackingRow, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.TrackingRow(nil), s.rows...), nil
}

func (s *memStore) Get(ctx context.Context, id string) (models.TrackingRow, bool, error) {
	i, ok := s.index[id]
	if !ok {
		return models.TrackingRow{}, false, nil
	}
	return s.rows[i], true, nil
}

func (s *memStore) Upsert(ctx context.Context, doc models.DocumentHandle, upd tracking.RowUpdate) error {
	s.upserts++
	i, ok := s.index[doc.ID]
	if !ok {
		s.rows = append(s.rows, models.TrackingRow{ID: doc.ID, Name: doc.Name, URL: doc.URL})
		i = len(s.rows) - 1
		s.index[doc.ID] = i
	}
	row := &s.rows[i]
	row.Status = upd.Status
	if upd.JSONInfo != nil {
		row.JSONInfo = *upd.JSONInfo
	}
	if upd.ErrorInfo != nil {
		row.ErrorInfo = *upd.ErrorInfo
	}
	if upd.DoneFlag != nil {
		row.DoneFlag = *upd.DoneFlag
	}
	if upd.SlideURL != nil {
		row.SlideURL = *upd.SlideURL
	}
	row.ProcessedAt = s.now
	return nil
}

func (s *memStore) row(t *testing.T, id string) models.TrackingRow {
	t.Helper()
	i, ok := s.index[id]
	require.True(t, ok, "expected a row for %s", id)
	return s.rows[i]
}

type fakeRunLog struct {
	records []models.RunRecord
}

func (l *fakeRunLog) Record(ctx context.Context, rec models.RunRecord) error {
	l.records = append(l.records, rec)
	return nil
}

func batchConfig() *config.Config {
	return &config.Config{
		SourceFolderID: "folder-1",
		SpreadsheetID:  "sheet-1",
		DefaultQuota:   10,
	}
}

func docs(ids ...string) []models.DocumentHandle {
	out := make([]models.DocumentHandle, len(ids))
	for i, id := range ids {
		out[i] = models.DocumentHandle{ID: id, Name: id + ".pdf", URL: "https://drive.example/" + id}
	}
	return out
}

func fixedNow() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

func TestRunFiveDocumentsQuotaThree(t *testing.T) {
	store := newMemStore()
	extractor := &fakeExtractor{}
	renderer := &fakeRenderer{fail: map[string]bool{"doc-3": true}}
	runLog := &fakeRunLog{}
	f := &BatchFunction{
		cfg:       batchConfig(),
		folder:    &fakeFolder{docs: docs("doc-1", "doc-2", "doc-3", "doc-4", "doc-5")},
		extractor: extractor,
		renderer:  renderer,
		store:     store,
		runLog:    runLog,
		now:       fixedNow,
	}

	resp, err := f.Run(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Attempted)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 1, resp.Errors)
	assert.Equal(t, []string{"doc-1", "doc-2", "doc-3"}, extractor.calls)

	for _, id := range []string{"doc-1", "doc-2"} {
		row := store.row(t, id)
		assert.Equal(t, models.StatusDone, row.Status)
		assert.Equal(t, models.FlagDone, row.DoneFlag)
		assert.Equal(t, "https://slides.example/"+id, row.SlideURL)
	}

	failed := store.row(t, "doc-3")
	assert.Equal(t, models.FlagError, failed.DoneFlag)
	assert.NotEmpty(t, failed.JSONInfo, "extraction result must survive a render failure")
	assert.Empty(t, failed.SlideURL)

	_, ok := store.index["doc-4"]
	assert.False(t, ok, "documents past the quota must not get rows")
	_, ok = store.index["doc-5"]
	assert.False(t, ok)

	require.Len(t, runLog.records, 1)
	assert.Equal(t, "batch", runLog.records[0].Kind)
	assert.Equal(t, 3, runLog.records[0].Attempted)
	assert.Equal(t, 2, runLog.records[0].Processed)
}

func TestRunSkipsDocumentsAlreadyDone(t *testing.T) {
	store := newMemStore(models.TrackingRow{
		ID: "doc-1", Name: "doc-1.pdf", Status: models.StatusDone,
		DoneFlag: models.FlagDone, SlideURL: "https://slides.example/doc-1",
	})
	extractor := &fakeExtractor{}
	renderer := &fakeRenderer{}
	f := &BatchFunction{
		cfg:       batchConfig(),
		folder:    &fakeFolder{docs: docs("doc-1", "doc-2")},
		extractor: extractor,
		renderer:  renderer,
		store:     store,
		now:       fixedNow,
	}

	resp, err := f.Run(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Attempted)
	assert.Equal(t, []string{"doc-2"}, extractor.calls)
	assert.Equal(t, []string{"doc-2"}, renderer.calls)

	// The completed row is untouched.
	row := store.row(t, "doc-1")
	assert.Equal(t, "https://slides.example/doc-1", row.SlideURL)
	assert.True(t, row.ProcessedAt.IsZero())
}

func TestRunPartialFailureIsolation(t *testing.T) {
	store := newMemStore()
	extractor := &fakeExtractor{fail: map[string]bool{"doc-1": true}}
	f := &BatchFunction{
		cfg:       batchConfig(),
		folder:    &fakeFolder{docs: docs("doc-1", "doc-2")},
		extractor: extractor,
		renderer:  &fakeRenderer{},
		store:     store,
		now:       fixedNow,
	}

	resp, err := f.Run(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Errors)

	failed := store.row(t, "doc-1")
	assert.Equal(t, models.StatusError, failed.Status)
	assert.Equal(t, models.FlagError, failed.DoneFlag)
	assert.NotEmpty(t, failed.ErrorInfo)
	assert.Empty(t, failed.JSONInfo)

	ok := store.row(t, "doc-2")
	assert.Equal(t, models.StatusDone, ok.Status)
	assert.Equal(t, models.FlagDone, ok.DoneFlag)
}

func TestRunMissingConfigurationFailsFast(t *testing.T) {
	store := newMemStore()
	fld := &fakeFolder{docs: docs("doc-1")}
	f := &BatchFunction{
		cfg:    &config.Config{SpreadsheetID: "sheet-1", DefaultQuota: 10},
		folder: fld,
		store:  store,
		now:    fixedNow,
	}

	_, err := f.Run(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingConfiguration)
	assert.Zero(t, store.upserts, "no rows may be written on a fail-fast run")
	assert.Zero(t, fld.calls)
}

func TestRunDefaultsQuotaFromConfig(t *testing.T) {
	cfg := batchConfig()
	cfg.DefaultQuota = 1
	extractor := &fakeExtractor{}
	f := &BatchFunction{
		cfg:       cfg,
		folder:    &fakeFolder{docs: docs("doc-1", "doc-2")},
		extractor: extractor,
		renderer:  &fakeRenderer{},
		store:     newMemStore(),
		now:       fixedNow,
	}

	resp, err := f.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempted)
	assert.Len(t, extractor.calls, 1)
}

func TestRunTreatsUnreadableStoreAsEmpty(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("503 backend")
	f := &BatchFunction{
		cfg:       batchConfig(),
		folder:    &fakeFolder{docs: docs("doc-1")},
		extractor: &fakeExtractor{},
		renderer:  &fakeRenderer{},
		store:     store,
		now:       fixedNow,
	}

	resp, err := f.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Processed)
}

func TestRunRetiresStaleProcessingRows(t *testing.T) {
	cfg := batchConfig()
	cfg.StaleProcessingAfter = time.Hour
	stale := models.TrackingRow{
		ID: "doc-stuck", Name: "doc-stuck.pdf", Status: models.StatusProcessing,
		ProcessedAt: fixedNow().Add(-2 * time.Hour),
	}
	fresh := models.TrackingRow{
		ID: "doc-live", Name: "doc-live.pdf", Status: models.StatusProcessing,
		ProcessedAt: fixedNow().Add(-time.Minute),
	}
	store := newMemStore(stale, fresh)
	f := &BatchFunction{
		cfg:       cfg,
		folder:    &fakeFolder{},
		extractor: &fakeExtractor{},
		renderer:  &fakeRenderer{},
		store:     store,
		now:       fixedNow,
	}

	_, err := f.Run(context.Background(), 10)
	require.NoError(t, err)

	retired := store.row(t, "doc-stuck")
	assert.Equal(t, models.StatusError, retired.Status)
	assert.Equal(t, models.FlagError, retired.DoneFlag)
	assert.NotEmpty(t, retired.ErrorInfo)

	live := store.row(t, "doc-live")
	assert.Equal(t, models.StatusProcessing, live.Status)
}
