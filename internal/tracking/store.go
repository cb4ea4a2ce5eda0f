// Package tracking implements the durable per-document processing state: the
// tracking sheet adapter and the pure status reducer that feeds it.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aokilab/paperdeck/internal/models"
)

// ErrStoreUnavailable marks a backing-table failure. Callers on the batch path
// log it and continue; it never aborts a run.
var ErrStoreUnavailable = errors.New("tracking store unavailable")

// Column order is fixed by the sheet contract. The first column is the
// primary key.
const (
	colID = iota
	colName
	colURL
	colStatus
	colJSONInfo
	colErrorInfo
	colProcessedAt
	colDoneFlag
	colSlideURL
	columnCount
)

var headerRow = []string{
	"PDF ID", "File Name", "File URL", "Status", "JSON Info",
	"Error Info", "Processed At", "Done Flag", "Slide URL",
}

// Values is the narrow surface the store needs from the backing table: read
// the whole grid, append a row, overwrite a row in place. A missing table
// reads as an empty grid, not an error.
type Values interface {
	Read(ctx context.Context) ([][]string, error)
	Append(ctx context.Context, row []string) error
	Update(ctx context.Context, gridIndex int, row []string) error
}

// Store reads and writes tracking rows keyed by document ID. It keeps an
// ID-to-row index built from one read, so upserts stay O(1) over a growing
// table. Single-writer by design; nothing here guards concurrent runs.
type Store struct {
	values Values
	grid   [][]string
	index  map[string]int // document ID -> grid row index
	loaded bool
	now    func() time.Time
}

// NewStore creates a store over the given backing table.
func NewStore(values Values) *Store {
	return &Store{
		values: values,
		now:    time.Now,
	}
}

// LoadAll reads the entire backing table, excluding the header row. A missing
// table yields an empty result. The read also (re)builds the upsert index.
func (s *Store) LoadAll(ctx context.Context) ([]models.TrackingRow, error) {
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	var rows []models.TrackingRow
	for i := 1; i < len(s.grid); i++ {
		rows = append(rows, parseRow(s.grid[i]))
	}
	return rows, nil
}

// Get returns the row for a document ID, or ok=false if no row exists.
func (s *Store) Get(ctx context.Context, id string) (models.TrackingRow, bool, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return models.TrackingRow{}, false, err
	}
	gridIndex, ok := s.index[id]
	if !ok {
		return models.TrackingRow{}, false, nil
	}
	return parseRow(s.grid[gridIndex]), true, nil
}

// Upsert writes an update for one document. An existing row is overwritten
// only in the supplied fields; a new row is appended with unsupplied optional
// fields empty. Every write stamps Processed At with the current time. The
// header row is created on first use.
func (s *Store) Upsert(ctx context.Context, doc models.DocumentHandle, upd RowUpdate) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := s.ensureHeader(ctx); err != nil {
		return err
	}

	stamp := s.now().UTC().Format(time.RFC3339)

	if gridIndex, ok := s.index[doc.ID]; ok {
		row := make([]string, columnCount)
		copy(row, s.grid[gridIndex])
		applyUpdate(row, upd)
		row[colProcessedAt] = stamp
		if err := s.values.Update(ctx, gridIndex, row); err != nil {
			return fmt.Errorf("%w: update row for %s: %v", ErrStoreUnavailable, doc.ID, err)
		}
		s.grid[gridIndex] = row
		return nil
	}

	row := make([]string, columnCount)
	row[colID] = doc.ID
	row[colName] = doc.Name
	row[colURL] = doc.URL
	applyUpdate(row, upd)
	row[colProcessedAt] = stamp
	if err := s.values.Append(ctx, row); err != nil {
		return fmt.Errorf("%w: append row for %s: %v", ErrStoreUnavailable, doc.ID, err)
	}
	s.grid = append(s.grid, row)
	s.index[doc.ID] = len(s.grid) - 1
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) error {
	grid, err := s.values.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.grid = grid
	s.index = make(map[string]int, len(grid))
	for i := 1; i < len(grid); i++ {
		if len(grid[i]) > colID && grid[i][colID] != "" {
			s.index[grid[i][colID]] = i
		}
	}
	s.loaded = true
	return nil
}

func (s *Store) ensureHeader(ctx context.Context) error {
	if len(s.grid) > 0 {
		return nil
	}
	if err := s.values.Append(ctx, headerRow); err != nil {
		return fmt.Errorf("%w: create header row: %v", ErrStoreUnavailable, err)
	}
	s.grid = append(s.grid, headerRow)
	return nil
}

func applyUpdate(row []string, upd RowUpdate) {
	row[colStatus] = upd.Status
	if upd.JSONInfo != nil {
		row[colJSONInfo] = *upd.JSONInfo
	}
	if upd.ErrorInfo != nil {
		row[colErrorInfo] = *upd.ErrorInfo
	}
	if upd.DoneFlag != nil {
		row[colDoneFlag] = *upd.DoneFlag
	}
	if upd.SlideURL != nil {
		row[colSlideURL] = *upd.SlideURL
	}
}

func parseRow(raw []string) models.TrackingRow {
	row := make([]string, columnCount)
	copy(row, raw)
	parsed := models.TrackingRow{
		ID:        row[colID],
		Name:      row[colName],
		URL:       row[colURL],
		Status:    row[colStatus],
		JSONInfo:  row[colJSONInfo],
		ErrorInfo: row[colErrorInfo],
		DoneFlag:  row[colDoneFlag],
		SlideURL:  row[colSlideURL],
	}
	if row[colProcessedAt] != "" {
		// Tolerate hand-edited or legacy timestamps; a zero time just means
		// the stale-row policy skips this row.
		if t, err := time.Parse(time.RFC3339, row[colProcessedAt]); err == nil {
			parsed.ProcessedAt = t
		}
	}
	return parsed
}
