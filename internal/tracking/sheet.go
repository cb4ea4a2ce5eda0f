package tracking

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// SheetValues implements Values over one worksheet of a Google Sheet.
type SheetValues struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetValues creates the backing-table adapter for the tracking sheet.
func NewSheetValues(svc *sheets.Service, spreadsheetID, sheetName string) *SheetValues {
	return &SheetValues{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

// Read fetches the whole grid. A worksheet that does not exist yet reads as
// an empty grid; only real backing errors are returned.
func (v *SheetValues) Read(ctx context.Context) ([][]string, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(v.spreadsheetID, v.sheetName).Context(ctx).Do()
	if err != nil {
		if isMissingSheet(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %q: %w", v.sheetName, err)
	}
	grid := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// Append adds one row after the last non-empty row, creating the worksheet
// first if it does not exist yet.
func (v *SheetValues) Append(ctx context.Context, row []string) error {
	err := v.append(ctx, row)
	if err != nil && isMissingSheet(err) {
		if err := v.createSheet(ctx); err != nil {
			return err
		}
		err = v.append(ctx, row)
	}
	if err != nil {
		return fmt.Errorf("append to %q: %w", v.sheetName, err)
	}
	return nil
}

// Update overwrites the row at the given zero-based grid index in place.
func (v *SheetValues) Update(ctx context.Context, gridIndex int, row []string) error {
	rng := fmt.Sprintf("%s!A%d:I%d", v.sheetName, gridIndex+1, gridIndex+1)
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := v.svc.Spreadsheets.Values.Update(v.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (v *SheetValues) append(ctx context.Context, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := v.svc.Spreadsheets.Values.Append(v.spreadsheetID, v.sheetName, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (v *SheetValues) createSheet(ctx context.Context) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: v.sheetName},
			},
		}},
	}
	if _, err := v.svc.Spreadsheets.BatchUpdate(v.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create worksheet %q: %w", v.sheetName, err)
	}
	return nil
}

// isMissingSheet detects the API's response to a range that names a worksheet
// the spreadsheet does not have.
func isMissingSheet(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == 400 || gerr.Code == 404
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, s := range row {
		cells[i] = s
	}
	return cells
}
