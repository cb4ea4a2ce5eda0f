package tracking

import (
	"github.com/aokilab/paperdeck/internal/models"
)

// Outcome is the result of one processing attempt for one document. The four
// implementations form a closed union; Reduce maps each to the row fields it
// must persist.
type Outcome interface {
	outcome()
}

// Started marks the row immediately before the extraction call.
type Started struct{}

// ExtractFailed records an extraction failure. No record was produced.
type ExtractFailed struct {
	Err error
}

// RenderFailed records a render failure after a successful extraction. The
// record is still persisted so a later sweep can retry rendering without
// repeating the extraction call.
type RenderFailed struct {
	Record *models.StructuredRecord
	Err    error
}

// Completed records a fully successful attempt: extraction and render.
type Completed struct {
	Record *models.StructuredRecord
	URL    string
}

func (Started) outcome()       {}
func (ExtractFailed) outcome() {}
func (RenderFailed) outcome()  {}
func (Completed) outcome()     {}

// RowUpdate is the field-set an upsert writes. Status is always written; nil
// pointers leave the existing column value untouched on update and empty on
// insert.
type RowUpdate struct {
	Status    string
	JSONInfo  *string
	ErrorInfo *string
	DoneFlag  *string
	SlideURL  *string
}

// Reduce maps an attempt outcome to the next persisted row state. Pure; the
// store stamps Processed At at write time.
func Reduce(o Outcome) (RowUpdate, error) {
	switch v := o.(type) {
	case Started:
		return RowUpdate{Status: models.StatusProcessing}, nil

	case ExtractFailed:
		return RowUpdate{
			Status:    models.StatusError,
			ErrorInfo: ptr(v.Err.Error()),
			DoneFlag:  ptr(models.FlagError),
		}, nil

	case RenderFailed:
		encoded, err := models.EncodeRecord(v.Record)
		if err != nil {
			return RowUpdate{}, err
		}
		return RowUpdate{
			Status:    models.StatusDone,
			JSONInfo:  ptr(encoded),
			ErrorInfo: ptr(v.Err.Error()),
			DoneFlag:  ptr(models.FlagError),
		}, nil

	case Completed:
		encoded, err := models.EncodeRecord(v.Record)
		if err != nil {
			return RowUpdate{}, err
		}
		return RowUpdate{
			Status:    models.StatusDone,
			JSONInfo:  ptr(encoded),
			ErrorInfo: ptr(""),
			DoneFlag:  ptr(models.FlagDone),
			SlideURL:  ptr(v.URL),
		}, nil
	}
	// Unreachable while the union stays closed.
	return RowUpdate{}, nil
}

func ptr(s string) *string { return &s }
