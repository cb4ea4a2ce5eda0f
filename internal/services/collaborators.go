package services

import (
	"context"

	"github.com/aokilab/paperdeck/internal/folder"
	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/tracking"
)

// Collaborator surfaces the driver depends on. The production wiring in the
// New* constructors binds them to Drive, Vertex AI, Slides, Sheets, GCS and
// Firestore; tests substitute in-memory fakes.

// Folder yields a fresh, lazy enumeration of candidate documents per call.
type Folder interface {
	Documents(ctx context.Context) DocumentIterator
}

// DocumentIterator walks one enumeration. Next returns iterator.Done after
// the last document.
type DocumentIterator interface {
	Next() (models.DocumentHandle, error)
}

// Extractor turns one document into a structured record, or fails.
type Extractor interface {
	Extract(ctx context.Context, doc models.DocumentHandle) (*models.StructuredRecord, error)
}

// Renderer turns a structured record into a rendered deck URL, or fails.
type Renderer interface {
	Render(ctx context.Context, docID, docName string, record *models.StructuredRecord) (string, error)
}

// TrackingStore is the durable row store; see internal/tracking.
type TrackingStore interface {
	LoadAll(ctx context.Context) ([]models.TrackingRow, error)
	Get(ctx context.Context, id string) (models.TrackingRow, bool, error)
	Upsert(ctx context.Context, doc models.DocumentHandle, upd tracking.RowUpdate) error
}

// Archiver persists a best-effort audit snapshot of an extracted record.
type Archiver interface {
	SaveRecord(ctx context.Context, docID string, record *models.StructuredRecord) error
}

// RunRecorder appends one run-summary document per invocation.
type RunRecorder interface {
	Record(ctx context.Context, rec models.RunRecord) error
}

// folderAdapter lifts the concrete Drive folder into the Folder interface.
type folderAdapter struct {
	f *folder.DriveFolder
}

func (a folderAdapter) Documents(ctx context.Context) DocumentIterator {
	return a.f.Documents(ctx)
}
