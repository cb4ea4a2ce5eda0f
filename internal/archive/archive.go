// Package archive writes an audit snapshot of each extracted record to GCS.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/aokilab/paperdeck/internal/models"
)

// Archiver saves one JSON object per extracted record. Snapshots are
// create-only: a record that was already archived by an earlier run is left
// untouched.
type Archiver struct {
	storageClient *storage.Client
	bucket        string
}

// NewArchiver creates the snapshot writer for the given bucket.
func NewArchiver(storageClient *storage.Client, bucket string) *Archiver {
	return &Archiver{storageClient: storageClient, bucket: bucket}
}

// SaveRecord writes the record JSON to records/<docID>.json only if that
// object does not already exist.
func (a *Archiver) SaveRecord(ctx context.Context, docID string, record *models.StructuredRecord) error {
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record snapshot: %w", err)
	}
	objectName := fmt.Sprintf("records/%s.json", docID)
	bucket := a.storageClient.Bucket(a.bucket)
	return saveAtomically(ctx, bucket, objectName, string(content))
}

// saveAtomically writes content to a GCS object only if it doesn't already
// exist.
func saveAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Skipping snapshot, object already exists.", "gcsObject", objectName)
			return nil // Not a failure in an idempotent workflow.
		}
		return fmt.Errorf("failed to write snapshot to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Skipping snapshot, object already exists.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize snapshot write: %w", err)
	}
	return nil
}
