package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/gcp"
	"github.com/aokilab/paperdeck/internal/models"
)

// FirestoreRunLog appends one summary document per batch or sweep run to a
// Firestore collection, one audit record per invocation.
type FirestoreRunLog struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRunLog creates the run-history writer.
func NewFirestoreRunLog(client *firestore.Client, collection string) *FirestoreRunLog {
	return &FirestoreRunLog{client: client, collection: collection}
}

// Record writes one run summary.
func (l *FirestoreRunLog) Record(ctx context.Context, rec models.RunRecord) error {
	if _, _, err := l.client.Collection(l.collection).Add(ctx, rec); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// newRunLog wires the run history if a project is configured. Run history is
// best-effort; a missing project or client failure only disables it.
func newRunLog(ctx context.Context, cfg *config.Config) RunRecorder {
	if cfg.ProjectID == "" {
		return nil
	}
	client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Warn("Run history disabled.", "error", err)
		return nil
	}
	return NewFirestoreRunLog(client, cfg.RunLogCollection)
}
