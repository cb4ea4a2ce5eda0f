package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/services"
)

var (
	batchInstance *services.BatchFunction
	once          sync.Once
	initErr       error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Manual/HTTP trigger and the Cloud Scheduler -> Pub/Sub trigger share
	// the same run logic.
	functions.HTTP("HandleRunBatch", handleRunBatch)
	functions.CloudEvent("HandleScheduledRun", handleScheduledRun)
}

// main is required by the Go Functions Framework.
func main() {}

func initBatch() {
	once.Do(func() {
		batchInstance, initErr = services.NewBatch(context.Background())
	})
}

// handleRunBatch is the HTTP entry point for manual runs.
func handleRunBatch(w http.ResponseWriter, r *http.Request) {
	initBatch()
	if initErr != nil {
		slog.Error("Critical: batch runner initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	// The quota is optional; an empty body runs with the configured default.
	var req models.BatchRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	resp, err := batchInstance.Run(r.Context(), req.Quota)
	if err != nil {
		// Only missing configuration reaches here; per-document failures are
		// absorbed into the counts.
		slog.Error("Batch run aborted", "error", err)
		if errors.Is(err, config.ErrMissingConfiguration) {
			http.Error(w, "Internal Server Error: missing configuration", http.StatusInternalServerError)
			return
		}
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

// pubSubEvent is the CloudEvent data envelope delivered by a Pub/Sub trigger.
type pubSubEvent struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// handleScheduledRun is the CloudEvent entry point for scheduled runs. The
// Pub/Sub message body may carry {"quota": n}; anything else runs with the
// configured default.
func handleScheduledRun(ctx context.Context, e cloudevents.Event) error {
	initBatch()
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var req models.BatchRunRequest
	var envelope pubSubEvent
	if err := json.Unmarshal(e.Data(), &envelope); err == nil && len(envelope.Message.Data) > 0 {
		if err := json.Unmarshal(envelope.Message.Data, &req); err != nil {
			slog.Warn("Ignoring unparseable scheduler payload", "error", err)
		}
	}

	resp, err := batchInstance.Run(ctx, req.Quota)
	if err != nil {
		// Returning the error marks the invocation as failed.
		return err
	}
	slog.Info("Scheduled run complete.",
		"attempted", resp.Attempted, "processed", resp.Processed, "errors", resp.Errors)
	return nil
}
