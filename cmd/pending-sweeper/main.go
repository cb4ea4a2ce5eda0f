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

	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/services"
)

var (
	sweepInstance *services.SweepFunction
	once          sync.Once
	initErr       error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleSweepPending", handleSweepPending)
}

// main is required by the Go Functions Framework.
func main() {}

// handleSweepPending is the HTTP handler for the render-only resume pass.
func handleSweepPending(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		sweepInstance, initErr = services.NewSweep(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: sweeper initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	// The quota is optional; an empty body sweeps with the configured default.
	var req models.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	resp, err := sweepInstance.Sweep(r.Context(), req.Quota)
	if err != nil {
		slog.Error("Sweep aborted", "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
