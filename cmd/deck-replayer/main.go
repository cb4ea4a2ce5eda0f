package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/aokilab/paperdeck/internal/models"
	"github.com/aokilab/paperdeck/internal/services"
)

var (
	replayInstance *services.ReplayFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleReplayDeck", handleReplayDeck)
}

// main is required by the Go Functions Framework.
func main() {}

// handleReplayDeck is the HTTP handler for single-document re-renders. This
// entry point surfaces failures to the caller instead of absorbing them.
func handleReplayDeck(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		replayInstance, initErr = services.NewReplay(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: replayer initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		http.Error(w, "Bad Request: documentId is required", http.StatusBadRequest)
		return
	}

	deckURL, err := replayInstance.Replay(r.Context(), req.DocumentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRowNotFound):
			http.Error(w, "Not Found: no tracking row for document", http.StatusNotFound)
		case errors.Is(err, services.ErrMissingRecord):
			http.Error(w, "Conflict: document has no stored record", http.StatusConflict)
		default:
			// Render failure; already logged and recorded on the row.
			http.Error(w, "Internal Server Error: render failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := models.ReplayResponse{Status: "success", SlideURL: deckURL}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response", "error", err, "documentId", req.DocumentID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
