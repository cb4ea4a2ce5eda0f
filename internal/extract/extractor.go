// Package extract implements the extraction collaborator: Drive download,
// PDF preflight, and the schema-constrained Gemini call.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"google.golang.org/api/drive/v3"

	"github.com/aokilab/paperdeck/internal/gcp"
	"github.com/aokilab/paperdeck/internal/models"
)

// Error is the extraction failure for one document. All failure modes of this
// stage (download, invalid PDF, model call, malformed response) surface as
// this one type; the driver treats them uniformly.
type Error struct {
	DocumentID string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.DocumentID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// GeminiExtractor downloads a PDF from Drive, validates it with pdfcpu, and
// asks the pre-configured extractor model for the structured record.
type GeminiExtractor struct {
	driveSvc     *drive.Service
	vertexClient *gcp.VertexClient
}

// NewGeminiExtractor creates the extraction collaborator.
func NewGeminiExtractor(driveSvc *drive.Service, vertexClient *gcp.VertexClient) *GeminiExtractor {
	return &GeminiExtractor{
		driveSvc:     driveSvc,
		vertexClient: vertexClient,
	}
}

// Extract runs the full extraction for one document.
func (e *GeminiExtractor) Extract(ctx context.Context, doc models.DocumentHandle) (*models.StructuredRecord, error) {
	logCtx := slog.With("documentId", doc.ID, "name", doc.Name)

	tempDir, err := os.MkdirTemp("", "paperdeck-extract-*")
	if err != nil {
		return nil, &Error{DocumentID: doc.ID, Err: fmt.Errorf("failed to create temp dir: %w", err)}
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, "source.pdf")
	if err := e.downloadPDF(ctx, doc.ID, pdfPath); err != nil {
		return nil, &Error{DocumentID: doc.ID, Err: err}
	}

	pageCount, err := preflightPDF(pdfPath)
	if err != nil {
		return nil, &Error{DocumentID: doc.ID, Err: err}
	}
	logCtx.Info("PDF downloaded and validated.", "pageCount", pageCount)

	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, &Error{DocumentID: doc.ID, Err: fmt.Errorf("failed to read temp PDF: %w", err)}
	}

	record, err := e.callModel(ctx, pdfBytes)
	if err != nil {
		return nil, &Error{DocumentID: doc.ID, Err: err}
	}
	logCtx.Info("Extraction complete.", "title", record.Title)
	return record, nil
}

func (e *GeminiExtractor) downloadPDF(ctx context.Context, fileID, destPath string) error {
	resp, err := e.driveSvc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("failed to download Drive file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, resp.Body); err != nil {
		return fmt.Errorf("failed to copy Drive file to local file: %w", err)
	}
	return nil
}

// preflightPDF rejects files the model would choke on before spending a call.
func preflightPDF(path string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return 0, fmt.Errorf("failed to validate PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return pageCount, nil
}

func (e *GeminiExtractor) callModel(ctx context.Context, pdfBytes []byte) (*models.StructuredRecord, error) {
	extractorModel := e.vertexClient.ExtractorModel
	filePart := genai.Blob{
		MIMEType: "application/pdf",
		Data:     pdfBytes,
	}
	prompt := genai.Text(gcp.ExtractorUserPrompt)

	resp, err := extractorModel.GenerateContent(ctx, filePart, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	jsonString := extractJSONContent(resp)
	if jsonString == "" {
		return nil, fmt.Errorf("gemini returned an empty response instead of JSON")
	}

	var record models.StructuredRecord
	if err := json.Unmarshal([]byte(jsonString), &record); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	return &record, nil
}

// extractJSONContent robustly gets the raw text content from the model response.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	// The model is configured to return JSON, so we expect a single text part.
	if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		// Clean potential markdown fences just in case
		cleanJSON := strings.TrimSpace(string(txt))
		cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
		cleanJSON = strings.TrimSuffix(cleanJSON, "```")
		return strings.TrimSpace(cleanJSON)
	}
	return ""
}
