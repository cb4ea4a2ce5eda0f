// Package deck implements the render collaborator: template copy and
// placeholder substitution in Google Slides.
package deck

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/slides/v1"

	"github.com/aokilab/paperdeck/internal/config"
	"github.com/aokilab/paperdeck/internal/models"
)

// Error is the render failure for one document.
type Error struct {
	DocumentID string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render failed for %s: %v", e.DocumentID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SlidesRenderer copies the template presentation into the output folder and
// replaces each placeholder token with the record's value.
type SlidesRenderer struct {
	slidesSvc      *slides.Service
	driveSvc       *drive.Service
	templateID     string
	outputFolderID string
}

// NewSlidesRenderer creates the render collaborator.
func NewSlidesRenderer(slidesSvc *slides.Service, driveSvc *drive.Service, templateID, outputFolderID string) *SlidesRenderer {
	return &SlidesRenderer{
		slidesSvc:      slidesSvc,
		driveSvc:       driveSvc,
		templateID:     templateID,
		outputFolderID: outputFolderID,
	}
}

// Render produces one deck for one document and returns its URL.
func (r *SlidesRenderer) Render(ctx context.Context, docID, docName string, record *models.StructuredRecord) (string, error) {
	if r.templateID == "" || r.outputFolderID == "" {
		return "", &Error{DocumentID: docID, Err: fmt.Errorf(
			"%w: TEMPLATE_PRESENTATION_ID and OUTPUT_FOLDER_ID must be set", config.ErrMissingConfiguration)}
	}
	logCtx := slog.With("documentId", docID, "name", docName)

	deckName := strings.TrimSuffix(docName, filepath.Ext(docName)) + " - Summary"
	copied, err := r.driveSvc.Files.Copy(r.templateID, &drive.File{
		Name:    deckName,
		Parents: []string{r.outputFolderID},
	}).Context(ctx).Do()
	if err != nil {
		return "", &Error{DocumentID: docID, Err: fmt.Errorf("failed to copy template: %w", err)}
	}
	logCtx.Info("Template copied.", "presentationId", copied.Id)

	if _, err := r.slidesSvc.Presentations.BatchUpdate(copied.Id, &slides.BatchUpdatePresentationRequest{
		Requests: replaceRequests(record),
	}).Context(ctx).Do(); err != nil {
		return "", &Error{DocumentID: docID, Err: fmt.Errorf("failed to replace placeholders: %w", err)}
	}

	deckURL := fmt.Sprintf("https://docs.google.com/presentation/d/%s/edit", copied.Id)
	logCtx.Info("Deck rendered.", "slideUrl", deckURL)
	return deckURL, nil
}

// replaceRequests builds one ReplaceAllText request per placeholder token, in
// a stable order.
func replaceRequests(record *models.StructuredRecord) []*slides.Request {
	placeholders := record.Placeholders()
	tokens := make([]string, 0, len(placeholders))
	for token := range placeholders {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	requests := make([]*slides.Request, 0, len(tokens))
	for _, token := range tokens {
		requests = append(requests, &slides.Request{
			ReplaceAllText: &slides.ReplaceAllTextRequest{
				ContainsText: &slides.SubstringMatchCriteria{
					Text:      token,
					MatchCase: true,
				},
				ReplaceText: placeholders[token],
			},
		})
	}
	return requests
}
