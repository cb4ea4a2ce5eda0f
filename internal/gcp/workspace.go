package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
	"google.golang.org/api/slides/v1"
)

// Workspace client constructors. All three services authenticate through
// application default credentials, same as the other GCP clients.

// NewDriveService creates a Drive API client.
func NewDriveService(ctx context.Context) (*drive.Service, error) {
	svc, err := drive.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return svc, nil
}

// NewSheetsService creates a Sheets API client for the tracking store.
func NewSheetsService(ctx context.Context) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	return svc, nil
}

// NewSlidesService creates a Slides API client for deck rendering.
func NewSlidesService(ctx context.Context) (*slides.Service, error) {
	svc, err := slides.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Slides service: %w", err)
	}
	return svc, nil
}
