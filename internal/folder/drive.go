// Package folder enumerates the source PDFs in a Drive folder.
package folder

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/iterator"

	"github.com/aokilab/paperdeck/internal/models"
)

// DriveFolder lists the PDFs of one Drive folder as a lazy sequence of
// document handles. Enumeration order is whatever the API returns; it is not
// guaranteed stable across calls.
type DriveFolder struct {
	svc      *drive.Service
	folderID string
}

// NewDriveFolder creates the folder collaborator for the given folder ID.
func NewDriveFolder(svc *drive.Service, folderID string) *DriveFolder {
	return &DriveFolder{svc: svc, folderID: folderID}
}

// Documents starts a fresh enumeration. Each call returns a new iterator at
// the beginning of the folder.
func (f *DriveFolder) Documents(ctx context.Context) *Iterator {
	return &Iterator{
		ctx: ctx,
		svc: f.svc,
		query: fmt.Sprintf(
			"'%s' in parents and mimeType = 'application/pdf' and trashed = false",
			f.folderID,
		),
	}
}

// Iterator pages through the folder listing one document at a time. Next
// returns iterator.Done after the last document.
type Iterator struct {
	ctx       context.Context
	svc       *drive.Service
	query     string
	buf       []*drive.File
	pageToken string
	started   bool
}

func (it *Iterator) Next() (models.DocumentHandle, error) {
	for len(it.buf) == 0 {
		if it.started && it.pageToken == "" {
			return models.DocumentHandle{}, iterator.Done
		}
		call := it.svc.Files.List().
			Q(it.query).
			Fields("nextPageToken, files(id, name, webViewLink)").
			PageSize(100).
			Context(it.ctx)
		if it.pageToken != "" {
			call = call.PageToken(it.pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return models.DocumentHandle{}, fmt.Errorf("failed to list folder: %w", err)
		}
		it.started = true
		it.pageToken = page.NextPageToken
		it.buf = page.Files
	}

	file := it.buf[0]
	it.buf = it.buf[1:]
	return models.DocumentHandle{
		ID:   file.Id,
		Name: file.Name,
		URL:  file.WebViewLink,
	}, nil
}
