// Package config loads the process configuration once from the environment
// into an explicit value object. Services receive it by reference; nothing
// reads ambient state after startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingConfiguration marks a required identifier that was absent when a
// component needed it. It is the only fatal, pre-flight error class.
var ErrMissingConfiguration = errors.New("missing configuration")

// Config holds every identifier the pipeline needs. Optional fields are zero
// when unset; each component validates only the fields its own path requires.
type Config struct {
	ProjectID      string
	VertexAIRegion string
	GeminiModel    string

	SourceFolderID string
	SpreadsheetID  string
	SheetName      string

	TemplateID     string
	OutputFolderID string

	ArchiveBucket    string
	RunLogCollection string

	DefaultQuota         int
	StaleProcessingAfter time.Duration
}

// Load reads the environment (plus a best-effort .env for local runs) into a
// Config. Load itself never fails on absent identifiers; validation happens at
// the component that needs the field.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ProjectID:            getEnv("GOOGLE_CLOUD_PROJECT_ID", ""),
		VertexAIRegion:       getEnv("VERTEX_AI_REGION", "us-central1"),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		SourceFolderID:       getEnv("SOURCE_FOLDER_ID", ""),
		SpreadsheetID:        getEnv("TRACKING_SPREADSHEET_ID", ""),
		SheetName:            getEnv("TRACKING_SHEET_NAME", "Tracking"),
		TemplateID:           getEnv("TEMPLATE_PRESENTATION_ID", ""),
		OutputFolderID:       getEnv("OUTPUT_FOLDER_ID", ""),
		ArchiveBucket:        getEnv("ARCHIVE_BUCKET", ""),
		RunLogCollection:     getEnv("RUN_LOG_COLLECTION", "runs"),
		DefaultQuota:         getEnvInt("DEFAULT_RUN_QUOTA", 10),
		StaleProcessingAfter: getEnvDuration("PROCESSING_STALE_AFTER", 0),
	}
}

// ValidateBatch checks the identifiers the batch driver cannot run without.
func (c *Config) ValidateBatch() error {
	if c.SourceFolderID == "" {
		return fmt.Errorf("%w: SOURCE_FOLDER_ID must be set", ErrMissingConfiguration)
	}
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: TRACKING_SPREADSHEET_ID must be set", ErrMissingConfiguration)
	}
	return nil
}

// ValidateTracking checks the identifiers the resume entry points need.
func (c *Config) ValidateTracking() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: TRACKING_SPREADSHEET_ID must be set", ErrMissingConfiguration)
	}
	return nil
}

// ValidateRender checks the identifiers the render collaborator needs.
func (c *Config) ValidateRender() error {
	if c.TemplateID == "" {
		return fmt.Errorf("%w: TEMPLATE_PRESENTATION_ID must be set", ErrMissingConfiguration)
	}
	if c.OutputFolderID == "" {
		return fmt.Errorf("%w: OUTPUT_FOLDER_ID must be set", ErrMissingConfiguration)
	}
	return nil
}

// ValidateExtraction checks the credential surface of the extraction path.
// Only the extractor's construction enforces this, so render-only entry points
// stay usable without it.
func (c *Config) ValidateExtraction() error {
	if c.ProjectID == "" {
		return fmt.Errorf("%w: GOOGLE_CLOUD_PROJECT_ID must be set", ErrMissingConfiguration)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
