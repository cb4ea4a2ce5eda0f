package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredRecord is the named-field extraction result produced by the Gemini
// call for one paper. Field names match the JSON schema sent to the model, so
// the model output unmarshals into this struct directly.
type StructuredRecord struct {
	Title               string `json:"Title"`
	TranslatedTitle     string `json:"TranslatedTitle"`
	Journal             string `json:"Journal"`
	Citation            string `json:"Citation"`
	Limitation          string `json:"Limitation"`
	ClinicalImplication string `json:"ClinicalImplication"`
	ResearchImplication string `json:"ResearchImplication"`
	PolicyImplication   string `json:"PolicyImplication"`
	Summary             string `json:"Summary"`
}

// EncodeRecord serializes a record for the tracking row's JSON Info column.
func EncodeRecord(r *StructuredRecord) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode structured record: %w", err)
	}
	return string(b), nil
}

// DecodeRecord parses a JSON Info column value back into a record.
func DecodeRecord(s string) (*StructuredRecord, error) {
	var r StructuredRecord
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("failed to decode structured record: %w", err)
	}
	return &r, nil
}

// Placeholders maps the slide template tokens to record values. Fields that
// are empty or whitespace substitute the literal "N/A".
func (r *StructuredRecord) Placeholders() map[string]string {
	m := map[string]string{
		"{Title}":               r.Title,
		"{Japanese_Title}":      r.TranslatedTitle,
		"{Journal}":             r.Journal,
		"{Citation}":            r.Citation,
		"{Limitation}":          r.Limitation,
		"{ClinicalImplication}": r.ClinicalImplication,
		"{ResearchImplication}": r.ResearchImplication,
		"{PolicyImplication}":   r.PolicyImplication,
		"{Summary}":             r.Summary,
	}
	for token, value := range m {
		if strings.TrimSpace(value) == "" {
			m[token] = "N/A"
		}
	}
	return m
}
