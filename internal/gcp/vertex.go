package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Extractor Model Prompts ---
const ExtractorSystemPrompt = "You are an expert at extracting structured data from research papers. From the provided paper PDF, extract information following the specified schema. Answer in clear English; TranslatedTitle is the paper title translated into Japanese."
const ExtractorUserPrompt = `Extract the structured summary fields from the attached research paper.

Follow these rules precisely:
1.  Title: the paper's full original title.
2.  TranslatedTitle: the title translated into Japanese.
3.  Journal: the journal or venue name.
4.  Citation: a short citation line (authors, journal, year; DOI if present).
5.  Limitation: the main limitations the authors state, in plain language.
6.  ClinicalImplication / ResearchImplication / PolicyImplication: what the findings mean for clinical practice, future research, and policy, one short paragraph each.
7.  Summary: a bullet-point summary using hyphen bullets, 3-5 items, plain language that avoids jargon.

For any field the paper does not support, answer with an empty string rather than guessing.`

// recordSchema forces the model output into the exact field set the tracking
// row stores, so the response unmarshals into models.StructuredRecord directly.
var recordSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"Title":               {Type: genai.TypeString, Description: "Full original title of the paper."},
		"TranslatedTitle":     {Type: genai.TypeString, Description: "Title translated into Japanese."},
		"Journal":             {Type: genai.TypeString, Description: "Journal or venue name."},
		"Citation":            {Type: genai.TypeString, Description: "Short citation line: authors, journal, year, DOI if present."},
		"Limitation":          {Type: genai.TypeString, Description: "Main limitations stated by the authors."},
		"ClinicalImplication": {Type: genai.TypeString, Description: "Implication of the findings for clinical practice."},
		"ResearchImplication": {Type: genai.TypeString, Description: "Implication of the findings for future research."},
		"PolicyImplication":   {Type: genai.TypeString, Description: "Implication of the findings for health policy."},
		"Summary":             {Type: genai.TypeString, Description: "Hyphen-bullet summary, 3-5 items, plain language."},
	},
	Required: []string{
		"Title", "TranslatedTitle", "Journal", "Citation", "Limitation",
		"ClinicalImplication", "ResearchImplication", "PolicyImplication", "Summary",
	},
}

// VertexClient holds the pre-configured extraction model.
type VertexClient struct {
	ExtractorModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a client with the extractor model configured for
// deterministic, schema-constrained JSON output.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	extractorModel := baseClient.GenerativeModel(modelName)
	extractorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ExtractorSystemPrompt)},
	}
	extractorModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. This is a critical setting for this model.
		ResponseMIMEType: "application/json",
		ResponseSchema:   recordSchema,
		Temperature:      genai.Ptr[float32](0.0),
	}
	extractorModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		ExtractorModel: extractorModel,
		baseClient:     baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
