package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/utils"
)

//go:embed skills_extraction.md
var extractionPromptTemplate string

// minDescriptionLength is the cheapest guard in the pipeline: descriptions
// below it carry too little signal to justify a model call.
const minDescriptionLength = 100

const defaultMaxLogLength = 200

const extractionFallbackHint = `RETURN JSON ONLY. The output must be a single JSON object with a "skills" key containing a list of strings.
Example:
{
    "skills": ["Python", "AWS", "Docker"]
}`

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"skills": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Technical skills extracted from the job description",
		},
	},
	Required: []string{"skills"},
}

type extractionPayload struct {
	Skills []string `json:"skills"`
}

// Extractor pulls required skills out of a job description using the
// skills_extraction stage model.
type Extractor struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

// NewExtractor creates the extraction stage. A nil generator is allowed and
// makes every call fail with ai.ErrStageNotConfigured.
func NewExtractor(generator ai.Generator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Extractor{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// Extract returns the skill strings found in description. Descriptions that
// are absent or shorter than minDescriptionLength yield an empty list without
// a model call. Unparseable model output also degrades to an empty list; only
// transport and configuration failures surface as errors.
func (e *Extractor) Extract(ctx context.Context, description string) ([]string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) < minDescriptionLength {
		return []string{}, nil
	}

	if e.generator == nil {
		return nil, fmt.Errorf("skills_extraction: %w", ai.ErrStageNotConfigured)
	}

	prompt := strings.ReplaceAll(extractionPromptTemplate, "{{DESCRIPTION}}", description)

	content, err := jsonCall(ctx, e.generator, e.logger, e.maxLogLen, prompt, extractionFallbackHint, extractionSchema)
	if err != nil {
		return nil, fmt.Errorf("skills_extraction: %w", err)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		e.logger.Warn("failed to parse skills extraction response, returning no skills",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(content, e.maxLogLen)),
		)
		return []string{}, nil
	}

	if payload.Skills == nil {
		payload.Skills = []string{}
	}

	e.logger.Debug("extracted skills", zap.Int("count", len(payload.Skills)))
	return payload.Skills, nil
}
