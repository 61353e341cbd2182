// Package ai defines the model-backed stage contracts consumed by the
// pipeline. Implementations live in provider subpackages.
package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/skills"
)

// ErrStageNotConfigured is returned by stage calls whose model credentials
// were absent at startup. It aborts the affected posting, never the batch.
var ErrStageNotConfigured = errors.New("model stage is not configured")

// ErrResumeUnavailable is returned by every scoring call when the resume
// file could not be read.
var ErrResumeUnavailable = errors.New("resume is unavailable")

// Stage names used in configuration and log fields.
const (
	StageSkillsExtraction = "skills_extraction"
	StageSkillsMatching   = "skills_matching"
	StageJobScoring       = "job_scoring"
)

// Assessment is the relevance verdict for a posting against the resume.
// Score is clamped to [1, 10] when the model response was parseable and 0
// otherwise, with Reasoning carrying a sentinel explanation.
type Assessment struct {
	Score     int
	Reasoning string
}

// Extractor turns a job description into a list of skill strings.
type Extractor interface {
	Extract(ctx context.Context, description string) ([]string, error)
}

// Matcher partitions extracted job skills against the candidate skill list.
type Matcher interface {
	Match(ctx context.Context, jobSkills []string) (*skills.Match, error)
}

// Scorer rates resume fit for a posting.
type Scorer interface {
	Score(ctx context.Context, posting *job.Posting) (*Assessment, error)
}

// Generator abstracts a model endpoint supporting both schema-constrained
// and free-text completion calls.
type Generator interface {
	GenerateStructured(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}
