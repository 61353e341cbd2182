package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/skills"
	"github.com/jobsieve/jobsieve/internal/utils"
)

//go:embed skills_matching.md
var matchingPromptTemplate string

const matchingFallbackHint = `RETURN JSON ONLY. Do not map skills individually. Group them into three lists: "matched", "partial", and "missing".

REQUIRED JSON STRUCTURE:
{
    "matched": ["Skill A", "Skill B"],
    "partial": ["Skill C"],
    "missing": ["Skill D", "Skill E"]
}`

var matchingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"matched": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Job skills the candidate has",
		},
		"partial": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Job skills partially covered by related candidate skills",
		},
		"missing": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Job skills the candidate lacks",
		},
	},
	Required: []string{"matched", "partial", "missing"},
}

// Matcher partitions job skills against the candidate's skill list using the
// skills_matching stage model. The candidate list is loaded lazily from its
// file and cached for the lifetime of the Matcher; a missing file degrades to
// an empty list with a warning, matching the cost of a wrong answer here (a
// posting scored against no skills is merely rejected by the gate).
type Matcher struct {
	generator  ai.Generator
	skillsPath string
	logger     *zap.Logger
	maxLogLen  int

	loadOnce  sync.Once
	candidate []string
}

// NewMatcher creates the matching stage. A nil generator is allowed and makes
// every call fail with ai.ErrStageNotConfigured.
func NewMatcher(generator ai.Generator, skillsPath string, logger *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Matcher{
		generator:  generator,
		skillsPath: skillsPath,
		logger:     logger,
		maxLogLen:  maxLogLength,
	}
}

// Match partitions jobSkills into matched/partial/missing. An empty job skill
// list short-circuits to an empty match without a model call, and unparseable
// model output degrades to an empty match.
func (m *Matcher) Match(ctx context.Context, jobSkills []string) (*skills.Match, error) {
	if len(jobSkills) == 0 {
		return skills.Empty(), nil
	}

	if m.generator == nil {
		return nil, fmt.Errorf("skills_matching: %w", ai.ErrStageNotConfigured)
	}

	candidate := m.candidateSkills()

	candidateJSON, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("skills_matching: marshal candidate skills: %w", err)
	}
	jobJSON, err := json.Marshal(jobSkills)
	if err != nil {
		return nil, fmt.Errorf("skills_matching: marshal job skills: %w", err)
	}

	prompt := strings.ReplaceAll(matchingPromptTemplate, "{{CANDIDATE_SKILLS}}", string(candidateJSON))
	prompt = strings.ReplaceAll(prompt, "{{JOB_SKILLS}}", string(jobJSON))

	content, err := jsonCall(ctx, m.generator, m.logger, m.maxLogLen, prompt, matchingFallbackHint, matchingSchema)
	if err != nil {
		return nil, fmt.Errorf("skills_matching: %w", err)
	}

	var match skills.Match
	if err := json.Unmarshal([]byte(content), &match); err != nil {
		m.logger.Warn("failed to parse skills matching response, returning empty match",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(content, m.maxLogLen)),
		)
		return skills.Empty(), nil
	}

	m.logger.Debug("matched skills",
		zap.Int("matched", len(match.Matched)),
		zap.Int("partial", len(match.Partial)),
		zap.Int("missing", len(match.Missing)),
	)

	return &match, nil
}

func (m *Matcher) candidateSkills() []string {
	m.loadOnce.Do(func() {
		list, err := skills.LoadList(m.skillsPath)
		if err != nil {
			m.logger.Warn("candidate skills file unavailable, matching against empty list",
				zap.String("path", m.skillsPath),
				zap.Error(err),
			)
			list = []string{}
		}
		m.candidate = list
	})
	return m.candidate
}
